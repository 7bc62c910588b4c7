package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"go.opentelemetry.io/otel/metric"
)

// State is the lifecycle state of a simulation
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

var (
	// ErrAlreadyComplete is returned when stepping a finished simulation
	ErrAlreadyComplete = errors.New("simulation already complete")
	// ErrSimulationFault wraps the diagnostic of a failed tick
	ErrSimulationFault = errors.New("simulation fault")
)

// Per-agent random streams
const (
	streamRole uint64 = iota + 1
	streamNav
)

// EventSink observes what happens during a run. Calls are made while the
// engine holds its lock, so implementations must not call back into it.
type EventSink interface {
	OnCombatEvent(ev core.CombatEvent)
	OnRoleChange(tick, agentID int, from, to core.Role)
	OnTermination(tick int, outcome string, stats StatisticsReport)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithEventSink registers a receiver for combat, role and termination events
func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithFrameSink batches every recorded frame to s
func WithFrameSink(s core.FrameSink) Option {
	return func(e *Engine) { e.frameSink = s }
}

// WithAssetSchedule moves the asset with the given id along s, overriding
// any waypoints from configuration
func WithAssetSchedule(assetID int, s AssetSchedule) Option {
	return func(e *Engine) { e.schedules[assetID] = s }
}

// WithMeter records engine metrics with m instead of the global meter
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// WithRunID labels the engine's logs and statistics
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// decision is everything an agent decided during the parallel phase
type decision struct {
	role     core.Role
	target   *int
	claims   []int
	velocity core.Vector3D
}

// Engine is a deterministic, fixed-step swarm defense simulation. Each tick
// runs a parallel decide phase over a read-only view of the previous state,
// then applies all decisions serially.
type Engine struct {
	cfg      *config.ScenarioConfig
	runID    string
	strategy core.Strategy
	filter   core.SafetyFilter
	assigner *core.Assigner
	roles    *core.RoleSelector
	combat   *core.CombatResolver
	obs      core.ObservationParams
	rng      *rand.Rand // Spawns and combat, consumed serially
	workers  int
	maxTicks int

	agents     []*core.Agent // Friendlies then enemies, ascending id
	friendlies []*core.Agent
	enemies    []*core.Agent
	byID       map[int]*core.Agent
	assets     []*core.Asset
	schedules  map[int]AssetSchedule

	mu         sync.Mutex
	state      State
	tick       int
	time       float64
	outcome    string
	diagnostic string
	frames     []core.Frame
	lastFrame  *core.Frame
	analytics  AnalyticsSeries
	events     []core.CombatEvent
	tally      combatTally
	stats      StatisticsReport
	stop       atomic.Bool

	log       logger.Logger
	sink      EventSink
	frameSink core.FrameSink
	frameBuf  *core.FrameBuffer
	meter     metric.Meter
	metrics   *engineMetrics
}

// NewEngine validates the configuration, spawns every entity and records
// frame 0. An invalid configuration returns an error and no engine.
func NewEngine(cfg *config.ScenarioConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	kind, err := cfg.StrategyKind()
	if err != nil {
		return nil, err
	}
	strategy, err := core.NewStrategy(kind, cfg.Navigation)
	if err != nil {
		return nil, err
	}

	seed := uint64(cfg.Simulation.Seed)
	e := &Engine{
		cfg:       cfg,
		strategy:  strategy,
		assigner:  core.NewAssigner(cfg.AssignmentParams()),
		roles:     core.NewRoleSelector(cfg.Roles),
		combat:    core.NewCombatResolver(cfg.Combat),
		obs:       cfg.ObservationParams(),
		rng:       rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
		workers:   cfg.Performance.WorkerCount,
		maxTicks:  cfg.MaxTicks(),
		schedules: schedulesFromConfig(cfg.Scenario.Assets),
		state:     StateInitializing,
		analytics: newAnalyticsSeries(),
	}
	if filter, ok := strategy.(core.SafetyFilter); ok {
		e.filter = filter
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.WithPrefix("engine")
	}
	e.log = e.log.WithFields(map[string]interface{}{
		"run":      e.runID,
		"strategy": string(kind),
	})

	e.metrics, err = newEngineMetrics(e.meter, string(kind))
	if err != nil {
		return nil, err
	}

	e.assets = spawnAssets(cfg.Scenario.Assets)
	for id, s := range e.schedules {
		if id < 0 || id >= len(e.assets) {
			return nil, fmt.Errorf("%w: schedule for unknown asset %d", config.ErrInvalidConfig, id)
		}
		e.assets[id].Position = s.PositionAt(0)
	}

	anchor := anchorPoint(e.assets)
	e.friendlies = spawnFriendlies(cfg, anchor, e.rng)
	e.enemies = spawnEnemies(cfg, anchor, e.rng)
	e.agents = append(append([]*core.Agent{}, e.friendlies...), e.enemies...)
	e.byID = make(map[int]*core.Agent, len(e.agents))
	for _, a := range e.agents {
		e.byID[a.ID] = a
	}

	if e.frameSink != nil {
		e.frameBuf = core.NewFrameBuffer(e.frameSink, cfg.Performance.FrameBatchSize,
			cfg.Performance.FramePendingLimit, cfg.Performance.FrameFlushInterval, e.log.WithPrefix("frames"))
	}

	e.record()

	e.log.Debugf("Initialized %d friendlies, %d enemies, %d assets",
		len(e.friendlies), len(e.enemies), len(e.assets))
	return e, nil
}

// Step advances the simulation by one tick and returns the frame recorded on
// this tick, or nil when the tick falls between recording strides
func (e *Engine) Step() (*core.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateCompleted, StateFailed:
		return nil, ErrAlreadyComplete
	case StateInitializing:
		e.state = StateRunning
	}

	if e.stop.Load() {
		e.finish(OutcomeStopped)
		return e.copyLastFrame(), nil
	}

	started := time.Now()
	recorded, err := e.safeAdvance()
	if err != nil {
		return nil, e.fail(err.Error())
	}
	e.metrics.recordTick(context.Background(), float64(time.Since(started).Microseconds())/1000.0)

	if recorded {
		return e.copyLastFrame(), nil
	}
	return nil, nil
}

// safeAdvance converts a panic anywhere in the tick into an error
func (e *Engine) safeAdvance() (recorded bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic on tick %d: %v", e.tick, r)
		}
	}()
	return e.advance()
}

func (e *Engine) advance() (bool, error) {
	e.tick++
	dt := e.cfg.Simulation.DT

	for id, s := range e.schedules {
		e.assets[id].Position = s.PositionAt(e.time)
	}

	decisions, err := e.decide()
	if err != nil {
		return false, err
	}

	e.apply(decisions)
	if err := e.integrate(dt); err != nil {
		return false, err
	}
	e.resolveCombat(dt)
	e.time = float64(e.tick) * dt

	if outcome := e.checkTermination(); outcome != "" {
		e.record()
		e.finish(outcome)
		return true, nil
	}

	if e.tick%e.cfg.Simulation.RecordStride == 0 {
		e.record()
		return true, nil
	}
	return false, nil
}

// decide runs every agent's decision function in parallel. Workers only read
// shared state; the WaitGroup is the barrier before anything is written.
func (e *Engine) decide() ([]decision, error) {
	n := len(e.agents)
	out := make([]decision, n)
	workers := min(e.workers, n)
	if workers < 1 {
		return out, nil
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[w] = fmt.Errorf("decide worker %d panicked on tick %d: %v", w, e.tick, r)
				}
			}()
			for i := lo; i < hi; i++ {
				out[i] = e.decideAgent(e.agents[i])
			}
		}(w, lo, hi)
	}
	wg.Wait()

	return out, errors.Join(errs...)
}

func (e *Engine) decideAgent(a *core.Agent) decision {
	if !a.Active() {
		return decision{role: a.Role}
	}

	smoothing := e.cfg.Navigation.Smoothing
	if a.IsEnemy() {
		raw := steerEnemy(a, e.agents, e.assets, e.cfg.EnemyAI)
		return decision{velocity: core.Smooth(raw, a.Velocity, a.MaxSpeed, smoothing)}
	}

	seed := e.cfg.Simulation.Seed
	obs := core.Observe(a, e.agents, e.assets, e.obs)
	role := e.roles.Next(obs, a.Role, core.AgentRand(seed, e.tick, a.ID, streamRole))
	claims := e.assigner.Claims(obs)
	target, primary := e.assigner.SelectTarget(obs, claims, role)

	owned := make(map[int]struct{}, len(claims))
	for _, id := range claims {
		owned[id] = struct{}{}
	}

	raw := e.strategy.ComputeVelocity(core.NavInput{
		Obs:     obs,
		Target:  target,
		Primary: primary,
		Owned:   owned,
		Role:    role,
		Tick:    e.tick,
		DT:      e.cfg.Simulation.DT,
		Rand:    core.AgentRand(seed, e.tick, a.ID, streamNav),
	})
	v := core.Smooth(raw, a.Velocity, a.MaxSpeed, smoothing)
	if e.filter != nil {
		v = e.filter.Filter(obs, v, e.cfg.Simulation.DT)
	}

	d := decision{role: role, claims: claims, velocity: v}
	if target != nil {
		id := target.ID
		d.target = &id
	}
	return d
}

// apply writes roles, targets and velocities. Claims are checked for
// agreement; two friendlies claiming one enemy means the observations
// diverged.
func (e *Engine) apply(decisions []decision) {
	owners := make(map[int]int)
	for i, d := range decisions {
		a := e.agents[i]
		if !a.Active() {
			a.Velocity = core.Vector3D{}
			a.TargetID = nil
			continue
		}
		if a.IsFriendly() {
			if d.role != a.Role && e.sink != nil {
				e.sink.OnRoleChange(e.tick, a.ID, a.Role, d.role)
			}
			a.Role = d.role
			a.TargetID = d.target
			for _, enemyID := range d.claims {
				if prev, taken := owners[enemyID]; taken {
					e.log.Warnf("Enemy %d claimed by both %d and %d on tick %d", enemyID, prev, a.ID, e.tick)
					continue
				}
				owners[enemyID] = a.ID
			}
		}
		a.Velocity = d.velocity
	}
}

// integrate moves every live agent and enforces altitude floors
func (e *Engine) integrate(dt float64) error {
	for _, a := range e.agents {
		if !a.Active() {
			continue
		}
		a.Position = a.Position.Add(a.Velocity.Scale(dt))

		floor := e.cfg.Navigation.AltitudeFloor
		if a.Kind == core.KindEnemyGround {
			floor = e.cfg.EnemyAI.GroundAltitude
		}
		if a.Position.Y < floor {
			a.Position.Y = floor
			if a.Velocity.Y < 0 {
				a.Velocity.Y = 0
			}
		}

		if !a.Position.IsFinite() || !a.Velocity.IsFinite() {
			return fmt.Errorf("non-finite state for %s on tick %d: position=%+v velocity=%+v",
				a, e.tick, a.Position, a.Velocity)
		}
	}
	return nil
}

// resolveCombat fires friendlies at their targets, then every attacker at
// its nearest friendly, then lets ground attackers siege assets, each group
// in ascending id order
func (e *Engine) resolveCombat(dt float64) {
	for _, a := range e.agents {
		if a.Cooldown > 0 {
			a.Cooldown -= dt
			if a.Cooldown < core.Epsilon {
				a.Cooldown = 0
			}
		}
	}

	for _, f := range e.friendlies {
		if !f.Active() || f.TargetID == nil {
			continue
		}
		target, ok := e.byID[*f.TargetID]
		if !ok {
			continue
		}
		e.engage(f, target)
	}

	for _, en := range e.enemies {
		if !en.Active() {
			continue
		}
		if target := nearestFriendly(en, e.friendlies); target != nil {
			e.engage(en, target)
		}
	}

	for _, en := range e.enemies {
		if en.Kind != core.KindEnemyGround || !en.Active() {
			continue
		}
		asset, d := core.NearestAsset(en.Position, e.assets)
		if asset == nil || d > asset.BreachThreshold {
			continue
		}
		damage := e.combat.Siege(en, asset, e.rng)
		if damage <= 0 {
			continue
		}
		e.emit(core.CombatEvent{Type: core.EventSiege, AttackerID: en.ID, TargetID: asset.ID, Distance: d, Damage: damage})
		e.metrics.recordSiege(context.Background(), damage)
		if asset.Destroyed() {
			e.emit(core.CombatEvent{Type: core.EventAssetDestroyed, AttackerID: en.ID, TargetID: asset.ID, Distance: d})
			e.log.Warnf("Asset %d destroyed by %s at t=%.1fs", asset.ID, en, e.time)
		}
	}
}

func (e *Engine) engage(attacker, target *core.Agent) {
	d := attacker.Position.DistanceTo(target.Position)
	res := e.combat.Resolve(attacker, target, d, e.rng)
	if !res.Fired {
		return
	}
	e.tally.shots++
	e.emit(core.CombatEvent{Type: core.EventShot, AttackerID: attacker.ID, TargetID: target.ID, Distance: d})
	if res.Hit {
		e.tally.hits++
		e.emit(core.CombatEvent{Type: core.EventHit, AttackerID: attacker.ID, TargetID: target.ID, Distance: d, Damage: res.Damage})
	}
	if res.Killed {
		e.emit(core.CombatEvent{Type: core.EventKill, AttackerID: attacker.ID, TargetID: target.ID, Distance: d})
		e.log.Debugf("%s destroyed %s at %.0fm", attacker, target, d)
	}

	side := "enemy"
	if attacker.IsFriendly() {
		side = "friendly"
	}
	e.metrics.recordShot(context.Background(), side, res.Hit, res.Killed)
}

func (e *Engine) emit(ev core.CombatEvent) {
	ev.Tick = e.tick
	ev.Time = float64(e.tick) * e.cfg.Simulation.DT
	e.events = append(e.events, ev)
	e.tally.events++
	if e.sink != nil {
		e.sink.OnCombatEvent(ev)
	}
}

// checkTermination returns the outcome that ends the run, if any
func (e *Engine) checkTermination() string {
	if countActive(e.enemies) == 0 {
		return OutcomeEnemiesDestroyed
	}
	if countActive(e.friendlies) == 0 {
		return OutcomeFriendliesDestroyed
	}
	if len(e.assets) > 0 {
		destroyed := 0
		for _, a := range e.assets {
			if a.Destroyed() {
				destroyed++
			}
		}
		if destroyed == len(e.assets) {
			return OutcomeAssetsDestroyed
		}
	}
	if e.tick >= e.maxTicks {
		return OutcomeTimeExpired
	}
	return ""
}

func countActive(agents []*core.Agent) int {
	n := 0
	for _, a := range agents {
		if a.Active() {
			n++
		}
	}
	return n
}

// record appends a frame to the history and the frame sink. The frame's
// assignments are derived from its own positions, which is the table every
// friendly claims from on the next tick.
func (e *Engine) record() {
	owners := core.OwnerTable(e.friendlies, e.enemies, e.cfg.AssignmentParams())
	frame := core.NewFrame(e.tick, e.time, e.agents, e.assets, owners)
	e.frames = append(e.frames, frame)
	e.lastFrame = &e.frames[len(e.frames)-1]

	if (len(e.frames)-1)%e.cfg.Simulation.AnalyticsStride == 0 {
		e.analytics.sample(frame)
	}

	if e.frameBuf != nil {
		e.frameBuf.Queue(frame)
	}
}

// finish completes the run; the last frame must already be recorded unless
// the run was stopped
func (e *Engine) finish(outcome string) {
	if e.lastFrame == nil || e.lastFrame.Tick != e.tick {
		e.record()
	}
	e.state = StateCompleted
	e.outcome = outcome
	e.stats = buildReport(e.state, outcome, string(e.strategy.Kind()), e.cfg.Simulation.Seed,
		e.tick, e.time, e.agents, e.assets, e.tally)

	if e.frameBuf != nil {
		if err := e.frameBuf.Stop(context.Background()); err != nil {
			e.log.Errorf("Failed to flush final frames: %v", err)
		}
	}
	if e.sink != nil {
		e.sink.OnTermination(e.tick, outcome, e.stats)
	}
	e.log.Infof("Simulation completed: %s after %d ticks (%.1fs)", outcome, e.tick, e.time)
}

// fail moves the engine to the failed state, keeping the last good frame
func (e *Engine) fail(diagnostic string) error {
	e.state = StateFailed
	e.outcome = OutcomeFault
	e.diagnostic = diagnostic
	e.stats = incompleteReport(string(StateFailed))

	if e.frameBuf != nil {
		if err := e.frameBuf.Stop(context.Background()); err != nil {
			e.log.Errorf("Failed to flush frames after fault: %v", err)
		}
	}
	if e.sink != nil {
		e.sink.OnTermination(e.tick, OutcomeFault, e.stats)
	}
	e.log.Errorf("Simulation failed on tick %d: %s", e.tick, diagnostic)
	return fmt.Errorf("%w: %s", ErrSimulationFault, diagnostic)
}

func (e *Engine) copyLastFrame() *core.Frame {
	if e.lastFrame == nil {
		return nil
	}
	f := *e.lastFrame
	return &f
}

// Run steps the simulation until it finishes, the context is cancelled or
// Stop is called. A positive tick interval throttles it to wall-clock time.
func (e *Engine) Run(ctx context.Context) error {
	if e.frameBuf != nil {
		e.frameBuf.Start(ctx)
	}

	var tick <-chan time.Time
	if interval := e.cfg.Simulation.TickInterval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if ctx.Err() != nil {
			e.Stop()
		}
		if _, err := e.Step(); err != nil {
			if errors.Is(err, ErrAlreadyComplete) {
				return nil
			}
			return err
		}
		if e.Done() {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
	}
}

// Stop requests a cooperative stop. The run ends on the next Step with the
// stopped outcome.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsComplete reports whether the run finished normally
func (e *Engine) IsComplete() bool {
	return e.State() == StateCompleted
}

// Done reports whether the run reached a terminal state
func (e *Engine) Done() bool {
	s := e.State()
	return s == StateCompleted || s == StateFailed
}

// Tick returns the number of ticks executed
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Progress returns elapsed simulated time as a percentage of max_time
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateCompleted {
		return 100
	}
	return math.Min(100, e.time/e.cfg.Simulation.MaxTime*100)
}

// Statistics returns the run summary, or an incomplete marker before the run
// has finished
func (e *Engine) Statistics() StatisticsReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateCompleted, StateFailed:
		return e.stats
	default:
		return incompleteReport(StatusIncomplete)
	}
}

// Frames returns recorded frames in the half-open index range [from, to),
// clamped to the history
func (e *Engine) Frames(from, to int) []core.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	from = max(from, 0)
	to = min(to, len(e.frames))
	if from >= to {
		return []core.Frame{}
	}
	return append([]core.Frame(nil), e.frames[from:to]...)
}

// FrameCount returns the number of recorded frames
func (e *Engine) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

// LastFrame returns the most recent recorded frame
func (e *Engine) LastFrame() *core.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLastFrame()
}

// Analytics returns the sampled time series
func (e *Engine) Analytics() AnalyticsSeries {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analytics.clone()
}

// Events returns every combat event so far
func (e *Engine) Events() []core.CombatEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.CombatEvent(nil), e.events...)
}

// Diagnostic explains why a failed run failed
func (e *Engine) Diagnostic() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diagnostic
}

// Outcome returns how the run ended, empty while it is running
func (e *Engine) Outcome() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Config returns a copy of the effective configuration
func (e *Engine) Config() *config.ScenarioConfig {
	return e.cfg.Clone()
}

// Template returns the spawn parameters of an agent, used to rebuild live
// entities from recorded frames
func (e *Engine) Template(id int) *core.Agent {
	a, ok := e.byID[id]
	if !ok {
		return nil
	}
	return &core.Agent{
		ID:             a.ID,
		Kind:           a.Kind,
		MaxHealth:      a.MaxHealth,
		MaxSpeed:       a.MaxSpeed,
		WeaponRange:    a.WeaponRange,
		DetectionRange: a.DetectionRange,
	}
}
