package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/picogrid/swarm-defense/pkg/logger"
)

func friendlyAt(id int, x, z float64) *Agent {
	return NewFriendly(id, Vec(x, 50, z), 150, 70, 150, 1500)
}

func enemyAt(index int, kind Kind, x, z float64) *Agent {
	return NewEnemy(index, kind, Vec(x, 50, z), 80, 50, 120, 1500)
}

func TestVectorOperations(t *testing.T) {
	if got := (Vector3D{}).Normalize(); got != (Vector3D{}) {
		t.Errorf("Normalize of zero vector = %v, want zero", got)
	}

	v := Vec(3, 0, 4)
	if got := v.Magnitude(); got != 5 {
		t.Errorf("Magnitude = %f, want 5", got)
	}
	if got := v.ClampMagnitude(2.5).Magnitude(); math.Abs(got-2.5) > 1e-12 {
		t.Errorf("ClampMagnitude length = %f, want 2.5", got)
	}
	if got := v.ClampMagnitude(10); got != v {
		t.Errorf("ClampMagnitude below limit changed the vector: %v", got)
	}
	if got := Vec(0, 0, 0).Lerp(Vec(10, 0, 0), 0.3); math.Abs(got.X-3) > 1e-12 {
		t.Errorf("Lerp = %v, want x=3", got)
	}
	if Vec(math.NaN(), 0, 0).IsFinite() {
		t.Error("NaN vector reported finite")
	}
	if Vec(1, math.Inf(1), 0).IsFinite() {
		t.Error("infinite vector reported finite")
	}
}

func TestScoreFormula(t *testing.T) {
	params := DefaultAssignmentParams()

	got := Score(3, 1004, 250, params)
	want := float64(PairHash(3, 1004)%1000) + 1000.0/250
	if got != want {
		t.Errorf("Score = %f, want %f", got, want)
	}

	// Distances below epsilon are floored
	if Score(3, 1004, 0, params) != Score(3, 1004, 0.5, params) {
		t.Error("distances below epsilon should score the same")
	}

	if PairHash(3, 1004) != PairHash(3, 1004) {
		t.Error("PairHash is not a pure function")
	}
}

func TestOutranksTieBreaks(t *testing.T) {
	tests := []struct {
		name string
		a, b Bid
		want bool
	}{
		{"higher score wins", Bid{AgentID: 5, Score: 10, Distance: 100}, Bid{AgentID: 1, Score: 9, Distance: 1}, true},
		{"lower score loses", Bid{AgentID: 1, Score: 9}, Bid{AgentID: 5, Score: 10}, false},
		{"equal score, nearer wins", Bid{AgentID: 5, Score: 10, Distance: 50}, Bid{AgentID: 1, Score: 10, Distance: 60}, true},
		{"equal score and distance, lower id wins", Bid{AgentID: 1, Score: 10, Distance: 50}, Bid{AgentID: 5, Score: 10, Distance: 50}, true},
		{"identical bids do not outrank", Bid{AgentID: 1, Score: 10, Distance: 50}, Bid{AgentID: 1, Score: 10, Distance: 50}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outranks(tt.a, tt.b); got != tt.want {
				t.Errorf("Outranks = %v, want %v", got, tt.want)
			}
		})
	}
}

// scatteredForces places agents on a deterministic spiral so some pairs are
// out of each other's detection range
func scatteredForces(nf, ne int) (friendlies, enemies []*Agent) {
	for i := 0; i < nf; i++ {
		angle := float64(i) * 2.399963
		r := 100 + float64(i)*90
		friendlies = append(friendlies, friendlyAt(i, r*math.Cos(angle), r*math.Sin(angle)))
	}
	for i := 0; i < ne; i++ {
		angle := float64(i)*1.7 + 0.4
		r := 600 + float64(i)*210
		kind := KindEnemyAir
		if i%3 == 0 {
			kind = KindEnemyGround
		}
		enemies = append(enemies, enemyAt(i, kind, r*math.Cos(angle), r*math.Sin(angle)))
	}
	return friendlies, enemies
}

func TestClaimsAgreeWithOwnerTable(t *testing.T) {
	friendlies, enemies := scatteredForces(20, 15)
	all := append(append([]*Agent{}, friendlies...), enemies...)
	params := DefaultAssignmentParams()
	assigner := NewAssigner(params)

	owners := OwnerTable(friendlies, enemies, params)
	if len(owners) == 0 {
		t.Fatal("expected at least one observed enemy")
	}

	claimed := make(map[int][]int)
	for _, f := range friendlies {
		obs := Observe(f, all, nil, DefaultObservationParams())
		for _, enemyID := range assigner.Claims(obs) {
			claimed[enemyID] = append(claimed[enemyID], f.ID)
		}
	}

	for enemyID, owner := range owners {
		got := claimed[enemyID]
		if len(got) != 1 || got[0] != owner {
			t.Errorf("enemy %d claimed by %v, want only %d", enemyID, got, owner)
		}
	}
	for enemyID, claimants := range claimed {
		if _, ok := owners[enemyID]; !ok {
			t.Errorf("enemy %d claimed by %v but has no owner", enemyID, claimants)
		}
	}
}

func TestOwnerTableSkipsUnobservedAndDead(t *testing.T) {
	params := DefaultAssignmentParams()
	friendlies := []*Agent{friendlyAt(0, 0, 0), friendlyAt(1, 100, 0)}
	enemies := []*Agent{
		enemyAt(0, KindEnemyAir, 500, 0),
		enemyAt(1, KindEnemyAir, 50000, 0), // Out of range
		enemyAt(2, KindEnemyAir, 300, 0),
	}
	enemies[2].Health = 0

	owners := OwnerTable(friendlies, enemies, params)
	if len(owners) != 1 {
		t.Fatalf("expected exactly one owned enemy, got %v", owners)
	}
	if _, ok := owners[EnemyIDOffset]; !ok {
		t.Errorf("expected enemy %d to be owned, got %v", EnemyIDOffset, owners)
	}
}

func TestSelectTargetBackup(t *testing.T) {
	params := DefaultAssignmentParams()
	assigner := NewAssigner(params)
	self := friendlyAt(0, 0, 0)
	enemy := enemyAt(0, KindEnemyAir, 400, 0)

	obs := Observe(self, []*Agent{self, enemy}, nil, DefaultObservationParams())
	target, primary := assigner.SelectTarget(obs, nil, RoleHunter)
	if target == nil || target.ID != enemy.ID {
		t.Fatalf("expected backup target %d, got %v", enemy.ID, target)
	}
	if primary {
		t.Error("a backup target must not be primary")
	}

	target, primary = assigner.SelectTarget(obs, []int{enemy.ID}, RoleHunter)
	if target == nil || !primary {
		t.Errorf("expected owned primary target, got %v primary=%v", target, primary)
	}

	empty := Observe(self, []*Agent{self}, nil, DefaultObservationParams())
	if target, _ := assigner.SelectTarget(empty, nil, RoleDefender); target != nil {
		t.Errorf("expected no target without observed enemies, got %v", target)
	}
}

func TestObserveRespectsRanges(t *testing.T) {
	self := friendlyAt(0, 0, 0)
	near := friendlyAt(1, 2500, 0) // Beyond detection, inside 2x sensing
	far := friendlyAt(2, 4000, 0)
	seen := enemyAt(0, KindEnemyAir, 1000, 0)
	hidden := enemyAt(1, KindEnemyAir, 2000, 0)
	dead := enemyAt(2, KindEnemyAir, 100, 0)
	dead.Health = 0

	obs := Observe(self, []*Agent{far, hidden, self, near, dead, seen}, nil, DefaultObservationParams())
	if len(obs.Enemies) != 1 || obs.Enemies[0].ID != seen.ID {
		t.Errorf("enemies = %v, want only %d", obs.Enemies, seen.ID)
	}
	if len(obs.Friendlies) != 1 || obs.Friendlies[0].ID != near.ID {
		t.Errorf("friendlies = %v, want only %d", obs.Friendlies, near.ID)
	}
}

func TestRoleSelection(t *testing.T) {
	params := DefaultRoleParams()
	rs := NewRoleSelector(params)
	asset := NewAsset(0, Vec(0, 0, 0), 1)

	t.Run("quiet sky reverts to defender", func(t *testing.T) {
		self := friendlyAt(0, 100, 0)
		self.Role = RoleHunter
		obs := Observe(self, []*Agent{self}, []*Asset{asset}, DefaultObservationParams())
		if got := rs.Next(obs, RoleHunter, AgentRand(1, 1, 0, 0)); got != RoleDefender {
			t.Errorf("role = %q, want defender", got)
		}
	})

	t.Run("ground threat draws from ground weights", func(t *testing.T) {
		self := friendlyAt(0, 100, 0)
		threat := enemyAt(0, KindEnemyGround, 300, 0) // Inside the protection radius
		obs := Observe(self, []*Agent{self, threat}, []*Asset{asset}, DefaultObservationParams())

		counts := make(map[Role]int)
		for tick := 0; tick < 500; tick++ {
			role := rs.Next(obs, RoleNone, AgentRand(7, tick, 0, 0))
			if role == RoleNone {
				t.Fatal("role selector returned no role")
			}
			counts[role]++
		}
		if counts[RoleInterceptor] <= counts[RoleHunter] {
			t.Errorf("expected interceptor to dominate, got %v", counts)
		}
	})

	t.Run("same stream gives same role", func(t *testing.T) {
		self := friendlyAt(0, 100, 0)
		threat := enemyAt(0, KindEnemyGround, 300, 0)
		obs := Observe(self, []*Agent{self, threat}, []*Asset{asset}, DefaultObservationParams())
		a := rs.Next(obs, RoleHunter, AgentRand(3, 9, 0, 0))
		b := rs.Next(obs, RoleHunter, AgentRand(3, 9, 0, 0))
		if a != b {
			t.Errorf("roles differ for identical streams: %q vs %q", a, b)
		}
	})
}

func TestHitProbabilityFalloff(t *testing.T) {
	cr := NewCombatResolver(DefaultCombatParams())
	shooter := friendlyAt(0, 0, 0)

	if got := cr.HitProbability(shooter, 10); got != 0.9 {
		t.Errorf("near hit probability = %f, want 0.9", got)
	}
	if got := cr.HitProbability(shooter, shooter.WeaponRange); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("max range hit probability = %f, want 0.7", got)
	}
	mid := cr.HitProbability(shooter, shooter.WeaponRange*0.65)
	if mid >= 0.9 || mid <= 0.7 {
		t.Errorf("mid range probability %f should fall between 0.7 and 0.9", mid)
	}
}

func TestResolveEngagement(t *testing.T) {
	params := DefaultCombatParams()
	params.Friendly.BaseHitProbability = 1
	params.Friendly.RangeFalloff = 0
	cr := NewCombatResolver(params)

	shooter := friendlyAt(0, 0, 0)
	target := enemyAt(0, KindEnemyAir, 50, 0)
	rng := AgentRand(1, 1, 0, 0)

	result := cr.Resolve(shooter, target, 50, rng)
	if !result.Fired || !result.Hit {
		t.Fatalf("expected a guaranteed hit, got %+v", result)
	}
	if result.Damage < params.Friendly.DamageMin || result.Damage > params.Friendly.DamageMax {
		t.Errorf("damage %f outside [%f, %f]", result.Damage, params.Friendly.DamageMin, params.Friendly.DamageMax)
	}
	if shooter.Cooldown != params.Friendly.Cooldown {
		t.Errorf("cooldown = %f, want %f", shooter.Cooldown, params.Friendly.Cooldown)
	}

	if again := cr.Resolve(shooter, target, 50, rng); again.Fired {
		t.Error("weapon fired while cooling down")
	}

	shooter.Cooldown = 0
	if out := cr.Resolve(shooter, target, shooter.WeaponRange+1, rng); out.Fired {
		t.Error("weapon fired out of range")
	}

	target.Health = 1
	result = cr.Resolve(shooter, target, 50, rng)
	if !result.Killed || target.Health != 0 || result.Damage != 1 {
		t.Errorf("expected kill with clamped damage, got %+v health=%f", result, target.Health)
	}
}

func TestSiege(t *testing.T) {
	params := DefaultCombatParams()
	cr := NewCombatResolver(params)
	asset := NewAsset(0, Vec(0, 0, 0), 1)
	rng := AgentRand(1, 1, 0, 0)

	outside := enemyAt(0, KindEnemyGround, asset.BreachThreshold+50, 0)
	if d := cr.Siege(outside, asset, rng); d != 0 {
		t.Errorf("siege outside threshold dealt %f", d)
	}

	air := enemyAt(1, KindEnemyAir, 10, 0)
	if d := cr.Siege(air, asset, rng); d != 0 {
		t.Errorf("air enemy sieged for %f", d)
	}

	inside := enemyAt(2, KindEnemyGround, 10, 0)
	d := cr.Siege(inside, asset, rng)
	if d < params.SiegeMin || d > params.SiegeMax {
		t.Errorf("siege damage %f outside [%f, %f]", d, params.SiegeMin, params.SiegeMax)
	}
	if asset.Health != DefaultAssetHealth-d {
		t.Errorf("asset health = %f, want %f", asset.Health, DefaultAssetHealth-d)
	}
}

func TestBarrierFilterLimitsClosingSpeed(t *testing.T) {
	nav := DefaultNavigationParams()
	strategy, err := NewStrategy(StrategyTessellationBarrier, nav)
	if err != nil {
		t.Fatal(err)
	}
	filter, ok := strategy.(SafetyFilter)
	if !ok {
		t.Fatal("tessellation strategy should be a safety filter")
	}

	tests := []struct {
		name string
		gap  float64
	}{
		{"well apart", 200},
		{"close", 20},
		{"inside safe distance", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			self := friendlyAt(0, 0, 0)
			other := friendlyAt(1, tt.gap, 0)
			obs := Observe(self, []*Agent{self, other}, nil, DefaultObservationParams())

			v := filter.Filter(obs, Vec(70, 0, 0), 0.1)
			ds := nav.Tessellation.SafeDistance
			limit := math.Max(nav.Tessellation.BarrierAlpha*(tt.gap*tt.gap-ds*ds)/(4*tt.gap), 0)
			if v.X > limit+1e-9 {
				t.Errorf("closing speed %f exceeds barrier limit %f", v.X, limit)
			}
		})
	}
}

func TestBarrierFilterKeepsAltitudeFloor(t *testing.T) {
	nav := DefaultNavigationParams()
	strategy, _ := NewStrategy(StrategyTessellationBarrier, nav)
	filter := strategy.(SafetyFilter)

	self := NewFriendly(0, Vec(0, nav.AltitudeFloor+1, 0), 150, 70, 150, 1500)
	obs := Observe(self, []*Agent{self}, nil, DefaultObservationParams())

	dt := 0.1
	v := filter.Filter(obs, Vec(0, -50, 0), dt)
	if y := self.Position.Y + v.Y*dt; y < nav.AltitudeFloor-1e-9 {
		t.Errorf("next altitude %f below floor %f", y, nav.AltitudeFloor)
	}
}

func TestParseStrategyKind(t *testing.T) {
	tests := []struct {
		input   string
		want    StrategyKind
		wantErr bool
	}{
		{"greedy-consensus", StrategyGreedyConsensus, false},
		{"CBBA", StrategyGreedyConsensus, false},
		{" cvt-cbf ", StrategyTessellationBarrier, false},
		{"qipfd", StrategyQuantumPotential, false},
		{"Boids", StrategyFlockingBoids, false},
		{"random-walk", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategyKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("kind = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := NewStrategy("unknown", DefaultNavigationParams()); err == nil {
		t.Error("expected an error for an unknown strategy")
	}
	for _, kind := range StrategyKinds {
		if kind.Description() == "" {
			t.Errorf("strategy %q has no description", kind)
		}
	}
}

func TestSmooth(t *testing.T) {
	got := Smooth(Vec(1000, 0, 0), Vector3D{}, 70, 0.7)
	if math.Abs(got.X-49) > 1e-9 {
		t.Errorf("smoothed x = %f, want 49", got.X)
	}
	if got := Smooth(Vec(math.NaN(), 0, 0), Vec(10, 0, 0), 70, 0.5); got.X != 5 {
		t.Errorf("non-finite input should be treated as zero, got %v", got)
	}
}

func TestAgentRandIsPure(t *testing.T) {
	a := AgentRand(42, 10, 3, 1).Float64()
	b := AgentRand(42, 10, 3, 1).Float64()
	if a != b {
		t.Errorf("same arguments gave %f and %f", a, b)
	}
	if AgentRand(42, 10, 4, 1).Float64() == a {
		t.Error("different agents should get different streams")
	}
}

func TestNewFrame(t *testing.T) {
	f1 := friendlyAt(1, 0, 0)
	f0 := friendlyAt(0, 10, 0)
	e := enemyAt(0, KindEnemyGround, 50, 0)
	dead := enemyAt(1, KindEnemyAir, 60, 0)
	dead.Health = 0
	asset := NewAsset(0, Vec(40, 0, 0), 1)

	frame := NewFrame(3, 0.3, []*Agent{dead, f1, e, f0}, []*Asset{asset}, map[int]int{e.ID: 0})

	for i := 1; i < len(frame.Agents); i++ {
		if frame.Agents[i-1].ID >= frame.Agents[i].ID {
			t.Fatalf("agents not sorted by id: %v", frame.Agents)
		}
	}
	friendly, enemy := frame.ActiveCounts()
	if friendly != 2 || enemy != 1 {
		t.Errorf("active counts = %d, %d, want 2, 1", friendly, enemy)
	}
	if !frame.Assets[0].Breached {
		t.Error("asset with a ground enemy inside the threshold should be breached")
	}
	if s, ok := frame.Agent(e.ID); !ok || s.Kind != KindEnemyGround {
		t.Errorf("Agent(%d) = %+v, %v", e.ID, s, ok)
	}
	if owners := frame.Owners(); owners[e.ID] != 0 || len(owners) != 1 {
		t.Errorf("owners = %v", owners)
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Frame
	fail    bool
	release chan struct{} // When set, writes block until it is closed
}

func (s *recordingSink) WriteFrames(_ context.Context, frames []Frame) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.batches = append(s.batches, frames)
	return nil
}

func (s *recordingSink) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *recordingSink) delivered() [][]Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Frame(nil), s.batches...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFrameBufferBatching(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	fb := NewFrameBuffer(sink, 3, 0, 0, logger.Discard())

	for tick := 0; tick < 7; tick++ {
		fb.Queue(Frame{Tick: tick})
	}
	// Signals coalesce, so the flusher may also take the trailing frame
	waitFor(t, "two full batches", func() bool { return fb.Stats().FramesSent >= 6 })

	if err := fb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	batches := sink.delivered()
	if fb.PendingCount() != 0 {
		t.Fatalf("Stop should flush the remainder, pending=%d", fb.PendingCount())
	}

	next := 0
	for _, batch := range batches {
		for _, f := range batch {
			if f.Tick != next {
				t.Fatalf("frame %d delivered out of order (want %d)", f.Tick, next)
			}
			next++
		}
	}
	if next != 7 {
		t.Errorf("delivered %d frames, want 7", next)
	}
	if stats := fb.Stats(); stats.FramesSent != 7 || stats.FramesDropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFrameBufferQueueDoesNotWaitForSink(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{release: make(chan struct{})}
	fb := NewFrameBuffer(sink, 1, 0, 0, logger.Discard())

	// Every frame fills a batch while the first write is still blocked
	for tick := 0; tick < 3; tick++ {
		fb.Queue(Frame{Tick: tick})
	}
	if got := len(sink.delivered()); got != 0 {
		t.Fatalf("%d batches delivered while the sink was blocked", got)
	}

	close(sink.release)
	if err := fb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	next := 0
	for _, batch := range sink.delivered() {
		for _, f := range batch {
			if f.Tick != next {
				t.Fatalf("frame %d delivered out of order (want %d)", f.Tick, next)
			}
			next++
		}
	}
	if next != 3 {
		t.Errorf("delivered %d frames, want 3", next)
	}
}

func TestFrameBufferRequeuesOnFailure(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{fail: true}
	fb := NewFrameBuffer(sink, 10, 0, 0, logger.Discard())

	fb.Queue(Frame{Tick: 0})
	fb.Queue(Frame{Tick: 1})
	if err := fb.Flush(ctx); err == nil {
		t.Fatal("expected flush to fail")
	}
	if fb.PendingCount() != 2 {
		t.Fatalf("failed batch should be requeued, pending = %d", fb.PendingCount())
	}

	fb.Queue(Frame{Tick: 2})
	sink.setFail(false)
	if err := fb.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	batches := sink.delivered()
	if len(batches) != 1 || len(batches[0]) != 3 || batches[0][0].Tick != 0 {
		t.Errorf("unexpected delivery: %+v", batches)
	}
	if fb.Stats().FlushFailures != 1 {
		t.Errorf("flush failures = %d, want 1", fb.Stats().FlushFailures)
	}
}

func TestFrameBufferDropsOldestWhileSinkFails(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{fail: true}
	fb := NewFrameBuffer(sink, 2, 4, 0, logger.Discard())

	for tick := 0; tick < 10; tick++ {
		fb.Queue(Frame{Tick: tick})
	}
	if err := fb.Stop(ctx); err == nil {
		t.Fatal("expected the final flush to fail")
	}

	if fb.PendingCount() != 4 {
		t.Fatalf("pending = %d, want the cap of 4", fb.PendingCount())
	}
	if dropped := fb.Stats().FramesDropped; dropped != 6 {
		t.Errorf("dropped = %d, want 6", dropped)
	}

	// The newest frames survive
	sink.setFail(false)
	if err := fb.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	batches := sink.delivered()
	if len(batches) != 1 || batches[0][0].Tick != 6 || batches[0][3].Tick != 9 {
		t.Errorf("unexpected delivery: %+v", batches)
	}
}

func TestFrameBufferPeriodicFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	fb := NewFrameBuffer(sink, 100, 0, 5*time.Millisecond, logger.Discard())
	fb.Start(ctx)
	fb.Queue(Frame{Tick: 0})

	waitFor(t, "the periodic flush", func() bool { return fb.PendingCount() == 0 })
	if err := fb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if fb.Stats().FramesSent != 1 {
		t.Errorf("frames sent = %d, want 1", fb.Stats().FramesSent)
	}
}
