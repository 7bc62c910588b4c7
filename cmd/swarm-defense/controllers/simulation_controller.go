package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
	runs "github.com/picogrid/swarm-defense/pkg/simulation"
)

var (
	// ErrSimulationNotFound is returned for ids the controller does not know
	ErrSimulationNotFound = runs.ErrNotFound
	// ErrNotLaunched is returned by Wait for a run that has no background loop
	ErrNotLaunched = errors.New("simulation not launched")
	// ErrAlreadyLaunched is returned when a run is launched twice
	ErrAlreadyLaunched = errors.New("simulation already launched")
)

// Signal reports whether a step ended the run
type Signal struct {
	Terminated bool
	State      simulation.State
	Outcome    string
	Tick       int
}

// Handle is one registered simulation. It owns its engine and roster; nothing
// is shared between handles.
type Handle struct {
	id       string
	engine   *simulation.Engine
	created  time.Time
	launched atomic.Bool
	done     chan struct{}
	err      error // Set before done is closed

	mu     sync.Mutex
	cancel context.CancelFunc // Set by Launch
}

// ID returns the run identifier
func (h *Handle) ID() string { return h.id }

// State returns the engine lifecycle state
func (h *Handle) State() string { return string(h.engine.State()) }

// Progress returns completion as a percentage
func (h *Handle) Progress() float64 { return h.engine.Progress() }

// Stop requests a cooperative stop
func (h *Handle) Stop() { h.engine.Stop() }

// Engine exposes the underlying engine
func (h *Handle) Engine() *simulation.Engine { return h.engine }

// Created returns when the handle was allocated
func (h *Handle) Created() time.Time { return h.created }

// SimulationController manages the lifecycle of concurrent simulations
type SimulationController struct {
	registry *runs.Registry
	log      logger.Logger
	options  func(runID string) []simulation.Option
	wg       sync.WaitGroup
}

// ControllerOption configures a SimulationController
type ControllerOption func(*SimulationController)

// WithControllerLogger sets the controller logger
func WithControllerLogger(l logger.Logger) ControllerOption {
	return func(sc *SimulationController) { sc.log = l }
}

// WithEngineOptions supplies per-run engine options, such as an event sink
// or a frame archive
func WithEngineOptions(fn func(runID string) []simulation.Option) ControllerOption {
	return func(sc *SimulationController) { sc.options = fn }
}

// NewSimulationController creates a controller with an empty registry
func NewSimulationController(opts ...ControllerOption) *SimulationController {
	sc := &SimulationController{registry: runs.NewRegistry()}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.log == nil {
		sc.log = logger.WithPrefix("controller")
	}
	return sc
}

// Start validates the configuration, allocates a new simulation and registers
// it. No tick has run when Start returns.
func (sc *SimulationController) Start(cfg *config.ScenarioConfig, opts ...simulation.Option) (*Handle, error) {
	id := uuid.New().String()

	engineOpts := []simulation.Option{simulation.WithRunID(id)}
	if sc.options != nil {
		engineOpts = append(engineOpts, sc.options(id)...)
	}
	engineOpts = append(engineOpts, opts...)

	engine, err := simulation.NewEngine(cfg, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start simulation: %w", err)
	}

	h := &Handle{
		id:      id,
		engine:  engine,
		created: time.Now(),
		done:    make(chan struct{}),
	}
	if err := sc.registry.Register(h); err != nil {
		return nil, err
	}

	sc.log.Infof("Registered simulation %s (%d v %d, %s)", id,
		cfg.Scenario.FriendlyCount, cfg.Scenario.EnemyCount, cfg.Scenario.Strategy)
	return h, nil
}

// Launch runs the simulation in the background until it terminates, ctx is
// cancelled or Stop is called
func (sc *SimulationController) Launch(ctx context.Context, h *Handle) error {
	if !h.launched.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrAlreadyLaunched, h.id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		defer cancel()
		h.err = h.engine.Run(runCtx)
		if h.err != nil {
			sc.log.Errorf("Simulation %s ended with error: %v", h.id, h.err)
		}
		close(h.done)
	}()
	return nil
}

func (sc *SimulationController) handle(id string) (*Handle, error) {
	run, err := sc.registry.Get(id)
	if err != nil {
		return nil, err
	}
	h, ok := run.(*Handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSimulationNotFound, id)
	}
	return h, nil
}

// Step advances a run by one tick. The frame is nil when the tick was not
// recorded. Stepping a finished run returns its termination signal together
// with simulation.ErrAlreadyComplete.
func (sc *SimulationController) Step(id string) (*core.Frame, Signal, error) {
	h, err := sc.handle(id)
	if err != nil {
		return nil, Signal{}, err
	}

	frame, err := h.engine.Step()
	sig := signalFor(h.engine)
	return frame, sig, err
}

func signalFor(e *simulation.Engine) Signal {
	return Signal{
		Terminated: e.Done(),
		State:      e.State(),
		Outcome:    e.Outcome(),
		Tick:       e.Tick(),
	}
}

// IsComplete reports whether the run has completed
func (sc *SimulationController) IsComplete(id string) (bool, error) {
	h, err := sc.handle(id)
	if err != nil {
		return false, err
	}
	return h.engine.IsComplete(), nil
}

// GetStatistics returns the run summary, marked incomplete while running
func (sc *SimulationController) GetStatistics(id string) (simulation.StatisticsReport, error) {
	h, err := sc.handle(id)
	if err != nil {
		return simulation.StatisticsReport{}, err
	}
	return h.engine.Statistics(), nil
}

// GetFrames returns recorded frames in [from, to)
func (sc *SimulationController) GetFrames(id string, from, to int) ([]core.Frame, error) {
	h, err := sc.handle(id)
	if err != nil {
		return nil, err
	}
	return h.engine.Frames(from, to), nil
}

// GetAnalyticsSeries returns the sampled time series of a run
func (sc *SimulationController) GetAnalyticsSeries(id string) (simulation.AnalyticsSeries, error) {
	h, err := sc.handle(id)
	if err != nil {
		return simulation.AnalyticsSeries{}, err
	}
	return h.engine.Analytics(), nil
}

// Stop requests a cooperative stop of a run
func (sc *SimulationController) Stop(id string) error {
	h, err := sc.handle(id)
	if err != nil {
		return err
	}
	h.Stop()
	return nil
}

// Wait blocks until a launched run has finished and returns its error
func (sc *SimulationController) Wait(id string) error {
	h, err := sc.handle(id)
	if err != nil {
		return err
	}
	if !h.launched.Load() {
		return fmt.Errorf("%w: %s", ErrNotLaunched, id)
	}
	<-h.done
	return h.err
}

// Remove stops a run and forgets it
func (sc *SimulationController) Remove(id string) error {
	h, err := sc.handle(id)
	if err != nil {
		return err
	}
	h.Stop()
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	sc.registry.Remove(id)
	return nil
}

// List returns the ids of every registered run
func (sc *SimulationController) List() []string {
	return sc.registry.List()
}

// Shutdown stops every run and waits for background loops to exit
func (sc *SimulationController) Shutdown() {
	for _, id := range sc.registry.List() {
		_ = sc.Stop(id)
	}
	sc.wg.Wait()
}

// GetStatus returns a snapshot of a run for display
func (sc *SimulationController) GetStatus(id string) (map[string]interface{}, error) {
	h, err := sc.handle(id)
	if err != nil {
		return nil, err
	}

	e := h.engine
	status := map[string]interface{}{
		"id":          h.id,
		"state":       string(e.State()),
		"tick":        e.Tick(),
		"progress":    e.Progress(),
		"frames":      e.FrameCount(),
		"launched":    h.launched.Load(),
		"created":     h.created,
		"age":         time.Since(h.created).String(),
		"outcome":     e.Outcome(),
		"diagnostic":  e.Diagnostic(),
		"strategy":    e.Config().Scenario.Strategy,
		"is_complete": e.IsComplete(),
	}

	if last := e.LastFrame(); last != nil {
		friendlies, enemies := last.ActiveCounts()
		status["time"] = last.Time
		status["active_friendlies"] = friendlies
		status["active_enemies"] = enemies
	}

	return status, nil
}
