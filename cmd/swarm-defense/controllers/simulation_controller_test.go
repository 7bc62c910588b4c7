package controllers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

func newTestController() *SimulationController {
	return NewSimulationController(
		WithControllerLogger(logger.Discard()),
		WithEngineOptions(func(string) []simulation.Option {
			return []simulation.Option{simulation.WithLogger(logger.Discard())}
		}),
	)
}

func testScenario() *config.ScenarioConfig {
	cfg := config.GetDefaultConfig()
	cfg.Scenario.FriendlyCount = 6
	cfg.Scenario.EnemyCount = 4
	cfg.Simulation.MaxTime = 30
	return cfg
}

func TestStartRegistersWithoutTicking(t *testing.T) {
	sc := newTestController()
	h, err := sc.Start(testScenario())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := sc.List(); len(got) != 1 || got[0] != h.ID() {
		t.Errorf("expected registry to hold %s, got %v", h.ID(), got)
	}
	if h.Engine().Tick() != 0 {
		t.Errorf("expected no ticks after Start, got %d", h.Engine().Tick())
	}
	if h.State() != string(simulation.StateInitializing) {
		t.Errorf("expected initializing state, got %s", h.State())
	}

	stats, err := sc.GetStatistics(h.ID())
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.Complete || stats.Status != simulation.StatusIncomplete {
		t.Errorf("expected incomplete statistics, got %+v", stats)
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	sc := newTestController()
	cfg := testScenario()
	cfg.Scenario.FriendlyCount = 0

	h, err := sc.Start(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if h != nil || len(sc.List()) != 0 {
		t.Error("no handle should be produced for an invalid config")
	}
}

func TestStepUntilTerminated(t *testing.T) {
	sc := newTestController()
	h, err := sc.Start(testScenario())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	maxTicks := testScenario().MaxTicks()
	var sig Signal
	for i := 0; i < maxTicks; i++ {
		_, sig, err = sc.Step(h.ID())
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if sig.Terminated {
			break
		}
	}
	if !sig.Terminated {
		t.Fatalf("run did not terminate within %d ticks", maxTicks)
	}
	if sig.State != simulation.StateCompleted || sig.Outcome == "" {
		t.Errorf("unexpected termination signal: %+v", sig)
	}

	done, err := sc.IsComplete(h.ID())
	if err != nil || !done {
		t.Errorf("IsComplete = %v, %v", done, err)
	}

	_, sig, err = sc.Step(h.ID())
	if !errors.Is(err, simulation.ErrAlreadyComplete) || !sig.Terminated {
		t.Errorf("stepping a finished run: sig=%+v err=%v", sig, err)
	}

	frames, err := sc.GetFrames(h.ID(), 0, 1<<30)
	if err != nil || len(frames) == 0 {
		t.Fatalf("GetFrames = %d frames, %v", len(frames), err)
	}
	if frames[len(frames)-1].Tick != sig.Tick {
		t.Errorf("last frame tick %d, terminal tick %d", frames[len(frames)-1].Tick, sig.Tick)
	}

	series, err := sc.GetAnalyticsSeries(h.ID())
	if err != nil || series.Len() == 0 {
		t.Errorf("GetAnalyticsSeries = %d samples, %v", series.Len(), err)
	}
}

func TestLaunchAndWait(t *testing.T) {
	sc := newTestController()
	h, err := sc.Start(testScenario())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sc.Wait(h.ID()); !errors.Is(err, ErrNotLaunched) {
		t.Errorf("expected ErrNotLaunched, got %v", err)
	}

	if err := sc.Launch(context.Background(), h); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := sc.Launch(context.Background(), h); !errors.Is(err, ErrAlreadyLaunched) {
		t.Errorf("expected ErrAlreadyLaunched, got %v", err)
	}
	if err := sc.Wait(h.ID()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	stats, _ := sc.GetStatistics(h.ID())
	if !stats.Complete {
		t.Errorf("expected complete statistics after Wait, got %+v", stats)
	}

	status, err := sc.GetStatus(h.ID())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status["is_complete"] != true || status["progress"] != 100.0 {
		t.Errorf("unexpected status: %v", status)
	}
}

func TestStopEndsLaunchedRun(t *testing.T) {
	sc := newTestController()
	cfg := testScenario()
	cfg.Simulation.MaxTime = 3600
	cfg.Simulation.TickInterval = time.Millisecond
	h, err := sc.Start(cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sc.Launch(context.Background(), h); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := sc.Stop(h.ID()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := sc.Wait(h.ID()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out := h.Engine().Outcome(); out != simulation.OutcomeStopped && out != simulation.OutcomeEnemiesDestroyed {
		t.Errorf("expected stopped outcome, got %q", out)
	}
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	sc := newTestController()
	const n = 4

	handles := make([]*Handle, n)
	for i := range handles {
		h, err := sc.Start(testScenario())
		if err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		handles[i] = h
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			if err := sc.Launch(context.Background(), h); err != nil {
				t.Errorf("Launch: %v", err)
			}
		}(h)
	}
	wg.Wait()
	for _, h := range handles {
		if err := sc.Wait(h.ID()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	// Same config and seed: every run must agree
	first, _ := sc.GetStatistics(handles[0].ID())
	for _, h := range handles[1:] {
		stats, _ := sc.GetStatistics(h.ID())
		if stats != first {
			t.Errorf("run %s diverged:\n got %+v\nwant %+v", h.ID(), stats, first)
		}
	}
}

func TestUnknownID(t *testing.T) {
	sc := newTestController()

	if _, _, err := sc.Step("missing"); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("Step: expected ErrSimulationNotFound, got %v", err)
	}
	if _, err := sc.IsComplete("missing"); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("IsComplete: expected ErrSimulationNotFound, got %v", err)
	}
	if _, err := sc.GetFrames("missing", 0, 1); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("GetFrames: expected ErrSimulationNotFound, got %v", err)
	}
	if err := sc.Remove("missing"); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("Remove: expected ErrSimulationNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	sc := newTestController()
	h, err := sc.Start(testScenario())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sc.Remove(h.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := sc.GetStatus(h.ID()); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("expected removed run to be unknown, got %v", err)
	}
}

func TestRemoveWhileLaunching(t *testing.T) {
	sc := newTestController()
	cfg := testScenario()
	cfg.Simulation.MaxTime = 3600
	cfg.Simulation.TickInterval = time.Millisecond
	h, err := sc.Start(cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sc.Launch(context.Background(), h); err != nil {
			t.Errorf("Launch: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := sc.Remove(h.ID()); err != nil {
			t.Errorf("Remove: %v", err)
		}
	}()
	wg.Wait()

	// Remove stops the engine whichever goroutine won, so the loop must exit
	select {
	case <-h.done:
	case <-time.After(10 * time.Second):
		t.Fatal("launched run did not exit after Remove")
	}
	sc.Shutdown()
}
