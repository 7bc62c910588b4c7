package reporting

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

func smallScenario() *config.ScenarioConfig {
	cfg := config.GetDefaultConfig()
	cfg.Scenario.FriendlyCount = 6
	cfg.Scenario.EnemyCount = 3
	cfg.Simulation.MaxTime = 60
	cfg.Performance.FrameBatchSize = 2
	return cfg
}

func runToCompletion(t *testing.T, cfg *config.ScenarioConfig, opts ...simulation.Option) *simulation.Engine {
	t.Helper()
	opts = append([]simulation.Option{simulation.WithLogger(logger.Discard())}, opts...)
	engine, err := simulation.NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for !engine.Done() {
		if _, err := engine.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	return engine
}

func TestSimulationLoggerRecordsEvents(t *testing.T) {
	var out bytes.Buffer
	sl := NewSimulationLogger("run-under-test", &out, false)

	sl.OnCombatEvent(core.CombatEvent{Tick: 3, Time: 0.3, Type: core.EventShot, AttackerID: 1, TargetID: 1001, Distance: 80})
	sl.OnCombatEvent(core.CombatEvent{Tick: 3, Time: 0.3, Type: core.EventHit, AttackerID: 1, TargetID: 1001, Distance: 80, Damage: 40})
	sl.OnCombatEvent(core.CombatEvent{Tick: 3, Time: 0.3, Type: core.EventKill, AttackerID: 1, TargetID: 1001, Distance: 80})
	sl.OnCombatEvent(core.CombatEvent{Tick: 4, Time: 0.4, Type: core.EventShot, AttackerID: 1002, TargetID: 2, Distance: 120})
	sl.OnRoleChange(5, 2, core.RoleDefender, core.RoleHunter)

	events := sl.GetEvents()
	if len(events) != 4 {
		t.Fatalf("expected 4 events (role changes are only kept when verbose), got %d", len(events))
	}
	if events[2].Type != EventTypeDestruction || events[2].Side != "friendly" {
		t.Errorf("unexpected kill event: %+v", events[2])
	}
	if events[3].Side != "enemy" {
		t.Errorf("expected enemy side for attacker 1002, got %q", events[3].Side)
	}

	summary := sl.GetSummary()
	if summary.RoleChanges != 1 {
		t.Errorf("expected 1 role change, got %d", summary.RoleChanges)
	}
	if summary.EventCounts[string(core.EventShot)] != 2 {
		t.Errorf("expected 2 shots, got %d", summary.EventCounts[string(core.EventShot)])
	}
	if summary.SideCounts["enemy"][string(core.EventShot)] != 1 {
		t.Errorf("expected 1 enemy shot, got %v", summary.SideCounts["enemy"])
	}

	if !strings.Contains(out.String(), "Drone Destroyed") {
		t.Errorf("kill was not printed: %q", out.String())
	}
	if strings.Contains(out.String(), "Engagement") {
		t.Errorf("shots should only print in verbose mode: %q", out.String())
	}
}

func TestSimulationLoggerAsEventSink(t *testing.T) {
	var out bytes.Buffer
	sl := NewSimulationLogger("sink", &out, true)
	engine := runToCompletion(t, smallScenario(), simulation.WithEventSink(sl))

	summary := sl.GetSummary()
	if summary.Outcome != engine.Outcome() {
		t.Errorf("logger outcome %q, engine outcome %q", summary.Outcome, engine.Outcome())
	}
	stats := engine.Statistics()
	if got := summary.EventCounts[string(core.EventShot)]; got != stats.ShotsFired {
		t.Errorf("logger saw %d shots, statistics report %d", got, stats.ShotsFired)
	}

	sl.PrintSummary()
	if !strings.Contains(out.String(), "SIMULATION SUMMARY") {
		t.Error("summary not printed")
	}
}

func TestAARFormats(t *testing.T) {
	cfg := smallScenario()
	sl := NewSimulationLogger("aar-run-0001", &bytes.Buffer{}, false)
	engine := runToCompletion(t, cfg, simulation.WithEventSink(sl))

	tests := []struct {
		format string
		ext    string
		marker string
	}{
		{FormatJSON, ".json", `"simulation_id": "aar-run-0001"`},
		{FormatMarkdown, ".md", "# After Action Report"},
		{FormatHTML, ".html", "<h1>After Action Report</h1>"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			gen := NewAARGenerator(sl, AARConfig{
				OutputDir:   t.TempDir(),
				Format:      tt.format,
				DetailLevel: "full",
				Scenario:    cfg,
			})
			aar, err := gen.GenerateAAR(engine.Statistics(), engine.Analytics())
			if err != nil {
				t.Fatalf("GenerateAAR: %v", err)
			}
			if aar.Summary.Outcome != engine.Outcome() {
				t.Errorf("AAR outcome %q, engine %q", aar.Summary.Outcome, engine.Outcome())
			}
			if len(aar.Forces) != 2 || aar.Forces[0].Initial != 6 || aar.Forces[1].Initial != 3 {
				t.Errorf("unexpected forces: %+v", aar.Forces)
			}

			path, err := gen.SaveAAR(aar)
			if err != nil {
				t.Fatalf("SaveAAR: %v", err)
			}
			if filepath.Ext(path) != tt.ext {
				t.Errorf("expected %s file, got %s", tt.ext, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read report: %v", err)
			}
			if !strings.Contains(string(data), tt.marker) {
				t.Errorf("report missing %q", tt.marker)
			}
		})
	}
}

func TestAARRejectsIncompleteStatistics(t *testing.T) {
	engine, err := simulation.NewEngine(smallScenario(), simulation.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	gen := NewAARGenerator(NewSimulationLogger("x", &bytes.Buffer{}, false), AARConfig{OutputDir: t.TempDir()})
	if _, err := gen.GenerateAAR(engine.Statistics(), engine.Analytics()); err == nil {
		t.Error("expected error for incomplete statistics")
	}
}

func TestAARUnsupportedFormat(t *testing.T) {
	gen := NewAARGenerator(NewSimulationLogger("x", &bytes.Buffer{}, false), AARConfig{OutputDir: t.TempDir(), Format: "pdf"})
	if _, err := gen.SaveAAR(&AAR{Metadata: AARMetadata{SimulationID: "x"}}); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "runs", "archive.db"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer archive.Close()

	cfg := smallScenario()
	const runID = "00000000-0000-0000-0000-000000000001"
	engine := runToCompletion(t, cfg, simulation.WithFrameSink(archive.FrameSink(runID)))

	if err := archive.SaveRun(ctx, runID, cfg, engine.Statistics()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rec, err := archive.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Outcome != engine.Outcome() || rec.FriendlyCount != 6 || rec.EnemyCount != 3 {
		t.Errorf("unexpected record: %+v", rec)
	}
	stats, err := rec.DecodeStatistics()
	if err != nil {
		t.Fatalf("DecodeStatistics: %v", err)
	}
	if !reflect.DeepEqual(stats, engine.Statistics()) {
		t.Errorf("statistics changed through the archive:\n got %+v\nwant %+v", stats, engine.Statistics())
	}

	frames, err := archive.Frames(ctx, runID)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	want := engine.Frames(0, engine.FrameCount())
	if len(frames) != len(want) {
		t.Fatalf("archived %d frames, engine recorded %d", len(frames), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(frames[i], want[i]) {
			t.Fatalf("frame %d differs after archiving", i)
		}
	}

	runs, err := archive.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("unexpected run list: %+v", runs)
	}

	if err := archive.DeleteRun(ctx, runID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := archive.GetRun(ctx, runID); !errors.Is(err, ErrRunNotArchived) {
		t.Errorf("expected ErrRunNotArchived, got %v", err)
	}
	frames, err = archive.Frames(ctx, runID)
	if err != nil || len(frames) != 0 {
		t.Errorf("expected frames removed, got %d (%v)", len(frames), err)
	}
}

func TestArchiveRejectsIncompleteRun(t *testing.T) {
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer archive.Close()

	engine, err := simulation.NewEngine(smallScenario(), simulation.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := archive.SaveRun(context.Background(), "id", smallScenario(), engine.Statistics()); err == nil {
		t.Error("expected error archiving an unfinished run")
	}
}
