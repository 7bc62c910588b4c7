package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Simulation.Name != "swarm-defense" {
		t.Errorf("Expected simulation name 'swarm-defense', got '%s'", config.Simulation.Name)
	}
	if config.Simulation.DT != 0.1 {
		t.Errorf("Expected dt 0.1, got %v", config.Simulation.DT)
	}
	if config.Simulation.MaxTime != 300 {
		t.Errorf("Expected max time 300, got %v", config.Simulation.MaxTime)
	}
	if config.Scenario.FriendlyCount != 18 {
		t.Errorf("Expected 18 friendlies, got %d", config.Scenario.FriendlyCount)
	}
	if config.Scenario.EnemyCount != 15 {
		t.Errorf("Expected 15 enemies, got %d", config.Scenario.EnemyCount)
	}
	if config.Scenario.Strategy != string(core.StrategyGreedyConsensus) {
		t.Errorf("Expected greedy-consensus, got '%s'", config.Scenario.Strategy)
	}
	if len(config.Scenario.Assets) != 1 {
		t.Errorf("Expected one asset, got %d", len(config.Scenario.Assets))
	}
	if config.Assignment.FriendlySensingFactor != 2 {
		t.Errorf("Expected sensing factor 2, got %v", config.Assignment.FriendlySensingFactor)
	}
	if config.MaxTicks() != 3000 {
		t.Errorf("Expected 3000 ticks, got %d", config.MaxTicks())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	data := []byte("scenario:\n  friendly_count: 7\n  enemy_count: 3\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.Scenario.FriendlyCount != 7 || config.Scenario.EnemyCount != 3 {
		t.Errorf("Forces not loaded: %d v %d", config.Scenario.FriendlyCount, config.Scenario.EnemyCount)
	}
	def := GetDefaultConfig()
	if config.Simulation.DT != def.Simulation.DT || config.Scenario.WeaponRange != def.Scenario.WeaponRange {
		t.Error("Unset fields should keep their defaults")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := GetDefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ScenarioConfig)
		field  string
	}{
		{"zero friendlies", func(c *ScenarioConfig) { c.Scenario.FriendlyCount = 0 }, "scenario.friendly_count"},
		{"too many friendlies", func(c *ScenarioConfig) { c.Scenario.FriendlyCount = core.EnemyIDOffset + 1 }, "scenario.friendly_count"},
		{"negative enemies", func(c *ScenarioConfig) { c.Scenario.EnemyCount = -1 }, "scenario.enemy_count"},
		{"ratio above one", func(c *ScenarioConfig) { c.Scenario.GroundAttackRatio = 1.5 }, "scenario.ground_attack_ratio"},
		{"zero dt", func(c *ScenarioConfig) { c.Simulation.DT = 0 }, "simulation.dt"},
		{"zero max time", func(c *ScenarioConfig) { c.Simulation.MaxTime = 0 }, "simulation.max_time"},
		{"zero record stride", func(c *ScenarioConfig) { c.Simulation.RecordStride = 0 }, "simulation.record_stride"},
		{"zero weapon range", func(c *ScenarioConfig) { c.Scenario.WeaponRange = 0 }, "scenario.weapon_range"},
		{"negative health", func(c *ScenarioConfig) { c.Scenario.EnemyHealth = -5 }, "scenario.enemy_health"},
		{"unknown strategy", func(c *ScenarioConfig) { c.Scenario.Strategy = "swarm-magic" }, "scenario.strategy"},
		{"unknown formation", func(c *ScenarioConfig) { c.Scenario.Formation = "blob" }, "scenario.formation"},
		{"ground attackers without assets", func(c *ScenarioConfig) { c.Scenario.Assets = nil }, "scenario.assets"},
		{"smoothing above one", func(c *ScenarioConfig) { c.Navigation.Smoothing = 1.2 }, "navigation.smoothing"},
		{"barrier too stiff for dt", func(c *ScenarioConfig) { c.Navigation.Tessellation.BarrierAlpha = 20 }, "navigation.tessellation.barrier_alpha"},
		{"negative pending limit", func(c *ScenarioConfig) { c.Performance.FramePendingLimit = -1 }, "performance.frame_pending_limit"},
		{"zero flocking force", func(c *ScenarioConfig) { c.Navigation.Flocking.MaxForce = 0 }, "navigation.flocking.max_force"},
		{"waypoints out of order", func(c *ScenarioConfig) {
			c.Scenario.Assets[0].Waypoints = []WaypointConfig{{Time: 10}, {Time: 5}}
		}, "scenario.assets[0].waypoints"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Error %v does not wrap ErrInvalidConfig", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected a ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestValidateAllowsAirOnlyWithoutAssets(t *testing.T) {
	c := GetDefaultConfig()
	c.Scenario.Assets = nil
	c.Scenario.GroundAttackRatio = 0
	if err := c.Validate(); err != nil {
		t.Errorf("Air-only scenario without assets should be valid: %v", err)
	}

	c.Scenario.EnemyCount = 0
	c.Scenario.GroundAttackRatio = 0.5
	if err := c.Validate(); err != nil {
		t.Errorf("Scenario without enemies should be valid: %v", err)
	}
}

func TestMergeWithEnvironment(t *testing.T) {
	t.Setenv("SWARM_FRIENDLY_COUNT", "25")
	t.Setenv("SWARM_ENEMY_COUNT", "0")
	t.Setenv("SWARM_STRATEGY", "qipfd")
	t.Setenv("SWARM_SEED", "1234")
	t.Setenv("SWARM_MAX_TIME", "90")
	t.Setenv("SWARM_WORKER_COUNT", "4")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ENABLE_AAR", "true")
	t.Setenv("SWARM_ARCHIVE_PATH", "/tmp/runs.db")
	t.Setenv("SWARM_GROUND_ATTACK_RATIO", "7") // Out of range, ignored

	config := GetDefaultConfig()
	MergeWithEnvironment(config)

	if config.Scenario.FriendlyCount != 25 {
		t.Errorf("Expected 25 friendlies, got %d", config.Scenario.FriendlyCount)
	}
	if config.Scenario.EnemyCount != 0 {
		t.Errorf("Expected 0 enemies, got %d", config.Scenario.EnemyCount)
	}
	if config.Scenario.Strategy != string(core.StrategyQuantumPotential) {
		t.Errorf("Expected quantum-potential, got %s", config.Scenario.Strategy)
	}
	if config.Simulation.Seed != 1234 {
		t.Errorf("Expected seed 1234, got %d", config.Simulation.Seed)
	}
	if config.Simulation.MaxTime != 90 {
		t.Errorf("Expected max time 90, got %v", config.Simulation.MaxTime)
	}
	if config.Performance.WorkerCount != 4 {
		t.Errorf("Expected 4 workers, got %d", config.Performance.WorkerCount)
	}
	if config.Logging.ConsoleLevel != "debug" {
		t.Errorf("Expected debug level, got %s", config.Logging.ConsoleLevel)
	}
	if !config.Logging.EnableAAR {
		t.Error("Expected AAR enabled")
	}
	if !config.Archive.Enabled || config.Archive.Path != "/tmp/runs.db" {
		t.Errorf("Expected archive enabled at /tmp/runs.db, got %+v", config.Archive)
	}
	if config.Scenario.GroundAttackRatio != 0.4 {
		t.Errorf("Out-of-range ratio should be ignored, got %v", config.Scenario.GroundAttackRatio)
	}
}

func TestMergeWithCLIOverrides(t *testing.T) {
	config := GetDefaultConfig()
	MergeWithCLIOverrides(config, map[string]interface{}{
		"friendly_count":      30,
		"enemy_count":         "12",
		"ground_attack_ratio": 0.25,
		"strategy":            "tessellation-barrier",
		"formation":           "ORBITAL",
		"seed":                7,
		"max_time":            120,
		"tick_interval":       50 * time.Millisecond,
		"verbose_logging":     true,
		"log_level":           "trace", // Not a valid level, ignored
		"unknown_key":         1,
	})

	if config.Scenario.FriendlyCount != 30 || config.Scenario.EnemyCount != 12 {
		t.Errorf("Forces not applied: %d v %d", config.Scenario.FriendlyCount, config.Scenario.EnemyCount)
	}
	if config.Scenario.GroundAttackRatio != 0.25 {
		t.Errorf("Expected ratio 0.25, got %v", config.Scenario.GroundAttackRatio)
	}
	if config.Scenario.Strategy != "tessellation-barrier" {
		t.Errorf("Expected tessellation-barrier, got %s", config.Scenario.Strategy)
	}
	if config.Scenario.Formation != FormationOrbital {
		t.Errorf("Expected orbital formation, got %s", config.Scenario.Formation)
	}
	if config.Simulation.Seed != 7 || config.Simulation.MaxTime != 120 {
		t.Errorf("Clock not applied: seed=%d max_time=%v", config.Simulation.Seed, config.Simulation.MaxTime)
	}
	if config.Simulation.TickInterval != 50*time.Millisecond {
		t.Errorf("Expected tick interval 50ms, got %v", config.Simulation.TickInterval)
	}
	if !config.Logging.Verbose {
		t.Error("Expected verbose logging")
	}
	if config.Logging.ConsoleLevel != "info" {
		t.Errorf("Invalid log level should be ignored, got %s", config.Logging.ConsoleLevel)
	}
}

func TestLoadConfigWithOverridesValidates(t *testing.T) {
	_, err := LoadConfigWithOverrides("../config.yaml", map[string]interface{}{"friendly_count": 0})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scenario.yaml")

	original := GetDefaultConfig()
	original.Scenario.Strategy = string(core.StrategyTessellationBarrier)
	original.Scenario.Assets = append(original.Scenario.Assets, AssetConfig{
		Position: core.Vec(500, 0, 200),
		Value:    2,
		Waypoints: []WaypointConfig{
			{Time: 0, Position: core.Vec(500, 0, 200)},
			{Time: 60, Position: core.Vec(800, 0, 200)},
		},
	})

	if err := SaveConfig(original, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Scenario.Strategy != original.Scenario.Strategy {
		t.Errorf("Strategy = %s, want %s", loaded.Scenario.Strategy, original.Scenario.Strategy)
	}
	if len(loaded.Scenario.Assets) != 2 || len(loaded.Scenario.Assets[1].Waypoints) != 2 {
		t.Fatalf("Assets not preserved: %+v", loaded.Scenario.Assets)
	}
	if loaded.Scenario.Assets[1].Waypoints[1].Position.X != 800 {
		t.Errorf("Waypoint position not preserved: %+v", loaded.Scenario.Assets[1].Waypoints[1])
	}

	bad := GetDefaultConfig()
	bad.Scenario.FriendlyCount = 0
	if err := SaveConfig(bad, filepath.Join(t.TempDir(), "bad.yaml")); err == nil {
		t.Error("SaveConfig should refuse an invalid config")
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			c := GetDefaultConfig()
			if err := ApplyPreset(c, name); err != nil {
				t.Fatalf("ApplyPreset: %v", err)
			}
			if err := c.Validate(); err != nil {
				t.Errorf("Preset %s produced an invalid config: %v", name, err)
			}
			p, ok := GetPreset(name)
			if !ok || p.Name != name || p.Description == "" {
				t.Errorf("GetPreset(%s) = %+v, %v", name, p, ok)
			}
		})
	}

	if err := ApplyPreset(GetDefaultConfig(), "nope"); err == nil {
		t.Error("Expected error for unknown preset")
	}

	c := GetDefaultConfig()
	_ = ApplyPreset(c, "qipfd-quantum")
	if c.Scenario.Strategy != string(core.StrategyQuantumPotential) {
		t.Errorf("qipfd-quantum should select quantum-potential, got %s", c.Scenario.Strategy)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := GetDefaultConfig()
	clone := c.Clone()
	clone.Scenario.Assets[0].Value = 99
	clone.Roles.GroundThreatWeights[core.RoleHunter] = 42

	if c.Scenario.Assets[0].Value == 99 {
		t.Error("Clone shares the asset slice")
	}
	if c.Roles.GroundThreatWeights[core.RoleHunter] == 42 {
		t.Error("Clone shares the role weights")
	}
}
