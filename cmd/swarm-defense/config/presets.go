package config

import (
	"fmt"
	"sort"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Preset is a named scenario adjustment applied on top of a configuration
type Preset struct {
	Name        string
	Label       string
	Description string
	Apply       func(c *ScenarioConfig)
}

var presets = map[string]Preset{
	"cbba-superiority": {
		Name:        "cbba-superiority",
		Label:       "CBBA Superiority",
		Description: "Fast consensus-style target assignment with a shield formation",
		Apply: func(c *ScenarioConfig) {
			c.Scenario.Strategy = string(core.StrategyGreedyConsensus)
			c.Scenario.Formation = FormationShield
			c.Scenario.MaxSpeed = 78
			c.Scenario.WeaponRange = 170
			c.Scenario.DetectionRange = 1800
			c.Roles.GroundThreatWeights = roleWeights(0.7, 0.2, 0.1)
			c.Roles.AirSwarmWeights = roleWeights(0.5, 0.15, 0.35)
		},
	},
	"cvt-cbf": {
		Name:        "cvt-cbf",
		Label:       "CVT-CBF Defense",
		Description: "Adaptive density coverage with control barrier safety constraints",
		Apply: func(c *ScenarioConfig) {
			c.Scenario.Strategy = string(core.StrategyTessellationBarrier)
			c.Scenario.Formation = FormationVeil
			c.Scenario.MaxSpeed = 76
			c.Scenario.WeaponRange = 170
			c.Scenario.DetectionRange = 1800
			c.Roles.GroundThreatWeights = roleWeights(0.65, 0.25, 0.1)
			c.Roles.AirSwarmWeights = roleWeights(0.5, 0.15, 0.35)
		},
	},
	"qipfd-quantum": {
		Name:        "qipfd-quantum",
		Label:       "QIPFD Quantum",
		Description: "Quantum-weighted potential field for adaptive threat response",
		Apply: func(c *ScenarioConfig) {
			c.Scenario.Strategy = string(core.StrategyQuantumPotential)
			c.Scenario.Formation = FormationOrbital
			c.Scenario.MaxSpeed = 76
			c.Scenario.WeaponRange = 160
			c.Scenario.DetectionRange = 1700
			c.Roles.GroundThreatWeights = roleWeights(0.5, 0.25, 0.25)
			c.Roles.AirSwarmWeights = roleWeights(0.35, 0.25, 0.4)
		},
	},
	"guaranteed_win": difficulty("guaranteed_win", "Guaranteed Win", 25, 10, 0.3),
	"easy":           difficulty("easy", "Easy Mode", 20, 12, 0.35),
	"balanced":       difficulty("balanced", "Balanced", 18, 15, 0.4),
	"challenging":    difficulty("challenging", "Challenging", 16, 18, 0.45),
}

// roleWeights builds a weight table in interceptor, defender, hunter order
func roleWeights(interceptor, defender, hunter float64) map[core.Role]float64 {
	return map[core.Role]float64{
		core.RoleInterceptor: interceptor,
		core.RoleDefender:    defender,
		core.RoleHunter:      hunter,
	}
}

func difficulty(name, label string, friendly, enemy int, groundRatio float64) Preset {
	return Preset{
		Name:        name,
		Label:       label,
		Description: fmt.Sprintf("%d defenders against %d attackers, %.0f%% ground attack", friendly, enemy, groundRatio*100),
		Apply: func(c *ScenarioConfig) {
			c.Scenario.FriendlyCount = friendly
			c.Scenario.EnemyCount = enemy
			c.Scenario.GroundAttackRatio = groundRatio
			c.Simulation.MaxTime = 300
			c.Scenario.MaxSpeed = 70
			c.Scenario.WeaponRange = 150
			c.Scenario.DetectionRange = 1500
			c.Scenario.Assets = []AssetConfig{{Position: core.Vec(0, 0, 0), Value: 1.0}}
		},
	}
}

// ApplyPreset applies a named preset to the configuration
func ApplyPreset(c *ScenarioConfig, name string) error {
	preset, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	preset.Apply(c)
	return nil
}

// GetPreset returns a preset by name
func GetPreset(name string) (Preset, bool) {
	preset, ok := presets[name]
	return preset, ok
}

// PresetNames returns every preset name, sorted
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
