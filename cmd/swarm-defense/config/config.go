package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Friendly spawn formations
const (
	FormationShield  = "shield"  // Concentric rings around the first asset
	FormationOrbital = "orbital" // Spherical shell above the first asset
	FormationWave    = "wave"    // Line abreast toward the threat axis
	FormationVeil    = "veil"    // Hemispherical screen
)

// Formations lists the valid formation names
var Formations = []string{FormationShield, FormationOrbital, FormationWave, FormationVeil}

// ScenarioConfig holds the complete simulation configuration
type ScenarioConfig struct {
	// Basic simulation settings
	Simulation SimulationSettings `yaml:"simulation"`

	// Forces, strategy and assets
	Scenario ScenarioSettings `yaml:"scenario"`

	// Communication-free assignment protocol
	Assignment AssignmentConfig `yaml:"assignment"`

	// Navigation strategy tuning
	Navigation core.NavigationParams `yaml:"navigation"`

	// Role state machine
	Roles core.RoleParams `yaml:"roles"`

	// Weapon performance and siege damage
	Combat core.CombatParams `yaml:"combat"`

	// Enemy steering
	EnemyAI EnemyAIConfig `yaml:"enemy_ai"`

	// Performance settings
	Performance PerformanceConfig `yaml:"performance"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`

	// Run archive
	Archive ArchiveConfig `yaml:"archive"`
}

// SimulationSettings holds the clock, seed and recording settings
type SimulationSettings struct {
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	DT              float64       `yaml:"dt"`       // Seconds per tick
	MaxTime         float64       `yaml:"max_time"` // Seconds of simulated time
	Seed            int64         `yaml:"seed"`
	RecordStride    int           `yaml:"record_stride"`    // Ticks between recorded frames
	AnalyticsStride int           `yaml:"analytics_stride"` // Frames between analytics samples
	TickInterval    time.Duration `yaml:"tick_interval"`    // Wall-clock throttle for background runs, 0 runs flat out
}

// ScenarioSettings defines both forces and the defended assets
type ScenarioSettings struct {
	FriendlyCount     int     `yaml:"friendly_count"`
	EnemyCount        int     `yaml:"enemy_count"`
	GroundAttackRatio float64 `yaml:"ground_attack_ratio"` // Fraction of enemies that attack assets

	MaxSpeed       float64 `yaml:"max_speed"` // m/s
	WeaponRange    float64 `yaml:"weapon_range"`
	DetectionRange float64 `yaml:"detection_range"`
	FriendlyHealth float64 `yaml:"friendly_health"`
	EnemyHealth    float64 `yaml:"enemy_health"`

	Strategy  string        `yaml:"strategy"`
	Formation string        `yaml:"formation"`
	Assets    []AssetConfig `yaml:"assets"`
}

// AssetConfig places one defended asset. Radii left at zero take the defaults.
type AssetConfig struct {
	Position         core.Vector3D    `yaml:"position"`
	Value            float64          `yaml:"value"`
	ProtectionRadius float64          `yaml:"protection_radius,omitempty"`
	BreachThreshold  float64          `yaml:"breach_threshold,omitempty"`
	Waypoints        []WaypointConfig `yaml:"waypoints,omitempty"` // Dynamic-asset mode
}

// WaypointConfig is one timed position of a moving asset
type WaypointConfig struct {
	Time     float64       `yaml:"time"`
	Position core.Vector3D `yaml:"position"`
}

// AssignmentConfig holds the shared assignment constants
type AssignmentConfig struct {
	HashModulus           uint64  `yaml:"hash_modulus"`
	DistanceGain          float64 `yaml:"distance_gain"`
	Epsilon               float64 `yaml:"epsilon"`
	FriendlySensingFactor float64 `yaml:"friendly_sensing_factor"`
}

// EnemyAIConfig tunes enemy steering
type EnemyAIConfig struct {
	AirSpeed         float64 `yaml:"air_speed"`
	GroundSpeed      float64 `yaml:"ground_speed"`
	SeparationRadius float64 `yaml:"separation_radius"`
	SeparationGain   float64 `yaml:"separation_gain"`
	GroundAltitude   float64 `yaml:"ground_altitude"` // Altitude floor of ground attackers
}

// PerformanceConfig holds worker and batching settings
type PerformanceConfig struct {
	WorkerCount        int           `yaml:"worker_count"` // Decide-phase goroutines, 0 uses GOMAXPROCS
	FrameBatchSize     int           `yaml:"frame_batch_size"`
	FrameFlushInterval time.Duration `yaml:"frame_flush_interval"`
	FramePendingLimit  int           `yaml:"frame_pending_limit"` // Frames held while the sink fails, 0 uses twenty batches
}

// LoggingConfig holds logging and report settings
type LoggingConfig struct {
	ConsoleLevel  string `yaml:"console_level"`
	Verbose       bool   `yaml:"verbose"` // Log every shot and role change
	EnableAAR     bool   `yaml:"enable_aar"`
	AARFormat     string `yaml:"aar_format"` // json, markdown, html
	AAROutputPath string `yaml:"aar_output_path"`
}

// ArchiveConfig controls the SQLite run archive
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // Empty uses the CLI's archive location
}

// AssignmentParams returns the protocol constants for the core package
func (c *ScenarioConfig) AssignmentParams() core.AssignmentParams {
	return core.AssignmentParams{
		HashModulus:  c.Assignment.HashModulus,
		DistanceGain: c.Assignment.DistanceGain,
		Epsilon:      c.Assignment.Epsilon,
	}
}

// ObservationParams returns the sensing model for the core package
func (c *ScenarioConfig) ObservationParams() core.ObservationParams {
	return core.ObservationParams{FriendlySensingFactor: c.Assignment.FriendlySensingFactor}
}

// StrategyKind resolves the configured strategy name
func (c *ScenarioConfig) StrategyKind() (core.StrategyKind, error) {
	return core.ParseStrategyKind(c.Scenario.Strategy)
}

// MaxTicks is the tick budget: ceil(max_time / dt)
func (c *ScenarioConfig) MaxTicks() int {
	if c.Simulation.DT <= 0 {
		return 0
	}
	return int(math.Ceil(c.Simulation.MaxTime/c.Simulation.DT - 1e-9))
}

// Clone returns a deep copy
func (c *ScenarioConfig) Clone() *ScenarioConfig {
	out := *c
	out.Scenario.Assets = make([]AssetConfig, len(c.Scenario.Assets))
	for i, a := range c.Scenario.Assets {
		out.Scenario.Assets[i] = a
		out.Scenario.Assets[i].Waypoints = append([]WaypointConfig(nil), a.Waypoints...)
	}
	out.Navigation.Greedy.AssetBias = cloneWeights(c.Navigation.Greedy.AssetBias)
	out.Roles.GroundThreatWeights = cloneWeights(c.Roles.GroundThreatWeights)
	out.Roles.AirSwarmWeights = cloneWeights(c.Roles.AirSwarmWeights)
	return &out
}

func cloneWeights(in map[core.Role]float64) map[core.Role]float64 {
	if in == nil {
		return nil
	}
	out := make(map[core.Role]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Validate checks if the configuration is valid
func (c *ScenarioConfig) Validate() error {
	if c.Simulation.DT <= 0 {
		return invalid("simulation.dt", "must be positive, got %v", c.Simulation.DT)
	}
	if c.Simulation.MaxTime <= 0 {
		return invalid("simulation.max_time", "must be positive, got %v", c.Simulation.MaxTime)
	}
	if c.Simulation.RecordStride < 1 {
		return invalid("simulation.record_stride", "must be at least 1, got %d", c.Simulation.RecordStride)
	}
	if c.Simulation.AnalyticsStride < 1 {
		return invalid("simulation.analytics_stride", "must be at least 1, got %d", c.Simulation.AnalyticsStride)
	}

	s := c.Scenario
	if s.FriendlyCount <= 0 {
		return invalid("scenario.friendly_count", "must be positive, got %d", s.FriendlyCount)
	}
	if s.FriendlyCount > core.EnemyIDOffset {
		return invalid("scenario.friendly_count", "must not exceed %d, got %d", core.EnemyIDOffset, s.FriendlyCount)
	}
	if s.EnemyCount < 0 {
		return invalid("scenario.enemy_count", "must not be negative, got %d", s.EnemyCount)
	}
	if s.GroundAttackRatio < 0 || s.GroundAttackRatio > 1 {
		return invalid("scenario.ground_attack_ratio", "must be between 0.0 and 1.0, got %v", s.GroundAttackRatio)
	}
	for field, v := range map[string]float64{
		"scenario.max_speed":       s.MaxSpeed,
		"scenario.weapon_range":    s.WeaponRange,
		"scenario.detection_range": s.DetectionRange,
		"scenario.friendly_health": s.FriendlyHealth,
		"scenario.enemy_health":    s.EnemyHealth,
		"enemy_ai.air_speed":       c.EnemyAI.AirSpeed,
		"enemy_ai.ground_speed":    c.EnemyAI.GroundSpeed,
	} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(field, "must be a positive number, got %v", v)
		}
	}
	if _, err := core.ParseStrategyKind(s.Strategy); err != nil {
		return invalid("scenario.strategy", "%v", err)
	}
	if !validFormation(s.Formation) {
		return invalid("scenario.formation", "unknown formation %q (valid: %v)", s.Formation, Formations)
	}

	groundThreats := s.EnemyCount > 0 && s.GroundAttackRatio > 0
	if len(s.Assets) == 0 && groundThreats {
		return invalid("scenario.assets", "ground attackers require at least one asset")
	}
	for i, a := range s.Assets {
		if a.Value < 0 {
			return invalid(fmt.Sprintf("scenario.assets[%d].value", i), "must not be negative")
		}
		for j := 1; j < len(a.Waypoints); j++ {
			if a.Waypoints[j].Time < a.Waypoints[j-1].Time {
				return invalid(fmt.Sprintf("scenario.assets[%d].waypoints", i), "times must be non-decreasing")
			}
		}
	}

	if c.Assignment.HashModulus == 0 {
		return invalid("assignment.hash_modulus", "must be positive")
	}
	if c.Assignment.Epsilon <= 0 {
		return invalid("assignment.epsilon", "must be positive")
	}
	if c.Assignment.FriendlySensingFactor < 1 {
		return invalid("assignment.friendly_sensing_factor", "must be at least 1, got %v", c.Assignment.FriendlySensingFactor)
	}

	if c.Navigation.Smoothing < 0 || c.Navigation.Smoothing > 1 {
		return invalid("navigation.smoothing", "must be between 0.0 and 1.0, got %v", c.Navigation.Smoothing)
	}
	tess := c.Navigation.Tessellation
	if tess.BarrierAlpha <= 0 {
		return invalid("navigation.tessellation.barrier_alpha", "must be positive")
	}
	if tess.BarrierAlpha*c.Simulation.DT > 1 {
		return invalid("navigation.tessellation.barrier_alpha",
			"barrier_alpha*dt must not exceed 1, got %v", tess.BarrierAlpha*c.Simulation.DT)
	}
	if tess.GridX < 1 || tess.GridY < 1 || tess.GridZ < 1 {
		return invalid("navigation.tessellation.grid", "every grid dimension must be at least 1")
	}
	if c.Navigation.Flocking.MaxForce <= 0 {
		return invalid("navigation.flocking.max_force", "must be positive, got %v", c.Navigation.Flocking.MaxForce)
	}

	if c.Roles.Persistence < 0 || c.Roles.Persistence > 1 {
		return invalid("roles.persistence", "must be between 0.0 and 1.0, got %v", c.Roles.Persistence)
	}

	for name, w := range map[string]core.WeaponProfile{"combat.friendly": c.Combat.Friendly, "combat.enemy": c.Combat.Enemy} {
		if w.BaseHitProbability < 0 || w.BaseHitProbability > 1 {
			return invalid(name+".base_hit_probability", "must be between 0.0 and 1.0")
		}
		if w.DamageMin < 0 || w.DamageMin > w.DamageMax {
			return invalid(name+".damage_min", "must be between 0 and damage_max")
		}
		if w.NearFraction < 0 || w.NearFraction > 1 {
			return invalid(name+".near_fraction", "must be between 0.0 and 1.0")
		}
	}
	if c.Combat.SiegeMin < 0 || c.Combat.SiegeMin > c.Combat.SiegeMax {
		return invalid("combat.siege_min", "must be between 0 and siege_max")
	}

	if c.Performance.WorkerCount < 0 {
		return invalid("performance.worker_count", "must not be negative")
	}
	if c.Performance.FramePendingLimit < 0 {
		return invalid("performance.frame_pending_limit", "must not be negative")
	}

	return nil
}

func validFormation(name string) bool {
	for _, f := range Formations {
		if f == name {
			return true
		}
	}
	return false
}

// String returns a human-readable representation of the configuration
func (c *ScenarioConfig) String() string {
	return fmt.Sprintf(`Simulation Configuration:
  Name: %s
  Description: %s
  Time Step: %.3fs
  Max Time: %.0fs
  Seed: %d

Forces:
  Friendly Drones: %d
  Enemy Drones: %d
  Ground Attack Ratio: %.2f
  Assets: %d

Capabilities:
  Max Speed: %.1f m/s
  Weapon Range: %.0f m
  Detection Range: %.0f m
  Health (friendly/enemy): %.0f/%.0f

Navigation:
  Strategy: %s
  Formation: %s
  Smoothing: %.2f`,
		c.Simulation.Name,
		c.Simulation.Description,
		c.Simulation.DT,
		c.Simulation.MaxTime,
		c.Simulation.Seed,
		c.Scenario.FriendlyCount,
		c.Scenario.EnemyCount,
		c.Scenario.GroundAttackRatio,
		len(c.Scenario.Assets),
		c.Scenario.MaxSpeed,
		c.Scenario.WeaponRange,
		c.Scenario.DetectionRange,
		c.Scenario.FriendlyHealth,
		c.Scenario.EnemyHealth,
		c.Scenario.Strategy,
		c.Scenario.Formation,
		c.Navigation.Smoothing,
	)
}

// GetDefaultConfig returns the balanced single-asset scenario
func GetDefaultConfig() *ScenarioConfig {
	assignment := core.DefaultAssignmentParams()
	return &ScenarioConfig{
		Simulation: SimulationSettings{
			Name:            "swarm-defense",
			Description:     "Coordination-free drone swarm defense of ground assets",
			DT:              0.1,
			MaxTime:         300,
			Seed:            42,
			RecordStride:    5,
			AnalyticsStride: 1,
		},

		Scenario: ScenarioSettings{
			FriendlyCount:     18,
			EnemyCount:        15,
			GroundAttackRatio: 0.4,
			MaxSpeed:          70,
			WeaponRange:       150,
			DetectionRange:    1500,
			FriendlyHealth:    150,
			EnemyHealth:       100,
			Strategy:          string(core.StrategyGreedyConsensus),
			Formation:         FormationShield,
			Assets: []AssetConfig{
				{Position: core.Vec(0, 0, 0), Value: 1.0},
			},
		},

		Assignment: AssignmentConfig{
			HashModulus:           assignment.HashModulus,
			DistanceGain:          assignment.DistanceGain,
			Epsilon:               assignment.Epsilon,
			FriendlySensingFactor: core.DefaultObservationParams().FriendlySensingFactor,
		},

		Navigation: core.DefaultNavigationParams(),
		Roles:      core.DefaultRoleParams(),
		Combat:     core.DefaultCombatParams(),

		EnemyAI: EnemyAIConfig{
			AirSpeed:         45,
			GroundSpeed:      40,
			SeparationRadius: 40,
			SeparationGain:   0.5,
			GroundAltitude:   5,
		},

		Performance: PerformanceConfig{
			WorkerCount:        0,
			FrameBatchSize:     50,
			FrameFlushInterval: 2 * time.Second,
			FramePendingLimit:  1000,
		},

		Logging: LoggingConfig{
			ConsoleLevel:  "info",
			EnableAAR:     false,
			AARFormat:     "markdown",
			AAROutputPath: "./reports/",
		},

		Archive: ArchiveConfig{
			Enabled: false,
		},
	}
}
