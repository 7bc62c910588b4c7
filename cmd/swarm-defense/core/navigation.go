package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// StrategyKind selects one of the interchangeable navigation policies
type StrategyKind string

const (
	StrategyGreedyConsensus     StrategyKind = "greedy-consensus"
	StrategyTessellationBarrier StrategyKind = "tessellation-barrier"
	StrategyQuantumPotential    StrategyKind = "quantum-potential"
	StrategyFlockingBoids       StrategyKind = "flocking-boids"
)

// StrategyKinds lists every known strategy in display order
var StrategyKinds = []StrategyKind{
	StrategyGreedyConsensus,
	StrategyTessellationBarrier,
	StrategyQuantumPotential,
	StrategyFlockingBoids,
}

var strategyAliases = map[string]StrategyKind{
	"greedy-consensus":     StrategyGreedyConsensus,
	"greedy":               StrategyGreedyConsensus,
	"cbba":                 StrategyGreedyConsensus,
	"tessellation-barrier": StrategyTessellationBarrier,
	"tessellation":         StrategyTessellationBarrier,
	"cvt-cbf":              StrategyTessellationBarrier,
	"quantum-potential":    StrategyQuantumPotential,
	"quantum":              StrategyQuantumPotential,
	"qipfd":                StrategyQuantumPotential,
	"flocking-boids":       StrategyFlockingBoids,
	"flocking":             StrategyFlockingBoids,
	"boids":                StrategyFlockingBoids,
}

// ParseStrategyKind resolves a strategy name or alias
func ParseStrategyKind(name string) (StrategyKind, error) {
	if kind, ok := strategyAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unknown navigation strategy %q", name)
}

// Description returns a one-line summary for listings
func (k StrategyKind) Description() string {
	switch k {
	case StrategyGreedyConsensus:
		return "Pursue the deterministically assigned target with an asset-protection bias"
	case StrategyTessellationBarrier:
		return "Local Voronoi coverage weighted by threat density, with a control-barrier collision filter"
	case StrategyQuantumPotential:
		return "Ownership-gated potential field with tunneling noise and friendly repulsion"
	case StrategyFlockingBoids:
		return "Uncoordinated boids baseline that chases the nearest enemy"
	default:
		return ""
	}
}

// NavInput is everything a strategy may use to pick a velocity
type NavInput struct {
	Obs     ObservationSet
	Target  *Agent // Current target, nil when none is observed
	Primary bool   // Whether self is the deterministic owner of Target
	Owned   map[int]struct{}
	Role    Role
	Tick    int
	DT      float64
	Rand    *rand.Rand // Seeded per agent and tick
}

// Owns reports whether self is the deterministic owner of an enemy
func (in NavInput) Owns(enemyID int) bool {
	_, ok := in.Owned[enemyID]
	return ok
}

// Strategy converts an observation into a raw desired velocity. The stepper
// clamps and smooths whatever is returned.
type Strategy interface {
	Kind() StrategyKind
	ComputeVelocity(in NavInput) Vector3D
}

// SafetyFilter is implemented by strategies that must correct the final,
// already smoothed velocity
type SafetyFilter interface {
	Filter(obs ObservationSet, v Vector3D, dt float64) Vector3D
}

// NavigationParams holds the tunables of every strategy
type NavigationParams struct {
	Smoothing     float64 `yaml:"smoothing"`      // Weight of the new velocity in the blend
	AltitudeFloor float64 `yaml:"altitude_floor"` // Minimum friendly altitude
	PatrolRadius  float64 `yaml:"patrol_radius"`  // Station distance from the nearest asset
	PatrolHeight  float64 `yaml:"patrol_height"`
	LeadTime      float64 `yaml:"lead_time"` // Seconds of target motion to lead

	Greedy       GreedyParams       `yaml:"greedy"`
	Tessellation TessellationParams `yaml:"tessellation"`
	Quantum      QuantumParams      `yaml:"quantum"`
	Flocking     FlockingParams     `yaml:"flocking"`
}

// DefaultNavigationParams returns the standard tuning
func DefaultNavigationParams() NavigationParams {
	return NavigationParams{
		Smoothing:     0.7,
		AltitudeFloor: 20.0,
		PatrolRadius:  450.0,
		PatrolHeight:  80.0,
		LeadTime:      0.5,
		Greedy:        DefaultGreedyParams(),
		Tessellation:  DefaultTessellationParams(),
		Quantum:       DefaultQuantumParams(),
		Flocking:      DefaultFlockingParams(),
	}
}

// NewStrategy is the single dispatch point from a configured kind to a policy
func NewStrategy(kind StrategyKind, params NavigationParams) (Strategy, error) {
	switch kind {
	case StrategyGreedyConsensus:
		return &GreedyConsensus{nav: params, params: params.Greedy}, nil
	case StrategyTessellationBarrier:
		return &TessellationBarrier{nav: params, params: params.Tessellation}, nil
	case StrategyQuantumPotential:
		return &QuantumPotential{nav: params, params: params.Quantum}, nil
	case StrategyFlockingBoids:
		return &FlockingBoids{nav: params, params: params.Flocking}, nil
	default:
		return nil, fmt.Errorf("unknown navigation strategy %q", kind)
	}
}

// Smooth clamps a raw velocity to max speed and blends it with the previous
// velocity: smoothing*new + (1-smoothing)*old
func Smooth(raw, previous Vector3D, maxSpeed, smoothing float64) Vector3D {
	if !raw.IsFinite() {
		raw = Vector3D{}
	}
	clamped := raw.ClampMagnitude(maxSpeed)
	return previous.Lerp(clamped, smoothing).ClampMagnitude(maxSpeed)
}

// interceptPoint leads a moving target by leadTime seconds
func interceptPoint(target *Agent, leadTime float64) Vector3D {
	return target.Position.Add(target.Velocity.Scale(leadTime))
}

// patrolStation is the point on the patrol ring around the nearest asset
// closest to self
func patrolStation(self *Agent, assets []*Asset, nav NavigationParams) (Vector3D, bool) {
	asset, _ := NearestAsset(self.Position, assets)
	if asset == nil {
		return Vector3D{}, false
	}
	radial := self.Position.Subtract(asset.Position).Horizontal().Normalize()
	if radial.Magnitude() < Epsilon {
		// Directly overhead: pick a bearing from the id so agents spread out
		angle := float64(self.ID) * 2.399963 // golden angle
		radial = Vec(math.Cos(angle), 0, math.Sin(angle))
	}
	station := asset.Position.Add(radial.Scale(nav.PatrolRadius))
	station.Y = asset.Position.Y + nav.PatrolHeight
	return station, true
}

// seekVelocity returns a velocity of magnitude speed toward point, slowing
// linearly inside arriveRadius
func seekVelocity(from, point Vector3D, speed, arriveRadius float64) Vector3D {
	dir, dist := ApproachDirection(from, point, 0)
	if arriveRadius > 0 && dist < arriveRadius {
		speed *= dist / arriveRadius
	}
	return dir.Scale(speed)
}

// AgentRand derives the seeded random stream of one agent on one tick. The
// result depends only on its arguments, so decisions can run in any order.
func AgentRand(seed int64, tick, agentID int, stream uint64) *rand.Rand {
	s1 := uint64(seed)*0x9e3779b97f4a7c15 ^ uint64(tick)*0xbf58476d1ce4e5b9
	s2 := uint64(agentID)*0x94d049bb133111eb ^ stream*0xd6e8feb86659fd93
	return rand.New(rand.NewPCG(s1, s2))
}
