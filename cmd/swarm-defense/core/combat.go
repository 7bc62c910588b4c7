package core

import (
	"math"
	"math/rand/v2"
)

// WeaponProfile describes one side's weapon performance
type WeaponProfile struct {
	BaseHitProbability float64 `yaml:"base_hit_probability"`
	NearFraction       float64 `yaml:"near_fraction"` // Fraction of range with no falloff
	RangeFalloff       float64 `yaml:"range_falloff"` // Probability lost at max range
	DamageMin          float64 `yaml:"damage_min"`
	DamageMax          float64 `yaml:"damage_max"`
	Cooldown           float64 `yaml:"cooldown"` // Seconds between shots
}

// CombatParams holds both weapon profiles and the siege model
type CombatParams struct {
	Friendly WeaponProfile `yaml:"friendly"`
	Enemy    WeaponProfile `yaml:"enemy"`
	SiegeMin float64       `yaml:"siege_min"` // Asset damage per tick per breaching enemy
	SiegeMax float64       `yaml:"siege_max"`
}

// DefaultCombatParams favors the defenders: higher hit rate and damage
func DefaultCombatParams() CombatParams {
	return CombatParams{
		Friendly: WeaponProfile{
			BaseHitProbability: 0.9,
			NearFraction:       0.3,
			RangeFalloff:       0.2,
			DamageMin:          38,
			DamageMax:          58,
			Cooldown:           0.5,
		},
		Enemy: WeaponProfile{
			BaseHitProbability: 0.55,
			NearFraction:       0.3,
			RangeFalloff:       0.25,
			DamageMin:          18,
			DamageMax:          32,
			Cooldown:           0.5,
		},
		SiegeMin: 0.15,
		SiegeMax: 0.6,
	}
}

// EventType classifies combat events
type EventType string

const (
	EventShot           EventType = "shot"
	EventHit            EventType = "hit"
	EventKill           EventType = "kill"
	EventSiege          EventType = "siege"
	EventAssetDestroyed EventType = "asset_destroyed"
)

// CombatEvent records one combat outcome
type CombatEvent struct {
	Tick       int       `json:"tick"`
	Time       float64   `json:"time"`
	Type       EventType `json:"type"`
	AttackerID int       `json:"attacker_id"`
	TargetID   int       `json:"target_id"` // Agent id, or asset id for siege events
	Distance   float64   `json:"distance"`
	Damage     float64   `json:"damage"`
}

// ShotResult is the outcome of a single engagement roll
type ShotResult struct {
	Fired       bool
	Hit         bool
	Probability float64
	Damage      float64 // Damage actually applied
	Killed      bool
}

// CombatResolver rolls hits and damage
type CombatResolver struct {
	params CombatParams
}

// NewCombatResolver creates a resolver with the given weapon profiles
func NewCombatResolver(params CombatParams) *CombatResolver {
	return &CombatResolver{params: params}
}

// Params returns the weapon and siege configuration
func (cr *CombatResolver) Params() CombatParams {
	return cr.params
}

func (cr *CombatResolver) profileFor(attacker *Agent) WeaponProfile {
	if attacker.IsFriendly() {
		return cr.params.Friendly
	}
	return cr.params.Enemy
}

// CanEngage checks range, readiness and that both sides are still active
func (cr *CombatResolver) CanEngage(attacker, target *Agent, distance float64) bool {
	if !attacker.Active() || !target.Active() {
		return false
	}
	if distance > attacker.WeaponRange {
		return false
	}
	return attacker.Cooldown <= 0
}

// HitProbability is the base probability out to the near threshold, then
// decays linearly to base-falloff at maximum range
func (cr *CombatResolver) HitProbability(attacker *Agent, distance float64) float64 {
	profile := cr.profileFor(attacker)
	return applyRangeFalloff(profile, distance, attacker.WeaponRange)
}

func applyRangeFalloff(profile WeaponProfile, distance, maxRange float64) float64 {
	prob := profile.BaseHitProbability
	near := profile.NearFraction * maxRange
	if distance > near && maxRange > near {
		ratio := (distance - near) / (maxRange - near)
		prob -= math.Min(ratio, 1.0) * profile.RangeFalloff
	}
	return math.Max(0.0, math.Min(1.0, prob))
}

// Resolve fires attacker at target, applying damage on a hit and starting the
// weapon cooldown. Nothing happens when the engagement is not possible.
func (cr *CombatResolver) Resolve(attacker, target *Agent, distance float64, rng *rand.Rand) ShotResult {
	if !cr.CanEngage(attacker, target, distance) {
		return ShotResult{}
	}

	profile := cr.profileFor(attacker)
	result := ShotResult{
		Fired:       true,
		Probability: applyRangeFalloff(profile, distance, attacker.WeaponRange),
	}
	attacker.Cooldown = profile.Cooldown

	if rng.Float64() >= result.Probability {
		return result
	}

	result.Hit = true
	damage := profile.DamageMin + rng.Float64()*(profile.DamageMax-profile.DamageMin)
	result.Damage = target.ApplyDamage(damage)
	result.Killed = !target.Active()
	return result
}

// Siege damages an asset from a ground enemy inside its breach threshold.
// It returns the damage applied, zero when the enemy is outside the threshold.
func (cr *CombatResolver) Siege(enemy *Agent, asset *Asset, rng *rand.Rand) float64 {
	if enemy.Kind != KindEnemyGround || !enemy.Active() || asset.Destroyed() {
		return 0
	}
	if enemy.Position.DistanceTo(asset.Position) > asset.BreachThreshold {
		return 0
	}
	damage := cr.params.SiegeMin + rng.Float64()*(cr.params.SiegeMax-cr.params.SiegeMin)
	return asset.ApplyDamage(damage)
}
