package core

import "fmt"

// Kind classifies an agent by force and flight profile
type Kind string

const (
	KindFriendly    Kind = "friendly"     // Blue force - defending swarm
	KindEnemyAir    Kind = "enemy_air"    // Red force - air-to-air attacker
	KindEnemyGround Kind = "enemy_ground" // Red force - ground attack, sieges assets
)

// Role is the per-tick behavioral mode of a friendly agent
type Role string

const (
	RoleNone        Role = ""
	RoleDefender    Role = "defender"    // Hold near assets
	RoleHunter      Role = "hunter"      // Chase air threats
	RoleInterceptor Role = "interceptor" // Cut off ground attackers
)

// Roles lists the friendly roles in a fixed order for reporting
var Roles = []Role{RoleHunter, RoleDefender, RoleInterceptor}

// Default entity parameters
const (
	DefaultAssetHealth      = 100.0
	DefaultProtectionRadius = 800.0
	DefaultBreachThreshold  = 200.0
	EnemyIDOffset           = 1000
)

// Agent is a drone of either force. ID and Kind never change after spawn;
// everything else is rewritten by the stepper each tick.
type Agent struct {
	ID   int  `json:"id"`
	Kind Kind `json:"kind"`

	Position Vector3D `json:"position"`
	Velocity Vector3D `json:"velocity"`

	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`

	MaxSpeed       float64 `json:"max_speed"`
	WeaponRange    float64 `json:"weapon_range"`
	DetectionRange float64 `json:"detection_range"`

	Role     Role    `json:"role,omitempty"`
	TargetID *int    `json:"target_id,omitempty"`
	Cooldown float64 `json:"-"` // Seconds until the weapon can fire again
}

// NewFriendly creates a defending drone
func NewFriendly(id int, position Vector3D, health, maxSpeed, weaponRange, detectionRange float64) *Agent {
	return &Agent{
		ID:             id,
		Kind:           KindFriendly,
		Position:       position,
		Health:         health,
		MaxHealth:      health,
		MaxSpeed:       maxSpeed,
		WeaponRange:    weaponRange,
		DetectionRange: detectionRange,
		Role:           RoleDefender,
	}
}

// NewEnemy creates an attacking drone. Enemy ids start at EnemyIDOffset.
func NewEnemy(index int, kind Kind, position Vector3D, health, maxSpeed, weaponRange, detectionRange float64) *Agent {
	return &Agent{
		ID:             EnemyIDOffset + index,
		Kind:           kind,
		Position:       position,
		Health:         health,
		MaxHealth:      health,
		MaxSpeed:       maxSpeed,
		WeaponRange:    weaponRange,
		DetectionRange: detectionRange,
	}
}

// Active reports whether the agent still takes part in the simulation.
// Dead agents stay in the roster and are filtered with this predicate.
func (a *Agent) Active() bool {
	return a.Health > 0
}

func (a *Agent) IsFriendly() bool {
	return a.Kind == KindFriendly
}

func (a *Agent) IsEnemy() bool {
	return a.Kind == KindEnemyAir || a.Kind == KindEnemyGround
}

// ApplyDamage lowers health, clamped at zero, and returns the damage taken
func (a *Agent) ApplyDamage(amount float64) float64 {
	if amount <= 0 || a.Health <= 0 {
		return 0
	}
	applied := amount
	if applied > a.Health {
		applied = a.Health
	}
	a.Health -= applied
	return applied
}

// Clone returns a deep copy, safe to hand to decision functions
func (a *Agent) Clone() *Agent {
	c := *a
	if a.TargetID != nil {
		id := *a.TargetID
		c.TargetID = &id
	}
	return &c
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s#%d", a.Kind, a.ID)
}

// Asset is a defended ground installation
type Asset struct {
	ID               int      `json:"id"`
	Position         Vector3D `json:"position"`
	Health           float64  `json:"health"`
	MaxHealth        float64  `json:"max_health"`
	Value            float64  `json:"value"`
	ProtectionRadius float64  `json:"protection_radius"`
	BreachThreshold  float64  `json:"breach_threshold"`
}

// NewAsset creates an asset with full health and default radii
func NewAsset(id int, position Vector3D, value float64) *Asset {
	return &Asset{
		ID:               id,
		Position:         position,
		Health:           DefaultAssetHealth,
		MaxHealth:        DefaultAssetHealth,
		Value:            value,
		ProtectionRadius: DefaultProtectionRadius,
		BreachThreshold:  DefaultBreachThreshold,
	}
}

func (a *Asset) Destroyed() bool {
	return a.Health <= 0
}

// ApplyDamage lowers asset health, clamped at zero, and returns the damage taken
func (a *Asset) ApplyDamage(amount float64) float64 {
	if amount <= 0 || a.Health <= 0 {
		return 0
	}
	applied := amount
	if applied > a.Health {
		applied = a.Health
	}
	a.Health -= applied
	return applied
}

func (a *Asset) Clone() *Asset {
	c := *a
	return &c
}

// NearestAsset returns the closest non-destroyed asset to pos, or nil
func NearestAsset(pos Vector3D, assets []*Asset) (*Asset, float64) {
	var best *Asset
	bestDist := 0.0
	for _, asset := range assets {
		if asset.Destroyed() {
			continue
		}
		d := pos.DistanceTo(asset.Position)
		if best == nil || d < bestDist {
			best, bestDist = asset, d
		}
	}
	return best, bestDist
}

// ClosingOnAsset reports whether an enemy is heading for, or already inside
// the protection radius of, its nearest asset
func ClosingOnAsset(enemy *Agent, assets []*Asset) bool {
	asset, dist := NearestAsset(enemy.Position, assets)
	if asset == nil {
		return false
	}
	if dist <= asset.ProtectionRadius {
		return true
	}
	return enemy.Velocity.Dot(asset.Position.Subtract(enemy.Position)) > 0
}
