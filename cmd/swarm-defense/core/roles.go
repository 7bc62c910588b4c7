package core

import "math/rand/v2"

// RoleParams configures the probabilistic role state machine
type RoleParams struct {
	GroundThreatWeights map[Role]float64 `yaml:"ground_threat_weights"`
	AirSwarmWeights     map[Role]float64 `yaml:"air_swarm_weights"`
	HunterDensityRatio  float64          `yaml:"hunter_density_ratio"` // Air enemies per local friendly
	Persistence         float64          `yaml:"persistence"`          // Chance to keep a still-valid role
}

// DefaultRoleParams returns the standard role weights
func DefaultRoleParams() RoleParams {
	return RoleParams{
		GroundThreatWeights: map[Role]float64{
			RoleInterceptor: 0.55,
			RoleDefender:    0.25,
			RoleHunter:      0.20,
		},
		AirSwarmWeights: map[Role]float64{
			RoleHunter:      0.60,
			RoleDefender:    0.20,
			RoleInterceptor: 0.20,
		},
		HunterDensityRatio: 1.5,
		Persistence:        0.85,
	}
}

// RoleSelector evaluates the role transition for one agent from its own
// observation. It never looks at another agent's role.
type RoleSelector struct {
	params RoleParams
}

// NewRoleSelector creates a role selector
func NewRoleSelector(params RoleParams) *RoleSelector {
	return &RoleSelector{params: params}
}

// Next returns the role for this tick. Ground threats closing on an asset
// bias toward Interceptor, air swarms that outnumber local friendlies bias
// toward Hunter, and a quiet sky reverts to Defender.
func (rs *RoleSelector) Next(obs ObservationSet, current Role, rng *rand.Rand) Role {
	weights := rs.weightsFor(obs)
	if weights == nil {
		return RoleDefender
	}

	if w, ok := weights[current]; ok && w > 0 && rng.Float64() < rs.params.Persistence {
		return current
	}
	return drawRole(weights, rng)
}

// weightsFor picks the weight table for the observed situation, or nil for
// the default Defender posture
func (rs *RoleSelector) weightsFor(obs ObservationSet) map[Role]float64 {
	for _, enemy := range obs.Enemies {
		if enemy.Kind == KindEnemyGround && ClosingOnAsset(enemy, obs.Assets) {
			return rs.params.GroundThreatWeights
		}
	}

	air := obs.CountEnemies(KindEnemyAir)
	if air == 0 {
		return nil
	}
	local := 1 + len(obs.FriendliesWithin(obs.Self.DetectionRange))
	if float64(air)/float64(local) >= rs.params.HunterDensityRatio {
		return rs.params.AirSwarmWeights
	}
	return nil
}

// drawRole samples a role from the weights in the fixed Roles order
func drawRole(weights map[Role]float64, rng *rand.Rand) Role {
	total := 0.0
	for _, role := range Roles {
		total += weights[role]
	}
	if total <= 0 {
		return RoleDefender
	}
	pick := rng.Float64() * total
	for _, role := range Roles {
		pick -= weights[role]
		if pick < 0 {
			return role
		}
	}
	return Roles[len(Roles)-1]
}
