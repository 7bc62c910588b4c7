package core

import "math"

// QuantumParams tunes the quantum-weighted potential field
type QuantumParams struct {
	AttractGain       float64 `yaml:"attract_gain"`     // k in k/(1+d)
	TunnelingScale    float64 `yaml:"tunneling_scale"`  // Length scale of exp(-d/L)
	SecondaryWeight   float64 `yaml:"secondary_weight"` // Weight of enemies self does not own
	GroundThreatBoost float64 `yaml:"ground_threat_boost"`
	RepelGain         float64 `yaml:"repel_gain"`  // k_repel
	RepelScale        float64 `yaml:"repel_scale"` // Converts repulsion into m/s
	MinSpacing        float64 `yaml:"min_spacing"`
	NoiseSigma        float64 `yaml:"noise_sigma"`   // Per-axis tunneling noise
	ExploreSpeed      float64 `yaml:"explore_speed"` // Lateral drift with no target
}

// DefaultQuantumParams returns the standard potential-field tuning
func DefaultQuantumParams() QuantumParams {
	return QuantumParams{
		AttractGain:       10.0,
		TunnelingScale:    50.0,
		SecondaryWeight:   0.2,
		GroundThreatBoost: 3.0,
		RepelGain:         50.0,
		RepelScale:        20.0,
		MinSpacing:        30.0,
		NoiseSigma:        0.5,
		ExploreSpeed:      8.0,
	}
}

// QuantumPotential attracts toward observed enemies, weighted strongly for the
// ones self owns and weakly for the rest, repels from close friendlies, and
// perturbs the result with seeded noise
type QuantumPotential struct {
	nav    NavigationParams
	params QuantumParams
}

func (q *QuantumPotential) Kind() StrategyKind { return StrategyQuantumPotential }

func (q *QuantumPotential) ComputeVelocity(in NavInput) Vector3D {
	self := in.Obs.Self
	dt := in.DT
	if dt <= 0 {
		dt = 0.1
	}

	var v Vector3D
	attractor, ok := q.attractor(in)
	if ok {
		v = attractor.Subtract(self.Position).Scale(1 / dt).ClampMagnitude(self.MaxSpeed)
	} else if station, found := patrolStation(self, in.Obs.Assets, q.nav); found {
		v = seekVelocity(self.Position, station, self.MaxSpeed, 50)
	}

	v = v.Add(q.repulsion(in.Obs))

	if in.Rand != nil {
		noise := Vec(in.Rand.NormFloat64(), in.Rand.NormFloat64(), in.Rand.NormFloat64())
		v = v.Add(noise.Scale(q.params.NoiseSigma))

		if in.Target == nil {
			heading := v.Horizontal().Normalize()
			if heading.Magnitude() < Epsilon {
				heading = Vec(1, 0, 0)
			}
			lateral := Vec(-heading.Z, 0, heading.X)
			if in.Rand.IntN(2) == 0 {
				lateral = lateral.Scale(-1)
			}
			v = v.Add(lateral.Scale(q.params.ExploreSpeed))
		}
	}

	return v
}

// attractor is the weighted mean of led enemy positions
func (q *QuantumPotential) attractor(in NavInput) (Vector3D, bool) {
	self := in.Obs.Self
	var sum Vector3D
	total := 0.0
	for _, enemy := range in.Obs.Enemies {
		d := self.Position.DistanceTo(enemy.Position)
		w := q.params.AttractGain / (1 + d)
		w *= 1 + math.Exp(-d/q.params.TunnelingScale)
		if !in.Owns(enemy.ID) {
			w *= q.params.SecondaryWeight
		}
		if enemy.Kind == KindEnemyGround && ClosingOnAsset(enemy, in.Obs.Assets) {
			w *= q.params.GroundThreatBoost
		}
		sum = sum.Add(interceptPoint(enemy, q.nav.LeadTime).Scale(w))
		total += w
	}
	if total < Epsilon {
		return Vector3D{}, false
	}
	return sum.Scale(1 / total), true
}

// repulsion pushes away from friendlies closer than the minimum spacing
func (q *QuantumPotential) repulsion(obs ObservationSet) Vector3D {
	var push Vector3D
	for _, f := range obs.FriendliesWithin(q.params.MinSpacing) {
		away := obs.Self.Position.Subtract(f.Position)
		d := away.Magnitude()
		if d < 0.1 {
			// Coincident agents split along X by id order
			if obs.Self.ID < f.ID {
				away = Vec(-1, 0, 0)
			} else {
				away = Vec(1, 0, 0)
			}
			d = 0.1
		}
		strength := q.params.RepelGain / (d*d + 0.1)
		push = push.Add(away.Normalize().Scale(strength * q.params.RepelScale))
	}
	return push
}
