package core

// FlockingParams tunes the boids baseline
type FlockingParams struct {
	SeparationRadius float64 `yaml:"separation_radius"`
	NeighborRadius   float64 `yaml:"neighbor_radius"` // Alignment and cohesion range
	MaxForce         float64 `yaml:"max_force"`       // Cap on each steering force
	ProtectionRadius float64 `yaml:"protection_radius"`

	SeparationWeight float64 `yaml:"separation_weight"`
	AlignmentWeight  float64 `yaml:"alignment_weight"`
	CohesionWeight   float64 `yaml:"cohesion_weight"`
	ThreatWeight     float64 `yaml:"threat_weight"`
	AssetWeight      float64 `yaml:"asset_weight"`
}

// DefaultFlockingParams returns the standard boids tuning
func DefaultFlockingParams() FlockingParams {
	return FlockingParams{
		SeparationRadius: 50,
		NeighborRadius:   100,
		MaxForce:         5,
		ProtectionRadius: 600,
		SeparationWeight: 1.5,
		AlignmentWeight:  1.0,
		CohesionWeight:   1.0,
		ThreatWeight:     2.0,
		AssetWeight:      1.2,
	}
}

// FlockingBoids is the uncoordinated baseline: separation, alignment and
// cohesion with the observed friendlies, plus pursuit of the nearest observed
// enemy and a pull back toward the nearest asset. It ignores the shared
// assignment, so several agents routinely chase the same enemy.
type FlockingBoids struct {
	nav    NavigationParams
	params FlockingParams
}

func (f *FlockingBoids) Kind() StrategyKind { return StrategyFlockingBoids }

func (f *FlockingBoids) ComputeVelocity(in NavInput) Vector3D {
	self := in.Obs.Self
	p := f.params

	steer := f.separation(in.Obs).Scale(p.SeparationWeight).
		Add(f.alignment(in.Obs).Scale(p.AlignmentWeight)).
		Add(f.cohesion(in.Obs).Scale(p.CohesionWeight)).
		Add(f.threat(in.Obs).Scale(p.ThreatWeight)).
		Add(f.assetPull(in.Obs).Scale(p.AssetWeight))

	return self.Velocity.Add(steer).ClampMagnitude(self.MaxSpeed)
}

// steerToward turns a desired heading into a force: full speed along dir,
// minus the current velocity, capped at MaxForce
func (f *FlockingBoids) steerToward(self *Agent, dir Vector3D) Vector3D {
	if dir.Magnitude() < Epsilon {
		return Vector3D{}
	}
	desired := dir.Normalize().Scale(self.MaxSpeed)
	return desired.Subtract(self.Velocity).ClampMagnitude(f.params.MaxForce)
}

func (f *FlockingBoids) separation(obs ObservationSet) Vector3D {
	self := obs.Self
	var sum Vector3D
	count := 0
	for _, other := range obs.Friendlies {
		d := self.Position.DistanceTo(other.Position)
		if d <= Epsilon || d >= f.params.SeparationRadius {
			continue
		}
		// Closer neighbors push harder
		sum = sum.Add(self.Position.Subtract(other.Position).Normalize().Scale(1 / d))
		count++
	}
	if count == 0 {
		return Vector3D{}
	}
	return f.steerToward(self, sum.Scale(1/float64(count)))
}

func (f *FlockingBoids) alignment(obs ObservationSet) Vector3D {
	self := obs.Self
	var sum Vector3D
	count := 0
	for _, other := range obs.Friendlies {
		if self.Position.DistanceTo(other.Position) < f.params.NeighborRadius {
			sum = sum.Add(other.Velocity)
			count++
		}
	}
	if count == 0 {
		return Vector3D{}
	}
	return f.steerToward(self, sum.Scale(1/float64(count)))
}

func (f *FlockingBoids) cohesion(obs ObservationSet) Vector3D {
	self := obs.Self
	var sum Vector3D
	count := 0
	for _, other := range obs.Friendlies {
		if self.Position.DistanceTo(other.Position) < f.params.NeighborRadius {
			sum = sum.Add(other.Position)
			count++
		}
	}
	if count == 0 {
		return Vector3D{}
	}
	centroid := sum.Scale(1 / float64(count))
	return f.steerToward(self, centroid.Subtract(self.Position))
}

// threat chases the nearest observed enemy. Enemies are already filtered to
// detection range.
func (f *FlockingBoids) threat(obs ObservationSet) Vector3D {
	self := obs.Self
	var nearest *Agent
	best := 0.0
	for _, enemy := range obs.Enemies {
		d := self.Position.DistanceTo(enemy.Position)
		if nearest == nil || d < best {
			nearest, best = enemy, d
		}
	}
	if nearest == nil {
		return Vector3D{}
	}
	return f.steerToward(self, interceptPoint(nearest, f.nav.LeadTime).Subtract(self.Position))
}

// assetPull only acts once self has strayed outside the protection radius
func (f *FlockingBoids) assetPull(obs ObservationSet) Vector3D {
	self := obs.Self
	asset, d := NearestAsset(self.Position, obs.Assets)
	if asset == nil || d <= f.params.ProtectionRadius {
		return Vector3D{}
	}
	return f.steerToward(self, asset.Position.Subtract(self.Position))
}
