package core

import "math"

// TessellationParams tunes the coverage field and the barrier filter
type TessellationParams struct {
	GridX           int     `yaml:"grid_x"` // Lattice samples along X
	GridZ           int     `yaml:"grid_z"` // Lattice samples along Z
	GridY           int     `yaml:"grid_y"` // Lattice samples in altitude
	CellRadius      float64 `yaml:"cell_radius"`
	AltitudeCeiling float64 `yaml:"altitude_ceiling"`

	AssetDensity  float64 `yaml:"asset_density"`  // alpha
	ThreatDensity float64 `yaml:"threat_density"` // beta
	AssetSigma    float64 `yaml:"asset_sigma"`    // sigma1
	ThreatSigma   float64 `yaml:"threat_sigma"`   // sigma2
	DensityFloor  float64 `yaml:"density_floor"`  // epsilon

	CoverageGain float64 `yaml:"coverage_gain"` // k_prop
	PursuitGain  float64 `yaml:"pursuit_gain"`

	SafeDistance     float64 `yaml:"safe_distance"` // d_safe
	BarrierAlpha     float64 `yaml:"barrier_alpha"` // alpha in hdot >= -alpha*h
	ProjectionPasses int     `yaml:"projection_passes"`
}

// DefaultTessellationParams returns the standard coverage and barrier tuning
func DefaultTessellationParams() TessellationParams {
	return TessellationParams{
		GridX:            10,
		GridZ:            10,
		GridY:            5,
		CellRadius:       500.0,
		AltitudeCeiling:  200.0,
		AssetDensity:     200.0,
		ThreatDensity:    100.0,
		AssetSigma:       100.0,
		ThreatSigma:      50.0,
		DensityFloor:     0.01,
		CoverageGain:     2.0,
		PursuitGain:      4.0,
		SafeDistance:     10.0,
		BarrierAlpha:     2.0,
		ProjectionPasses: 3,
	}
}

// TessellationBarrier steers each agent toward the density-weighted centroid
// of its local Voronoi cell, blends in pursuit of its target, and filters the
// result through a control barrier on inter-agent distance
type TessellationBarrier struct {
	nav    NavigationParams
	params TessellationParams
}

func (t *TessellationBarrier) Kind() StrategyKind { return StrategyTessellationBarrier }

func (t *TessellationBarrier) ComputeVelocity(in NavInput) Vector3D {
	self := in.Obs.Self

	centroid := t.cellCentroid(in.Obs)
	strategic := centroid.Subtract(self.Position).Scale(t.params.CoverageGain)

	if in.Target == nil {
		asset, dist := NearestAsset(self.Position, in.Obs.Assets)
		if asset != nil && dist > t.params.CellRadius {
			return seekVelocity(self.Position, asset.Position, self.MaxSpeed, 0)
		}
		return strategic
	}

	tactical := interceptPoint(in.Target, t.nav.LeadTime).Subtract(self.Position).Scale(t.params.PursuitGain)

	urgency := 0.5
	if in.Primary {
		urgency = 0.8
	}
	if in.Role == RoleInterceptor && in.Target.Kind == KindEnemyGround && ClosingOnAsset(in.Target, in.Obs.Assets) {
		urgency = math.Max(urgency, 0.9)
	}

	return strategic.Lerp(tactical, urgency)
}

// cellCentroid samples a lattice around self, keeps the points nearer to self
// than to any observed friendly, and returns their density-weighted centroid
func (t *TessellationBarrier) cellCentroid(obs ObservationSet) Vector3D {
	self := obs.Self
	r := t.params.CellRadius
	neighbors := obs.FriendliesWithin(2 * r)

	floor := t.nav.AltitudeFloor
	ceiling := math.Max(t.params.AltitudeCeiling, floor)

	var weighted Vector3D
	mass := 0.0

	for i := 0; i < t.params.GridX; i++ {
		x := self.Position.X + latticeOffset(i, t.params.GridX, r)
		for k := 0; k < t.params.GridZ; k++ {
			z := self.Position.Z + latticeOffset(k, t.params.GridZ, r)
			for j := 0; j < t.params.GridY; j++ {
				y := floor + (ceiling-floor)*latticeFraction(j, t.params.GridY)
				q := Vec(x, y, z)

				own := q.DistanceTo(self.Position)
				mine := true
				for _, n := range neighbors {
					if q.DistanceTo(n.Position) < own {
						mine = false
						break
					}
				}
				if !mine {
					continue
				}

				phi := t.density(q, obs)
				weighted = weighted.Add(q.Scale(phi))
				mass += phi
			}
		}
	}

	if mass < Epsilon {
		return self.Position
	}
	return weighted.Scale(1.0 / mass)
}

// density is phi(q): background floor plus Gaussian bumps on assets and threats
func (t *TessellationBarrier) density(q Vector3D, obs ObservationSet) float64 {
	phi := t.params.DensityFloor
	s1 := 2 * t.params.AssetSigma * t.params.AssetSigma
	s2 := 2 * t.params.ThreatSigma * t.params.ThreatSigma
	for _, asset := range obs.Assets {
		d := q.Subtract(asset.Position)
		phi += t.params.AssetDensity * math.Exp(-d.Dot(d)/s1)
	}
	for _, threat := range obs.Enemies {
		d := q.Subtract(threat.Position)
		phi += t.params.ThreatDensity * math.Exp(-d.Dot(d)/s2)
	}
	return phi
}

func latticeFraction(i, n int) float64 {
	if n <= 1 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}

func latticeOffset(i, n int, r float64) float64 {
	return -r + 2*r*latticeFraction(i, n)
}

// Filter enforces hdot >= -alpha*h for h = |dx|^2 - d_safe^2 against every
// observed neighbor. Each agent takes half of the allowed closing rate, so the
// pair stays safe when both apply the same rule.
func (t *TessellationBarrier) Filter(obs ObservationSet, v Vector3D, dt float64) Vector3D {
	self := obs.Self

	type constraint struct {
		dir Vector3D // Unit vector toward the neighbor
		cap float64  // Maximum approach speed along dir
	}
	constraints := make([]constraint, 0, len(obs.Friendlies))
	for _, n := range obs.Friendlies {
		delta := n.Position.Subtract(self.Position)
		d := delta.Magnitude()
		if d < Epsilon {
			continue
		}
		constraints = append(constraints, constraint{
			dir: delta.Scale(1 / d),
			cap: t.approachCap(d),
		})
	}

	for pass := 0; pass < t.params.ProjectionPasses; pass++ {
		for _, c := range constraints {
			if approach := v.Dot(c.dir); approach > c.cap {
				v = v.Subtract(c.dir.Scale(approach - c.cap))
			}
		}
	}

	floor := t.nav.AltitudeFloor
	if dt > 0 && self.Position.Y >= floor && self.Position.Y+v.Y*dt < floor {
		v.Y = (floor - self.Position.Y) / dt
	}

	// Uniform scaling toward zero keeps the altitude bound and satisfies every
	// non-negative cap, so this pass is exact where projection was not.
	scale := 1.0
	for _, c := range constraints {
		limit := math.Max(c.cap, 0)
		if approach := v.Dot(c.dir); approach > limit {
			scale = math.Min(scale, limit/approach)
		}
	}
	return v.Scale(scale)
}

// approachCap is alpha*h/(4d): half of the closing speed allowed by the barrier
func (t *TessellationBarrier) approachCap(d float64) float64 {
	ds := t.params.SafeDistance
	h := d*d - ds*ds
	return t.params.BarrierAlpha * h / (4 * d)
}
