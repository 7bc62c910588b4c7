package core

// GreedyParams tunes the greedy-consensus field
type GreedyParams struct {
	TargetWeight float64          `yaml:"target_weight"`
	AssetBias    map[Role]float64 `yaml:"asset_bias"` // Asset pull weight per role
}

// DefaultGreedyParams returns the standard greedy tuning
func DefaultGreedyParams() GreedyParams {
	return GreedyParams{
		TargetWeight: 1.0,
		AssetBias: map[Role]float64{
			RoleDefender:    0.5,
			RoleInterceptor: 0.2,
			RoleHunter:      0.05,
		},
	}
}

// GreedyConsensus flies straight at the assigned target and leans toward
// undefended assets. It has no collision term: target diversity from the
// assignment protocol keeps agents apart.
type GreedyConsensus struct {
	nav    NavigationParams
	params GreedyParams
}

func (g *GreedyConsensus) Kind() StrategyKind { return StrategyGreedyConsensus }

func (g *GreedyConsensus) ComputeVelocity(in NavInput) Vector3D {
	self := in.Obs.Self

	if in.Target == nil {
		station, ok := patrolStation(self, in.Obs.Assets, g.nav)
		if !ok {
			return Vector3D{}
		}
		return seekVelocity(self.Position, station, self.MaxSpeed, 50)
	}

	pursuit := interceptPoint(in.Target, g.nav.LeadTime).Subtract(self.Position).Normalize()
	v := pursuit.Scale(self.MaxSpeed * g.params.TargetWeight)

	if asset := g.undefendedAsset(in.Obs); asset != nil {
		bias := asset.Position.Subtract(self.Position).Normalize()
		v = v.Add(bias.Scale(self.MaxSpeed * g.params.AssetBias[in.Role]))
	}

	return v
}

// undefendedAsset returns the nearest asset with no observed friendly inside
// its protection radius
func (g *GreedyConsensus) undefendedAsset(obs ObservationSet) *Asset {
	var best *Asset
	bestDist := 0.0
	for _, asset := range obs.Assets {
		defended := false
		for _, f := range obs.Friendlies {
			if f.Position.DistanceTo(asset.Position) <= asset.ProtectionRadius {
				defended = true
				break
			}
		}
		if defended {
			continue
		}
		d := obs.Self.Position.DistanceTo(asset.Position)
		if best == nil || d < bestDist {
			best, bestDist = asset, d
		}
	}
	return best
}
