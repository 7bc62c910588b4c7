package simulation

import "github.com/picogrid/swarm-defense/cmd/swarm-defense/core"

// AnalyticsSeries holds time series sampled from recorded frames
type AnalyticsSeries struct {
	Timestamps     []float64           `json:"timestamps"`
	FriendlyCounts []int               `json:"friendly_counts"`
	EnemyCounts    []int               `json:"enemy_counts"`
	Roles          map[core.Role][]int `json:"roles"`        // Live friendlies per role
	AssetHealth    []float64           `json:"asset_health"` // Mean over assets
}

func newAnalyticsSeries() AnalyticsSeries {
	roles := make(map[core.Role][]int, len(core.Roles))
	for _, r := range core.Roles {
		roles[r] = nil
	}
	return AnalyticsSeries{Roles: roles}
}

// sample appends one point taken from a frame
func (s *AnalyticsSeries) sample(frame core.Frame) {
	friendly, enemy := frame.ActiveCounts()
	s.Timestamps = append(s.Timestamps, frame.Time)
	s.FriendlyCounts = append(s.FriendlyCounts, friendly)
	s.EnemyCounts = append(s.EnemyCounts, enemy)

	counts := make(map[core.Role]int, len(core.Roles))
	for _, a := range frame.Agents {
		if a.Kind == core.KindFriendly && a.Health > 0 {
			counts[a.Role]++
		}
	}
	for _, r := range core.Roles {
		s.Roles[r] = append(s.Roles[r], counts[r])
	}

	mean := 0.0
	if len(frame.Assets) > 0 {
		for _, asset := range frame.Assets {
			mean += asset.Health
		}
		mean /= float64(len(frame.Assets))
	}
	s.AssetHealth = append(s.AssetHealth, mean)
}

// clone deep-copies the series so callers cannot race the engine
func (s AnalyticsSeries) clone() AnalyticsSeries {
	out := AnalyticsSeries{
		Timestamps:     append([]float64(nil), s.Timestamps...),
		FriendlyCounts: append([]int(nil), s.FriendlyCounts...),
		EnemyCounts:    append([]int(nil), s.EnemyCounts...),
		AssetHealth:    append([]float64(nil), s.AssetHealth...),
		Roles:          make(map[core.Role][]int, len(s.Roles)),
	}
	for r, series := range s.Roles {
		out.Roles[r] = append([]int(nil), series...)
	}
	return out
}

// Len returns the number of samples
func (s AnalyticsSeries) Len() int {
	return len(s.Timestamps)
}
