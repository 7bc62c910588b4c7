package simulation

import (
	"sort"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// AssetSchedule moves an asset over simulated time
type AssetSchedule interface {
	PositionAt(t float64) core.Vector3D
}

// Waypoint is a timed asset position
type Waypoint struct {
	Time     float64
	Position core.Vector3D
}

// WaypointSchedule interpolates linearly between waypoints and holds the
// first and last positions outside their time range
type WaypointSchedule struct {
	waypoints []Waypoint
}

// NewWaypointSchedule creates a schedule; waypoints are ordered by time
func NewWaypointSchedule(waypoints []Waypoint) *WaypointSchedule {
	sorted := append([]Waypoint(nil), waypoints...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &WaypointSchedule{waypoints: sorted}
}

// PositionAt returns the interpolated position at time t
func (s *WaypointSchedule) PositionAt(t float64) core.Vector3D {
	n := len(s.waypoints)
	if n == 0 {
		return core.Vector3D{}
	}
	if t <= s.waypoints[0].Time {
		return s.waypoints[0].Position
	}
	if t >= s.waypoints[n-1].Time {
		return s.waypoints[n-1].Position
	}

	i := sort.Search(n, func(i int) bool { return s.waypoints[i].Time > t })
	prev, next := s.waypoints[i-1], s.waypoints[i]
	span := next.Time - prev.Time
	if span <= 0 {
		return next.Position
	}
	return prev.Position.Lerp(next.Position, (t-prev.Time)/span)
}

// schedulesFromConfig builds a schedule for every asset with waypoints
func schedulesFromConfig(assets []config.AssetConfig) map[int]AssetSchedule {
	schedules := make(map[int]AssetSchedule)
	for i, a := range assets {
		if len(a.Waypoints) == 0 {
			continue
		}
		schedules[i] = NewWaypointSchedule(toWaypoints(a.Waypoints))
	}
	return schedules
}
