package core

import "sort"

// ObservationParams controls how far an agent can see
type ObservationParams struct {
	// FriendlySensingFactor multiplies detection range for sensing other
	// friendlies. Two friendlies observing the same enemy are at most two
	// detection ranges apart, so a factor of 2 lets every agent see all of
	// its rivals for any enemy it observes.
	FriendlySensingFactor float64
}

// DefaultObservationParams returns the standard sensing model
func DefaultObservationParams() ObservationParams {
	return ObservationParams{FriendlySensingFactor: 2.0}
}

// ObservationSet is everything a single agent is allowed to base decisions on
type ObservationSet struct {
	Self       *Agent
	Enemies    []*Agent // Active enemies within detection range, by id
	Friendlies []*Agent // Active friendlies within sensing range excluding self, by id
	Assets     []*Asset // Non-destroyed assets, by id
}

// Observe filters the roster down to what self can sense. The returned
// entities are the caller's snapshot pointers and must be treated as read-only.
func Observe(self *Agent, agents []*Agent, assets []*Asset, params ObservationParams) ObservationSet {
	obs := ObservationSet{Self: self}

	sensing := self.DetectionRange * params.FriendlySensingFactor
	if params.FriendlySensingFactor <= 0 {
		sensing = self.DetectionRange
	}

	for _, other := range agents {
		if other.ID == self.ID || !other.Active() {
			continue
		}
		d := self.Position.DistanceTo(other.Position)
		if other.IsEnemy() != self.IsEnemy() {
			if d <= self.DetectionRange {
				obs.Enemies = append(obs.Enemies, other)
			}
			continue
		}
		if d <= sensing {
			obs.Friendlies = append(obs.Friendlies, other)
		}
	}

	for _, asset := range assets {
		if !asset.Destroyed() {
			obs.Assets = append(obs.Assets, asset)
		}
	}

	sort.Slice(obs.Enemies, func(i, j int) bool { return obs.Enemies[i].ID < obs.Enemies[j].ID })
	sort.Slice(obs.Friendlies, func(i, j int) bool { return obs.Friendlies[i].ID < obs.Friendlies[j].ID })
	sort.Slice(obs.Assets, func(i, j int) bool { return obs.Assets[i].ID < obs.Assets[j].ID })

	return obs
}

// Enemy returns the observed enemy with the given id
func (o ObservationSet) Enemy(id int) (*Agent, bool) {
	for _, e := range o.Enemies {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// FriendliesWithin returns observed friendlies closer than radius to self
func (o ObservationSet) FriendliesWithin(radius float64) []*Agent {
	var out []*Agent
	for _, f := range o.Friendlies {
		if o.Self.Position.DistanceTo(f.Position) <= radius {
			out = append(out, f)
		}
	}
	return out
}

// CountEnemies returns the number of observed enemies of the given kind
func (o ObservationSet) CountEnemies(kind Kind) int {
	n := 0
	for _, e := range o.Enemies {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
