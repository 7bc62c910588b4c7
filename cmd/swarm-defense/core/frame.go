package core

import "sort"

// AgentState is the per-frame snapshot of one agent
type AgentState struct {
	ID       int      `json:"id"`
	Kind     Kind     `json:"kind"`
	Position Vector3D `json:"position"`
	Velocity Vector3D `json:"velocity"`
	Health   float64  `json:"health"`
	Role     Role     `json:"role,omitempty"`
	TargetID *int     `json:"target_id,omitempty"`
}

// AssetState is the per-frame snapshot of one asset
type AssetState struct {
	ID       int      `json:"id"`
	Position Vector3D `json:"position"`
	Health   float64  `json:"health"`
	Breached bool     `json:"breached"`
}

// Assignment records which friendly owned an enemy on a tick
type Assignment struct {
	EnemyID int `json:"enemy_id"`
	OwnerID int `json:"owner_id"`
}

// Frame is a recorded snapshot of the whole simulation
type Frame struct {
	Tick        int          `json:"tick"`
	Time        float64      `json:"time"`
	Agents      []AgentState `json:"agents"`
	Assets      []AssetState `json:"assets"`
	Assignments []Assignment `json:"assignments"`
}

// NewFrame snapshots agents and assets. Agents are recorded dead or alive so
// health histories stay complete.
func NewFrame(tick int, t float64, agents []*Agent, assets []*Asset, owners map[int]int) Frame {
	frame := Frame{
		Tick:        tick,
		Time:        t,
		Agents:      make([]AgentState, 0, len(agents)),
		Assets:      make([]AssetState, 0, len(assets)),
		Assignments: make([]Assignment, 0, len(owners)),
	}

	for _, a := range agents {
		state := AgentState{
			ID:       a.ID,
			Kind:     a.Kind,
			Position: a.Position,
			Velocity: a.Velocity,
			Health:   a.Health,
			Role:     a.Role,
		}
		if a.TargetID != nil {
			id := *a.TargetID
			state.TargetID = &id
		}
		frame.Agents = append(frame.Agents, state)
	}
	sort.Slice(frame.Agents, func(i, j int) bool { return frame.Agents[i].ID < frame.Agents[j].ID })

	for _, asset := range assets {
		frame.Assets = append(frame.Assets, AssetState{
			ID:       asset.ID,
			Position: asset.Position,
			Health:   asset.Health,
			Breached: AssetBreached(asset, agents),
		})
	}
	sort.Slice(frame.Assets, func(i, j int) bool { return frame.Assets[i].ID < frame.Assets[j].ID })

	for enemyID, ownerID := range owners {
		frame.Assignments = append(frame.Assignments, Assignment{EnemyID: enemyID, OwnerID: ownerID})
	}
	sort.Slice(frame.Assignments, func(i, j int) bool {
		return frame.Assignments[i].EnemyID < frame.Assignments[j].EnemyID
	})

	return frame
}

// AssetBreached reports whether a live ground enemy is inside the asset's
// breach threshold
func AssetBreached(asset *Asset, agents []*Agent) bool {
	for _, a := range agents {
		if a.Kind != KindEnemyGround || !a.Active() {
			continue
		}
		if a.Position.DistanceTo(asset.Position) <= asset.BreachThreshold {
			return true
		}
	}
	return false
}

// Restore rebuilds live entities from a frame. Agent parameters that frames
// do not carry (speed, ranges, max health) are taken from the template
// lookup, keyed by id.
func (f Frame) Restore(template func(id int) *Agent) []*Agent {
	agents := make([]*Agent, 0, len(f.Agents))
	for _, s := range f.Agents {
		var a *Agent
		if t := template(s.ID); t != nil {
			a = t.Clone()
		} else {
			a = &Agent{ID: s.ID, Kind: s.Kind}
		}
		a.Position = s.Position
		a.Velocity = s.Velocity
		a.Health = s.Health
		a.Role = s.Role
		a.TargetID = s.TargetID
		agents = append(agents, a)
	}
	return agents
}

// Owners returns the assignment table as a map from enemy id to owner id
func (f Frame) Owners() map[int]int {
	owners := make(map[int]int, len(f.Assignments))
	for _, a := range f.Assignments {
		owners[a.EnemyID] = a.OwnerID
	}
	return owners
}

// Agent returns the recorded state of one agent
func (f Frame) Agent(id int) (AgentState, bool) {
	i := sort.Search(len(f.Agents), func(i int) bool { return f.Agents[i].ID >= id })
	if i < len(f.Agents) && f.Agents[i].ID == id {
		return f.Agents[i], true
	}
	return AgentState{}, false
}

// ActiveCounts returns the number of live friendlies and enemies
func (f Frame) ActiveCounts() (friendly, enemy int) {
	for _, a := range f.Agents {
		if a.Health <= 0 {
			continue
		}
		if a.Kind == KindFriendly {
			friendly++
		} else {
			enemy++
		}
	}
	return friendly, enemy
}
