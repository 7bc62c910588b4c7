package simulation

import (
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// steerEnemy computes an attacker's desired velocity. Ground attackers run at
// the nearest asset and loiter inside its breach threshold; air attackers
// chase the nearest live friendly. Both keep apart from other attackers.
func steerEnemy(self *core.Agent, agents []*core.Agent, assets []*core.Asset, ai config.EnemyAIConfig) core.Vector3D {
	var desired core.Vector3D

	switch {
	case self.Kind == core.KindEnemyGround && hasLiveAsset(assets):
		asset, _ := core.NearestAsset(self.Position, assets)
		aim := core.Vec(asset.Position.X, self.Position.Y, asset.Position.Z)
		desired = seek(self.Position, aim, ai.GroundSpeed, asset.BreachThreshold/2)
	default:
		speed := ai.AirSpeed
		if self.Kind == core.KindEnemyGround {
			speed = ai.GroundSpeed
		}
		if friendly := nearestFriendly(self, agents); friendly != nil {
			desired = seek(self.Position, friendly.Position, speed, 0)
		} else if asset, _ := core.NearestAsset(self.Position, assets); asset != nil {
			desired = seek(self.Position, asset.Position, speed, asset.BreachThreshold/2)
		}
	}

	return desired.Add(separation(self, agents, ai))
}

func hasLiveAsset(assets []*core.Asset) bool {
	for _, a := range assets {
		if !a.Destroyed() {
			return true
		}
	}
	return false
}

func nearestFriendly(self *core.Agent, agents []*core.Agent) *core.Agent {
	var best *core.Agent
	bestDist := 0.0
	for _, a := range agents {
		if !a.IsFriendly() || !a.Active() {
			continue
		}
		d := self.Position.DistanceTo(a.Position)
		if best == nil || d < bestDist || (d == bestDist && a.ID < best.ID) {
			best, bestDist = a, d
		}
	}
	return best
}

func seek(from, to core.Vector3D, speed, arriveRadius float64) core.Vector3D {
	dir, dist := core.ApproachDirection(from, to, 0)
	if arriveRadius > 0 && dist < arriveRadius {
		speed *= dist / arriveRadius
	}
	return dir.Scale(speed)
}

// separation pushes an attacker away from nearby attackers, scaled by how
// deep inside the separation radius they are
func separation(self *core.Agent, agents []*core.Agent, ai config.EnemyAIConfig) core.Vector3D {
	if ai.SeparationRadius <= 0 || ai.SeparationGain <= 0 {
		return core.Vector3D{}
	}
	var push core.Vector3D
	for _, other := range agents {
		if other.ID == self.ID || !other.IsEnemy() || !other.Active() {
			continue
		}
		away := self.Position.Subtract(other.Position)
		d := away.Magnitude()
		if d >= ai.SeparationRadius || d < core.Epsilon {
			continue
		}
		push = push.Add(away.Scale(1 / d).Scale((ai.SeparationRadius - d) / ai.SeparationRadius))
	}
	return push.Scale(self.MaxSpeed * ai.SeparationGain)
}
