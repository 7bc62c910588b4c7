package simulation

import (
	"math"
	"math/rand/v2"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

const (
	goldenAngle = 2.399963229728653

	shieldRingCapacity = 8
	shieldRingRadius   = 380.0
	shieldRingSpacing  = 130.0
	shieldAltitude     = 120.0
	shieldAltitudeStep = 18.0

	orbitalRadius = 350.0
	orbitalHeight = 420.0

	veilRadius = 600.0

	waveColumns = 20
	waveSpacing = 40.0
	waveOffset  = 300.0
	waveHeight  = 100.0

	spawnJitter = 3.0

	enemyMinDistance  = 1000.0
	enemyMaxDistance  = 1400.0
	airMinAltitude    = 50.0
	airMaxAltitude    = 100.0
	groundMinAltitude = 5.0
	groundMaxAltitude = 15.0
)

// spawnAssets creates the assets in configuration order; ids are indices
func spawnAssets(cfgs []config.AssetConfig) []*core.Asset {
	assets := make([]*core.Asset, 0, len(cfgs))
	for i, c := range cfgs {
		position := c.Position
		if len(c.Waypoints) > 0 {
			position = NewWaypointSchedule(toWaypoints(c.Waypoints)).PositionAt(0)
		}
		asset := core.NewAsset(i, position, c.Value)
		if c.ProtectionRadius > 0 {
			asset.ProtectionRadius = c.ProtectionRadius
		}
		if c.BreachThreshold > 0 {
			asset.BreachThreshold = c.BreachThreshold
		}
		assets = append(assets, asset)
	}
	return assets
}

func toWaypoints(cfgs []config.WaypointConfig) []Waypoint {
	points := make([]Waypoint, len(cfgs))
	for i, w := range cfgs {
		points[i] = Waypoint{Time: w.Time, Position: w.Position}
	}
	return points
}

// anchorPoint is the first asset's position, or the origin
func anchorPoint(assets []*core.Asset) core.Vector3D {
	if len(assets) == 0 {
		return core.Vector3D{}
	}
	return assets[0].Position
}

// spawnFriendlies places the defending swarm in its formation around the anchor
func spawnFriendlies(cfg *config.ScenarioConfig, anchor core.Vector3D, rng *rand.Rand) []*core.Agent {
	n := cfg.Scenario.FriendlyCount
	positions := formationPositions(cfg.Scenario.Formation, n, anchor, rng)

	floor := cfg.Navigation.AltitudeFloor
	for i := range positions {
		if positions[i].Y < floor {
			positions[i].Y = floor
		}
	}
	ensureSpacing(positions, 2*cfg.Navigation.Tessellation.SafeDistance)

	s := cfg.Scenario
	friendlies := make([]*core.Agent, n)
	for i, pos := range positions {
		friendlies[i] = core.NewFriendly(i, pos, s.FriendlyHealth, s.MaxSpeed, s.WeaponRange, s.DetectionRange)
	}
	return friendlies
}

func formationPositions(formation string, n int, anchor core.Vector3D, rng *rand.Rand) []core.Vector3D {
	positions := make([]core.Vector3D, n)
	for i := 0; i < n; i++ {
		var offset core.Vector3D
		switch formation {
		case config.FormationOrbital:
			// Full spherical shell above the anchor
			h := 1 - 2*(float64(i)+0.5)/float64(n)
			r := orbitalRadius * math.Sqrt(1-h*h)
			theta := float64(i) * goldenAngle
			offset = core.Vec(r*math.Cos(theta), orbitalHeight+orbitalRadius*h, r*math.Sin(theta))
		case config.FormationVeil:
			// Upper hemisphere screen
			h := (float64(i) + 0.5) / float64(n)
			r := veilRadius * math.Sqrt(1-h*h)
			theta := float64(i) * goldenAngle
			offset = core.Vec(r*math.Cos(theta), veilRadius*h, r*math.Sin(theta))
		case config.FormationWave:
			row, col := i/waveColumns, i%waveColumns
			cols := math.Min(float64(n), waveColumns)
			offset = core.Vec((float64(col)-(cols-1)/2)*waveSpacing, waveHeight, waveOffset+float64(row)*waveSpacing)
		default:
			ring := i / shieldRingCapacity
			slot := i % shieldRingCapacity
			radius := shieldRingRadius + float64(ring)*shieldRingSpacing
			theta := 2*math.Pi*float64(slot)/shieldRingCapacity + float64(ring)*math.Pi/shieldRingCapacity
			offset = core.Vec(radius*math.Cos(theta), shieldAltitude+float64(ring)*shieldAltitudeStep, radius*math.Sin(theta))
		}
		jitter := core.Vec(jitterValue(rng), jitterValue(rng), jitterValue(rng))
		positions[i] = anchor.Add(offset).Add(jitter)
	}
	return positions
}

func jitterValue(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * spawnJitter
}

// ensureSpacing lifts any position closer than minSep to an earlier one until
// every pair is at least minSep apart
func ensureSpacing(positions []core.Vector3D, minSep float64) {
	if minSep <= 0 {
		return
	}
	for i := 1; i < len(positions); i++ {
		for moved := true; moved; {
			moved = false
			for j := 0; j < i; j++ {
				if positions[i].DistanceTo(positions[j]) < minSep {
					positions[i].Y += minSep
					moved = true
				}
			}
		}
	}
}

// spawnEnemies places attackers on a ring around the anchor. The first
// round(count*ratio) of them are ground attackers.
func spawnEnemies(cfg *config.ScenarioConfig, anchor core.Vector3D, rng *rand.Rand) []*core.Agent {
	s := cfg.Scenario
	groundCount := int(math.Round(float64(s.EnemyCount) * s.GroundAttackRatio))

	enemies := make([]*core.Agent, s.EnemyCount)
	for i := range enemies {
		bearing := rng.Float64() * 2 * math.Pi
		distance := enemyMinDistance + rng.Float64()*(enemyMaxDistance-enemyMinDistance)

		kind := core.KindEnemyAir
		speed := cfg.EnemyAI.AirSpeed
		altitude := airMinAltitude + rng.Float64()*(airMaxAltitude-airMinAltitude)
		if i < groundCount {
			kind = core.KindEnemyGround
			speed = cfg.EnemyAI.GroundSpeed
			altitude = groundMinAltitude + rng.Float64()*(groundMaxAltitude-groundMinAltitude)
		}

		pos := core.Vec(
			anchor.X+distance*math.Cos(bearing),
			anchor.Y+altitude,
			anchor.Z+distance*math.Sin(bearing),
		)
		enemies[i] = core.NewEnemy(i, kind, pos, s.EnemyHealth, speed, s.WeaponRange, s.DetectionRange)
	}
	return enemies
}
