package simulation

import (
	"math"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Termination outcomes
const (
	OutcomeEnemiesDestroyed    = "enemies_destroyed"
	OutcomeFriendliesDestroyed = "friendlies_destroyed"
	OutcomeAssetsDestroyed     = "assets_destroyed"
	OutcomeTimeExpired         = "time_expired"
	OutcomeStopped             = "stopped"
	OutcomeFault               = "fault"
)

// StatusIncomplete marks statistics requested before a run has finished
const StatusIncomplete = "incomplete"

// missionKillFraction is the share of attackers that must be destroyed for
// the mission to succeed
const missionKillFraction = 0.8

// StatisticsReport summarizes a finished run. Before completion only
// Complete and Status are set.
type StatisticsReport struct {
	Complete bool   `json:"complete"`
	Status   string `json:"status"`

	Strategy string  `json:"strategy,omitempty"`
	Seed     int64   `json:"seed,omitempty"`
	Outcome  string  `json:"outcome,omitempty"`
	Duration float64 `json:"duration"` // Simulated seconds
	Ticks    int     `json:"ticks"`

	FriendlyTotal  int `json:"friendly_total"`
	EnemyTotal     int `json:"enemy_total"`
	FriendlyLosses int `json:"friendly_losses"`
	EnemyLosses    int `json:"enemy_losses"`

	SurvivalRate float64 `json:"survival_rate"` // Surviving friendlies / friendlies
	KillRatio    float64 `json:"kill_ratio"`    // Enemy losses / max(friendly losses, 1)

	AssetsTotal     int  `json:"assets_total"`
	AssetsProtected int  `json:"assets_protected"` // Alive with no ground attacker inside the breach threshold
	MissionSuccess  bool `json:"mission_success"`

	ShotsFired   int     `json:"shots_fired"`
	Hits         int     `json:"hits"`
	Accuracy     float64 `json:"accuracy"`
	CombatEvents int     `json:"combat_events"`
}

func incompleteReport(status string) StatisticsReport {
	return StatisticsReport{Complete: false, Status: status}
}

// combatTally counts combat activity over a run
type combatTally struct {
	shots  int
	hits   int
	events int
}

func buildReport(state State, outcome, strategy string, seed int64, tick int, elapsed float64,
	agents []*core.Agent, assets []*core.Asset, tally combatTally) StatisticsReport {

	r := StatisticsReport{
		Complete:     true,
		Status:       string(state),
		Strategy:     strategy,
		Seed:         seed,
		Outcome:      outcome,
		Duration:     elapsed,
		Ticks:        tick,
		ShotsFired:   tally.shots,
		Hits:         tally.hits,
		CombatEvents: tally.events,
		AssetsTotal:  len(assets),
	}

	for _, a := range agents {
		if a.IsFriendly() {
			r.FriendlyTotal++
			if !a.Active() {
				r.FriendlyLosses++
			}
		} else {
			r.EnemyTotal++
			if !a.Active() {
				r.EnemyLosses++
			}
		}
	}

	if r.FriendlyTotal > 0 {
		r.SurvivalRate = float64(r.FriendlyTotal-r.FriendlyLosses) / float64(r.FriendlyTotal)
	}
	r.KillRatio = float64(r.EnemyLosses) / math.Max(float64(r.FriendlyLosses), 1)
	if r.ShotsFired > 0 {
		r.Accuracy = float64(r.Hits) / float64(r.ShotsFired)
	}

	for _, asset := range assets {
		if !asset.Destroyed() && !core.AssetBreached(asset, agents) {
			r.AssetsProtected++
		}
	}

	enemiesHandled := r.EnemyTotal == 0 ||
		float64(r.EnemyLosses) >= missionKillFraction*float64(r.EnemyTotal)
	r.MissionSuccess = r.AssetsProtected == r.AssetsTotal && enemiesHandled

	return r
}
