package core

import "math"

// AssignmentParams are the constants every agent must share for
// communication-free assignment to agree
type AssignmentParams struct {
	HashModulus  uint64  `yaml:"hash_modulus"`  // K in hash mod K
	DistanceGain float64 `yaml:"distance_gain"` // c in c / max(d, eps)
	Epsilon      float64 `yaml:"epsilon"`       // Minimum distance used in scoring
}

// DefaultAssignmentParams returns K=1000, c=1000, eps=1
func DefaultAssignmentParams() AssignmentParams {
	return AssignmentParams{
		HashModulus:  1000,
		DistanceGain: 1000.0,
		Epsilon:      1.0,
	}
}

// Bid is one agent's claim strength on one candidate
type Bid struct {
	AgentID     int
	CandidateID int
	Score       float64
	Distance    float64
}

// PairHash mixes an (agent, candidate) pair into a well-distributed integer.
// It is a pure function of the ids.
func PairHash(agentID, candidateID int) uint64 {
	x := uint64(agentID)*7919 + uint64(candidateID)*6547
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Score computes hash(agent, candidate) mod K + c / max(distance, eps)
func Score(agentID, candidateID int, distance float64, params AssignmentParams) float64 {
	k := params.HashModulus
	if k == 0 {
		k = 1
	}
	eps := math.Max(params.Epsilon, Epsilon)
	return float64(PairHash(agentID, candidateID)%k) + params.DistanceGain/math.Max(distance, eps)
}

// NewBid scores agent against candidate at their current separation
func NewBid(agent, candidate *Agent, params AssignmentParams) Bid {
	d := agent.Position.DistanceTo(candidate.Position)
	return Bid{
		AgentID:     agent.ID,
		CandidateID: candidate.ID,
		Score:       Score(agent.ID, candidate.ID, d, params),
		Distance:    d,
	}
}

// Outranks reports whether bid a beats bid b: higher score, then smaller
// distance, then lower agent id
func Outranks(a, b Bid) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.AgentID < b.AgentID
}

// Assigner evaluates the assignment protocol from one agent's observation
type Assigner struct {
	params AssignmentParams
}

// NewAssigner creates an assigner with the shared protocol constants
func NewAssigner(params AssignmentParams) *Assigner {
	return &Assigner{params: params}
}

// Params returns the protocol constants
func (a *Assigner) Params() AssignmentParams {
	return a.params
}

// Claims returns the ids of observed enemies for which self holds the best
// bid among every observed friendly that can also see that enemy
func (a *Assigner) Claims(obs ObservationSet) []int {
	var owned []int
	for _, enemy := range obs.Enemies {
		if a.owns(obs, enemy) {
			owned = append(owned, enemy.ID)
		}
	}
	return owned
}

func (a *Assigner) owns(obs ObservationSet, enemy *Agent) bool {
	mine := NewBid(obs.Self, enemy, a.params)
	for _, rival := range obs.Friendlies {
		if rival.Position.DistanceTo(enemy.Position) > rival.DetectionRange {
			continue
		}
		if Outranks(NewBid(rival, enemy, a.params), mine) {
			return false
		}
	}
	return true
}

// SelectTarget picks the agent's single current target. Owned enemies are
// preferred according to role; without any, the agent backs up the observed
// enemy it scores highest on. The boolean reports primary ownership.
func (a *Assigner) SelectTarget(obs ObservationSet, owned []int, role Role) (*Agent, bool) {
	if len(obs.Enemies) == 0 {
		return nil, false
	}

	ownedSet := make(map[int]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	var best *Agent
	bestPref := math.Inf(-1)
	for _, enemy := range obs.Enemies {
		if _, ok := ownedSet[enemy.ID]; !ok {
			continue
		}
		pref := NewBid(obs.Self, enemy, a.params).Score * rolePreference(role, enemy, obs.Assets)
		if pref > bestPref {
			best, bestPref = enemy, pref
		}
	}
	if best != nil {
		return best, true
	}

	var backup Bid
	for i, enemy := range obs.Enemies {
		bid := NewBid(obs.Self, enemy, a.params)
		if i == 0 || bid.Score > backup.Score ||
			(bid.Score == backup.Score && bid.Distance < backup.Distance) {
			backup, best = bid, enemy
		}
	}
	return best, false
}

// rolePreference biases target choice toward the threats a role cares about
func rolePreference(role Role, enemy *Agent, assets []*Asset) float64 {
	switch role {
	case RoleInterceptor:
		if enemy.Kind == KindEnemyGround {
			if ClosingOnAsset(enemy, assets) {
				return 3.0
			}
			return 1.5
		}
	case RoleHunter:
		if enemy.Kind == KindEnemyAir {
			return 1.5
		}
	case RoleDefender:
		if asset, d := NearestAsset(enemy.Position, assets); asset != nil && d <= asset.ProtectionRadius {
			return 1.5
		}
	}
	return 1.0
}

// OwnerTable derives the global owner of every observed enemy directly from a
// snapshot of positions, without running any agent logic
func OwnerTable(friendlies, enemies []*Agent, params AssignmentParams) map[int]int {
	owners := make(map[int]int)
	for _, enemy := range enemies {
		if !enemy.Active() {
			continue
		}
		var best Bid
		found := false
		for _, f := range friendlies {
			if !f.Active() || f.Position.DistanceTo(enemy.Position) > f.DetectionRange {
				continue
			}
			bid := NewBid(f, enemy, params)
			if !found || Outranks(bid, best) {
				best, found = bid, true
			}
		}
		if found {
			owners[enemy.ID] = best.AgentID
		}
	}
	return owners
}
