package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
)

// maxEvents bounds the in-memory timeline
const maxEvents = 10000

// Event categories
const (
	EventTypeEngagement  = "engagement"
	EventTypeDestruction = "destruction"
	EventTypeSiege       = "siege"
	EventTypeRole        = "role_change"
	EventTypeTermination = "termination"
)

// Severity constants
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Color definitions
var (
	colorDebug    = color.New(color.FgHiBlack)
	colorInfo     = color.New(color.FgCyan)
	colorWarning  = color.New(color.FgYellow)
	colorCritical = color.New(color.FgRed, color.Bold)
	colorFriendly = color.New(color.FgBlue, color.Bold)
	colorEnemy    = color.New(color.FgRed, color.Bold)
	colorSuccess  = color.New(color.FgGreen)
)

// SimulationEvent is one entry of the run timeline
type SimulationEvent struct {
	Tick     int                    `json:"tick"`
	Time     float64                `json:"time"` // Simulated seconds
	Type     string                 `json:"type"`
	Severity string                 `json:"severity"`
	Side     string                 `json:"side,omitempty"`
	AgentID  int                    `json:"agent_id"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// SimulationLogger turns engine callbacks into a colored console log and a
// timeline for the after action report. It implements simulation.EventSink.
type SimulationLogger struct {
	simulationID string
	startTime    time.Time
	out          io.Writer
	verbose      bool // Print every shot, hit and siege tick

	mu          sync.RWMutex
	events      []SimulationEvent
	eventCounts map[string]int
	sideCounts  map[string]map[string]int
	roleChanges int
	outcome     string
	stats       *simulation.StatisticsReport
}

var _ simulation.EventSink = (*SimulationLogger)(nil)

// NewSimulationLogger creates a new simulation logger writing to out. A nil
// writer uses color.Output.
func NewSimulationLogger(simulationID string, out io.Writer, verbose bool) *SimulationLogger {
	if out == nil {
		out = color.Output
	}
	sl := &SimulationLogger{
		simulationID: simulationID,
		startTime:    time.Now(),
		out:          out,
		verbose:      verbose,
		eventCounts:  make(map[string]int),
		sideCounts:   make(map[string]map[string]int),
	}

	sl.printf(SeverityInfo, "Simulation Started", "ID: %s | Time: %s",
		shortID(simulationID), sl.startTime.Format("15:04:05"))
	return sl
}

// OnCombatEvent records shots, hits, kills and siege damage
func (sl *SimulationLogger) OnCombatEvent(ev core.CombatEvent) {
	side := sideOf(ev.AttackerID)
	event := SimulationEvent{
		Tick:    ev.Tick,
		Time:    ev.Time,
		Side:    side,
		AgentID: ev.AttackerID,
		Details: map[string]interface{}{
			"target_id": ev.TargetID,
			"distance":  ev.Distance,
		},
	}

	switch ev.Type {
	case core.EventShot, core.EventHit:
		event.Type = EventTypeEngagement
		event.Severity = SeverityDebug
		event.Message = fmt.Sprintf("%s %d -> %d at %.0fm", ev.Type, ev.AttackerID, ev.TargetID, ev.Distance)
		event.Details["result"] = string(ev.Type)
		if ev.Type == core.EventHit {
			event.Details["damage"] = ev.Damage
		}
		if sl.verbose {
			sl.printf(SeverityDebug, "Engagement", "%s | %s", sl.sideColor(side).Sprint(side), event.Message)
		}
	case core.EventKill:
		event.Type = EventTypeDestruction
		event.Severity = SeverityWarning
		event.Message = fmt.Sprintf("%s %d destroyed %d", side, ev.AttackerID, ev.TargetID)
		sl.printf(SeverityWarning, "💥 Drone Destroyed", "t=%.1fs | %s %d | target %d | %.0fm",
			ev.Time, sl.sideColor(side).Sprint(side), ev.AttackerID, ev.TargetID, ev.Distance)
	case core.EventSiege:
		event.Type = EventTypeSiege
		event.Severity = SeverityDebug
		event.Message = fmt.Sprintf("ground attacker %d damaged asset %d", ev.AttackerID, ev.TargetID)
		event.Details["damage"] = ev.Damage
		if sl.verbose {
			sl.printf(SeverityDebug, "Siege", "%s | %.2f damage", event.Message, ev.Damage)
		}
	case core.EventAssetDestroyed:
		event.Type = EventTypeDestruction
		event.Severity = SeverityCritical
		event.Message = fmt.Sprintf("asset %d destroyed by %d", ev.TargetID, ev.AttackerID)
		sl.printf(SeverityCritical, "🏚️ Asset Destroyed", "t=%.1fs | asset %d | attacker %d",
			ev.Time, ev.TargetID, ev.AttackerID)
	default:
		event.Type = string(ev.Type)
		event.Severity = SeverityInfo
		event.Message = fmt.Sprintf("%s %d -> %d", ev.Type, ev.AttackerID, ev.TargetID)
	}

	sl.logEvent(event, string(ev.Type))
}

// OnRoleChange records a friendly switching roles
func (sl *SimulationLogger) OnRoleChange(tick, agentID int, from, to core.Role) {
	sl.mu.Lock()
	sl.roleChanges++
	sl.mu.Unlock()

	if !sl.verbose {
		return
	}
	sl.logEvent(SimulationEvent{
		Tick:     tick,
		Type:     EventTypeRole,
		Severity: SeverityDebug,
		Side:     "friendly",
		AgentID:  agentID,
		Message:  fmt.Sprintf("friendly %d: %s -> %s", agentID, roleName(from), roleName(to)),
	}, EventTypeRole)
}

// OnTermination records the outcome and final statistics
func (sl *SimulationLogger) OnTermination(tick int, outcome string, stats simulation.StatisticsReport) {
	sl.mu.Lock()
	sl.outcome = outcome
	s := stats
	sl.stats = &s
	sl.mu.Unlock()

	severity := SeverityInfo
	if outcome == simulation.OutcomeFault || outcome == simulation.OutcomeAssetsDestroyed ||
		outcome == simulation.OutcomeFriendliesDestroyed {
		severity = SeverityCritical
	}
	sl.logEvent(SimulationEvent{
		Tick:     tick,
		Time:     stats.Duration,
		Type:     EventTypeTermination,
		Severity: severity,
		Message:  "simulation ended: " + outcome,
		Details:  map[string]interface{}{"outcome": outcome},
	}, EventTypeTermination)
	sl.printf(severity, "🏁 Simulation Ended", "tick %d | outcome %s", tick, outcome)
}

// logEvent adds an event to the timeline
func (sl *SimulationLogger) logEvent(event SimulationEvent, counter string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.events = append(sl.events, event)
	if len(sl.events) > maxEvents {
		sl.events = sl.events[len(sl.events)-maxEvents:]
	}

	sl.eventCounts[counter]++
	if event.Side != "" {
		if sl.sideCounts[event.Side] == nil {
			sl.sideCounts[event.Side] = make(map[string]int)
		}
		sl.sideCounts[event.Side][counter]++
	}
}

// GetEvents returns the retained timeline
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	events := make([]SimulationEvent, len(sl.events))
	copy(events, sl.events)
	return events
}

// SimulationSummary aggregates the event log
type SimulationSummary struct {
	SimulationID string
	StartTime    time.Time
	WallTime     time.Duration
	TotalEvents  int
	RoleChanges  int
	Outcome      string
	EventCounts  map[string]int
	SideCounts   map[string]map[string]int
}

// GetSummary returns a simulation summary
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	counts := make(map[string]int, len(sl.eventCounts))
	total := 0
	for k, v := range sl.eventCounts {
		counts[k] = v
		total += v
	}
	sides := make(map[string]map[string]int, len(sl.sideCounts))
	for side, m := range sl.sideCounts {
		sides[side] = make(map[string]int, len(m))
		for k, v := range m {
			sides[side][k] = v
		}
	}

	return SimulationSummary{
		SimulationID: sl.simulationID,
		StartTime:    sl.startTime,
		WallTime:     time.Since(sl.startTime),
		TotalEvents:  total,
		RoleChanges:  sl.roleChanges,
		Outcome:      sl.outcome,
		EventCounts:  counts,
		SideCounts:   sides,
	}
}

// PrintSummary prints a formatted summary
func (sl *SimulationLogger) PrintSummary() {
	summary := sl.GetSummary()
	rule := strings.Repeat("═", 60)

	colorSuccess.Fprintln(sl.out, "\n"+rule)
	colorSuccess.Fprintf(sl.out, "  SIMULATION SUMMARY - %s\n", shortID(summary.SimulationID))
	colorSuccess.Fprintln(sl.out, rule)

	fmt.Fprintf(sl.out, "\n📊 Outcome: %s | Wall time: %v | Events: %d | Role changes: %d\n",
		summary.Outcome, summary.WallTime.Round(time.Millisecond), summary.TotalEvents, summary.RoleChanges)

	fmt.Fprintln(sl.out, "\n📈 Event Distribution:")
	for _, k := range sortedKeys(summary.EventCounts) {
		fmt.Fprintf(sl.out, "   %-20s: %d\n", k, summary.EventCounts[k])
	}

	fmt.Fprintln(sl.out, "\n🏆 Force Activity:")
	for _, side := range sortedKeys(summary.SideCounts) {
		fmt.Fprintf(sl.out, "\n   %s:\n", sl.sideColor(side).Sprint(side))
		for _, k := range sortedKeys(summary.SideCounts[side]) {
			fmt.Fprintf(sl.out, "      %-18s: %d\n", k, summary.SideCounts[side][k])
		}
	}

	colorSuccess.Fprintln(sl.out, "\n"+rule)
}

// printf writes a timestamped line colored by severity
func (sl *SimulationLogger) printf(severity, title, format string, args ...interface{}) {
	var c *color.Color
	switch severity {
	case SeverityDebug:
		c = colorDebug
	case SeverityWarning:
		c = colorWarning
	case SeverityCritical:
		c = colorCritical
	default:
		c = colorInfo
	}

	fmt.Fprintf(sl.out, "[%s] %s %s | %s\n",
		time.Now().Format("15:04:05.000"),
		c.Sprintf("%-8s", severity),
		title,
		fmt.Sprintf(format, args...))
}

func (sl *SimulationLogger) sideColor(side string) *color.Color {
	switch side {
	case "friendly":
		return colorFriendly
	case "enemy":
		return colorEnemy
	default:
		return colorInfo
	}
}

func sideOf(id int) string {
	if id >= core.EnemyIDOffset {
		return "enemy"
	}
	return "friendly"
}

func roleName(r core.Role) string {
	if r == core.RoleNone {
		return "none"
	}
	return string(r)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
