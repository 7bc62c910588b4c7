package reporting

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// Report formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// maxTimelineEntries bounds the significant-event timeline
const maxTimelineEntries = 200

// AARGenerator generates After Action Reports
type AARGenerator struct {
	logger *SimulationLogger
	config AARConfig
}

// AARConfig configures AAR generation
type AARConfig struct {
	OutputDir   string
	Format      string // "json", "html", "markdown"
	DetailLevel string // "summary", "detailed", "full"
	Scenario    *config.ScenarioConfig
}

// AAR represents an After Action Report
type AAR struct {
	Metadata        AARMetadata                 `json:"metadata"`
	Summary         ExecutiveSummary            `json:"summary"`
	Scenario        ScenarioSummary             `json:"scenario"`
	Forces          []ForceAnalysis             `json:"forces"`
	Engagements     EngagementAnalysis          `json:"engagements"`
	Assets          AssetAnalysis               `json:"assets"`
	Roles           RoleAnalysis                `json:"roles"`
	Timeline        []TimelineEntry             `json:"timeline"`
	EventLog        []SimulationEvent           `json:"event_log,omitempty"`
	Statistics      simulation.StatisticsReport `json:"statistics"`
	Recommendations []Recommendation            `json:"recommendations"`
}

// AARMetadata contains report metadata
type AARMetadata struct {
	ReportID     string    `json:"report_id"`
	SimulationID string    `json:"simulation_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	WallTime     string    `json:"wall_time"`
	SimTime      string    `json:"sim_time"`
	Version      string    `json:"version"`
}

// ExecutiveSummary provides high-level overview
type ExecutiveSummary struct {
	Outcome        string   `json:"outcome"`
	MissionSuccess bool     `json:"mission_success"`
	Prevailing     string   `json:"prevailing_force"`
	KillRatio      float64  `json:"kill_ratio"`
	SurvivalRate   float64  `json:"survival_rate"`
	KeyEvents      []string `json:"key_events"`
}

// ScenarioSummary records what was simulated
type ScenarioSummary struct {
	Strategy          string  `json:"strategy"`
	Formation         string  `json:"formation"`
	Seed              int64   `json:"seed"`
	FriendlyCount     int     `json:"friendly_count"`
	EnemyCount        int     `json:"enemy_count"`
	GroundAttackRatio float64 `json:"ground_attack_ratio"`
	Assets            int     `json:"assets"`
	DT                float64 `json:"dt"`
	MaxTime           float64 `json:"max_time"`
}

// ForceAnalysis summarizes one side
type ForceAnalysis struct {
	Force        string  `json:"force"`
	Initial      int     `json:"initial"`
	Final        int     `json:"final"`
	Losses       int     `json:"losses"`
	Kills        int     `json:"kills"`
	Shots        int     `json:"shots"`
	Hits         int     `json:"hits"`
	Accuracy     float64 `json:"accuracy"`
	SurvivalRate float64 `json:"survival_rate"`
}

// EngagementAnalysis contains engagement statistics
type EngagementAnalysis struct {
	ShotsFired       int     `json:"shots_fired"`
	Hits             int     `json:"hits"`
	HitRate          float64 `json:"hit_rate"`
	Kills            int     `json:"kills"`
	AverageHitRange  float64 `json:"avg_hit_range_m"`
	AverageHitDamage float64 `json:"avg_hit_damage"`
	FirstKillTime    float64 `json:"first_kill_time"`
	LastKillTime     float64 `json:"last_kill_time"`
}

// AssetAnalysis covers the defended assets
type AssetAnalysis struct {
	Total           int     `json:"total"`
	Protected       int     `json:"protected"`
	SiegeDamage     float64 `json:"siege_damage"`
	FinalMeanHealth float64 `json:"final_mean_health"`
	MinMeanHealth   float64 `json:"min_mean_health"`
}

// RoleAnalysis summarizes the role distribution series
type RoleAnalysis struct {
	Samples int               `json:"samples"`
	Peak    map[core.Role]int `json:"peak"`
	Final   map[core.Role]int `json:"final"`
}

// TimelineEntry represents an event in the timeline
type TimelineEntry struct {
	Time        float64 `json:"time"`
	ElapsedTime string  `json:"elapsed_time"`
	EventType   string  `json:"event_type"`
	Description string  `json:"description"`
	Impact      string  `json:"impact"`
}

// Recommendation is a tuning suggestion derived from the run
type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewAARGenerator creates an AAR generator over a run's event log
func NewAARGenerator(sl *SimulationLogger, cfg AARConfig) *AARGenerator {
	if cfg.Format == "" {
		cfg.Format = FormatMarkdown
	}
	if cfg.DetailLevel == "" {
		cfg.DetailLevel = "detailed"
	}
	return &AARGenerator{
		logger: sl,
		config: cfg,
	}
}

// GenerateAAR builds a report from the final statistics and analytics
func (g *AARGenerator) GenerateAAR(stats simulation.StatisticsReport, series simulation.AnalyticsSeries) (*AAR, error) {
	if !stats.Complete {
		return nil, fmt.Errorf("cannot generate AAR: statistics are %s", stats.Status)
	}

	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()

	aar := &AAR{
		Metadata: AARMetadata{
			ReportID:     uuid.New().String(),
			SimulationID: summary.SimulationID,
			GeneratedAt:  time.Now(),
			WallTime:     summary.WallTime.Round(time.Millisecond).String(),
			SimTime:      formatSimTime(stats.Duration),
			Version:      "1.0",
		},
		Statistics: stats,
	}

	aar.Scenario = g.scenarioSummary(stats)
	aar.Engagements = analyzeEngagements(events, stats)
	aar.Forces = analyzeForces(events, stats)
	aar.Assets = analyzeAssets(events, stats, series)
	aar.Roles = analyzeRoles(series)
	aar.Timeline = buildTimeline(events)
	aar.Summary = executiveSummary(stats, aar.Timeline)
	if g.config.DetailLevel == "full" {
		aar.EventLog = events
	}
	aar.Recommendations = generateRecommendations(aar)

	return aar, nil
}

// SaveAAR writes the report and returns its path
func (g *AARGenerator) SaveAAR(aar *AAR) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := aar.Metadata.GeneratedAt.Format("20060102_150405")
	base := filepath.Join(g.config.OutputDir,
		fmt.Sprintf("AAR_%s_%s", shortID(aar.Metadata.SimulationID), timestamp))

	var (
		path string
		data []byte
		err  error
	)
	switch g.config.Format {
	case FormatJSON:
		path = base + ".json"
		data, err = json.MarshalIndent(aar, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal AAR: %w", err)
		}
	case FormatHTML:
		path = base + ".html"
		data = []byte(renderHTML(aar))
	case FormatMarkdown, "md":
		path = base + ".md"
		data = []byte(renderMarkdown(aar, g.config.DetailLevel))
	default:
		return "", fmt.Errorf("unsupported format: %s", g.config.Format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write AAR: %w", err)
	}
	logger.Successf("AAR saved to: %s", path)
	return path, nil
}

func (g *AARGenerator) scenarioSummary(stats simulation.StatisticsReport) ScenarioSummary {
	s := ScenarioSummary{
		Strategy:      stats.Strategy,
		Seed:          stats.Seed,
		FriendlyCount: stats.FriendlyTotal,
		EnemyCount:    stats.EnemyTotal,
		Assets:        stats.AssetsTotal,
	}
	if cfg := g.config.Scenario; cfg != nil {
		s.Formation = cfg.Scenario.Formation
		s.GroundAttackRatio = cfg.Scenario.GroundAttackRatio
		s.DT = cfg.Simulation.DT
		s.MaxTime = cfg.Simulation.MaxTime
	}
	return s
}

func analyzeEngagements(events []SimulationEvent, stats simulation.StatisticsReport) EngagementAnalysis {
	ea := EngagementAnalysis{
		ShotsFired:    stats.ShotsFired,
		Hits:          stats.Hits,
		HitRate:       stats.Accuracy,
		FirstKillTime: -1,
		LastKillTime:  -1,
	}

	var rangeSum, damageSum float64
	hits := 0
	for _, ev := range events {
		switch {
		case ev.Type == EventTypeEngagement && ev.Details["result"] == string(core.EventHit):
			hits++
			rangeSum += detailFloat(ev, "distance")
			damageSum += detailFloat(ev, "damage")
		case ev.Type == EventTypeDestruction && ev.Severity == SeverityWarning:
			ea.Kills++
			if ea.FirstKillTime < 0 {
				ea.FirstKillTime = ev.Time
			}
			ea.LastKillTime = ev.Time
		}
	}

	if hits > 0 {
		ea.AverageHitRange = rangeSum / float64(hits)
		ea.AverageHitDamage = damageSum / float64(hits)
	}
	// The timeline is capped, so long runs fall back to the totals
	if ea.Kills == 0 {
		ea.Kills = stats.EnemyLosses + stats.FriendlyLosses
	}
	return ea
}

func analyzeForces(events []SimulationEvent, stats simulation.StatisticsReport) []ForceAnalysis {
	friendly := ForceAnalysis{
		Force:   "friendly",
		Initial: stats.FriendlyTotal,
		Losses:  stats.FriendlyLosses,
		Kills:   stats.EnemyLosses,
	}
	enemy := ForceAnalysis{
		Force:   "enemy",
		Initial: stats.EnemyTotal,
		Losses:  stats.EnemyLosses,
		Kills:   stats.FriendlyLosses,
	}

	for _, ev := range events {
		if ev.Type != EventTypeEngagement {
			continue
		}
		f := &friendly
		if ev.Side == "enemy" {
			f = &enemy
		}
		switch ev.Details["result"] {
		case string(core.EventShot):
			f.Shots++
		case string(core.EventHit):
			f.Hits++
		}
	}

	for _, f := range []*ForceAnalysis{&friendly, &enemy} {
		f.Final = f.Initial - f.Losses
		if f.Initial > 0 {
			f.SurvivalRate = float64(f.Final) / float64(f.Initial)
		}
		if f.Shots > 0 {
			f.Accuracy = float64(f.Hits) / float64(f.Shots)
		}
	}
	return []ForceAnalysis{friendly, enemy}
}

func analyzeAssets(events []SimulationEvent, stats simulation.StatisticsReport, series simulation.AnalyticsSeries) AssetAnalysis {
	aa := AssetAnalysis{Total: stats.AssetsTotal, Protected: stats.AssetsProtected}
	for _, ev := range events {
		if ev.Type == EventTypeSiege {
			aa.SiegeDamage += detailFloat(ev, "damage")
		}
	}
	if n := len(series.AssetHealth); n > 0 {
		aa.FinalMeanHealth = series.AssetHealth[n-1]
		aa.MinMeanHealth = series.AssetHealth[0]
		for _, h := range series.AssetHealth {
			aa.MinMeanHealth = min(aa.MinMeanHealth, h)
		}
	}
	return aa
}

func analyzeRoles(series simulation.AnalyticsSeries) RoleAnalysis {
	ra := RoleAnalysis{
		Samples: series.Len(),
		Peak:    make(map[core.Role]int, len(core.Roles)),
		Final:   make(map[core.Role]int, len(core.Roles)),
	}
	for _, r := range core.Roles {
		counts := series.Roles[r]
		for _, c := range counts {
			ra.Peak[r] = max(ra.Peak[r], c)
		}
		if len(counts) > 0 {
			ra.Final[r] = counts[len(counts)-1]
		}
	}
	return ra
}

// buildTimeline keeps destruction and termination events in order
func buildTimeline(events []SimulationEvent) []TimelineEntry {
	timeline := make([]TimelineEntry, 0)
	for _, ev := range events {
		if ev.Type != EventTypeDestruction && ev.Type != EventTypeTermination {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			Time:        ev.Time,
			ElapsedTime: formatSimTime(ev.Time),
			EventType:   ev.Type,
			Description: ev.Message,
			Impact:      assessImpact(ev),
		})
		if len(timeline) == maxTimelineEntries {
			break
		}
	}
	return timeline
}

func assessImpact(ev SimulationEvent) string {
	switch ev.Severity {
	case SeverityCritical:
		return "High"
	case SeverityWarning:
		return "Medium"
	default:
		return "Low"
	}
}

func executiveSummary(stats simulation.StatisticsReport, timeline []TimelineEntry) ExecutiveSummary {
	exec := ExecutiveSummary{
		Outcome:        stats.Outcome,
		MissionSuccess: stats.MissionSuccess,
		KillRatio:      stats.KillRatio,
		SurvivalRate:   stats.SurvivalRate,
		KeyEvents:      make([]string, 0),
	}

	friendlyLeft := stats.FriendlyTotal - stats.FriendlyLosses
	enemyLeft := stats.EnemyTotal - stats.EnemyLosses
	switch {
	case friendlyLeft > enemyLeft:
		exec.Prevailing = "friendly"
	case enemyLeft > friendlyLeft:
		exec.Prevailing = "enemy"
	default:
		exec.Prevailing = "none"
	}

	for _, entry := range timeline {
		if entry.Impact == "High" || len(exec.KeyEvents) < 5 {
			exec.KeyEvents = append(exec.KeyEvents, fmt.Sprintf("[%s] %s", entry.ElapsedTime, entry.Description))
		}
	}
	return exec
}

func generateRecommendations(aar *AAR) []Recommendation {
	recs := make([]Recommendation, 0)
	stats := aar.Statistics

	if stats.ShotsFired > 0 && stats.Accuracy < 0.5 {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Category:    "Engagement",
			Title:       "Close engagement range",
			Description: fmt.Sprintf("Hit rate was %.1f%%. Raise distance_gain so owners close inside the no-falloff band.", stats.Accuracy*100),
		})
	}
	if stats.AssetsProtected < stats.AssetsTotal {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Category:    "Asset Defense",
			Title:       "Increase interceptor weighting",
			Description: fmt.Sprintf("%d of %d assets were breached or destroyed. Raise the interceptor weight for ground threats or use the shield formation.", stats.AssetsTotal-stats.AssetsProtected, stats.AssetsTotal),
		})
	}
	if stats.Outcome == simulation.OutcomeTimeExpired && stats.EnemyTotal > 0 {
		recs = append(recs, Recommendation{
			Priority:    "Medium",
			Category:    "Tempo",
			Title:       "Resolve the engagement sooner",
			Description: fmt.Sprintf("%d attackers survived until max_time. Consider a higher hunter share or a wider detection range.", stats.EnemyTotal-stats.EnemyLosses),
		})
	}
	if stats.SurvivalRate < 0.5 && stats.FriendlyTotal > 0 {
		recs = append(recs, Recommendation{
			Priority:    "Medium",
			Category:    "Attrition",
			Title:       "Reduce friendly losses",
			Description: fmt.Sprintf("Only %.0f%% of defenders survived. Try the tessellation strategy to spread the swarm.", stats.SurvivalRate*100),
		})
	}
	return recs
}

func renderMarkdown(aar *AAR, detail string) string {
	var sb strings.Builder

	sb.WriteString("# After Action Report\n\n")
	sb.WriteString(fmt.Sprintf("**Simulation ID:** %s\n", aar.Metadata.SimulationID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", aar.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Simulated Time:** %s (wall %s)\n\n", aar.Metadata.SimTime, aar.Metadata.WallTime))

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", aar.Summary.Outcome))
	sb.WriteString(fmt.Sprintf("**Mission Success:** %t\n\n", aar.Summary.MissionSuccess))
	sb.WriteString(fmt.Sprintf("**Prevailing Force:** %s\n\n", aar.Summary.Prevailing))
	sb.WriteString(fmt.Sprintf("**Kill Ratio:** %.2f | **Survival Rate:** %.1f%%\n\n", aar.Summary.KillRatio, aar.Summary.SurvivalRate*100))
	if len(aar.Summary.KeyEvents) > 0 {
		sb.WriteString("### Key Events\n")
		for _, ev := range aar.Summary.KeyEvents {
			sb.WriteString(fmt.Sprintf("- %s\n", ev))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Scenario\n\n")
	sb.WriteString("| Parameter | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Strategy | %s |\n", aar.Scenario.Strategy))
	sb.WriteString(fmt.Sprintf("| Formation | %s |\n", aar.Scenario.Formation))
	sb.WriteString(fmt.Sprintf("| Seed | %d |\n", aar.Scenario.Seed))
	sb.WriteString(fmt.Sprintf("| Forces | %d v %d |\n", aar.Scenario.FriendlyCount, aar.Scenario.EnemyCount))
	sb.WriteString(fmt.Sprintf("| Ground attack ratio | %.2f |\n", aar.Scenario.GroundAttackRatio))
	sb.WriteString(fmt.Sprintf("| Assets | %d |\n\n", aar.Scenario.Assets))

	sb.WriteString("## Force Analysis\n\n")
	sb.WriteString("| Force | Strength | Losses | Kills | Survival |\n|---|---|---|---|---|\n")
	for _, f := range aar.Forces {
		sb.WriteString(fmt.Sprintf("| %s | %d/%d | %d | %d | %.1f%% |\n",
			f.Force, f.Final, f.Initial, f.Losses, f.Kills, f.SurvivalRate*100))
	}
	sb.WriteString("\n")

	sb.WriteString("## Engagement Analysis\n\n")
	sb.WriteString(fmt.Sprintf("- **Shots Fired:** %d\n", aar.Engagements.ShotsFired))
	sb.WriteString(fmt.Sprintf("- **Hits:** %d (%.1f%% hit rate)\n", aar.Engagements.Hits, aar.Engagements.HitRate*100))
	sb.WriteString(fmt.Sprintf("- **Kills:** %d\n", aar.Engagements.Kills))
	if aar.Engagements.FirstKillTime >= 0 {
		sb.WriteString(fmt.Sprintf("- **First / Last Kill:** %s / %s\n",
			formatSimTime(aar.Engagements.FirstKillTime), formatSimTime(aar.Engagements.LastKillTime)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Asset Defense\n\n")
	sb.WriteString(fmt.Sprintf("- **Protected:** %d/%d\n", aar.Assets.Protected, aar.Assets.Total))
	sb.WriteString(fmt.Sprintf("- **Final Mean Health:** %.2f (min %.2f)\n\n", aar.Assets.FinalMeanHealth, aar.Assets.MinMeanHealth))

	if detail != "summary" {
		sb.WriteString("## Role Distribution\n\n")
		sb.WriteString("| Role | Peak | Final |\n|---|---|---|\n")
		for _, r := range core.Roles {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", r, aar.Roles.Peak[r], aar.Roles.Final[r]))
		}
		sb.WriteString("\n")

		if len(aar.Timeline) > 0 {
			sb.WriteString("## Timeline\n\n")
			for _, entry := range aar.Timeline {
				sb.WriteString(fmt.Sprintf("- `%s` **%s** %s\n", entry.ElapsedTime, entry.Impact, entry.Description))
			}
			sb.WriteString("\n")
		}
	}

	if len(aar.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range aar.Recommendations {
			sb.WriteString(fmt.Sprintf("### %s (%s Priority)\n", rec.Title, rec.Priority))
			sb.WriteString(fmt.Sprintf("%s\n\n", rec.Description))
		}
	}

	return sb.String()
}

func renderHTML(aar *AAR) string {
	var sb strings.Builder
	esc := html.EscapeString

	sb.WriteString(`<!DOCTYPE html>
<html>
<head>
	<title>After Action Report</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; background-color: #f5f5f5; }
		.container { background-color: white; padding: 30px; border-radius: 8px; }
		h1 { color: #333; border-bottom: 3px solid #007bff; padding-bottom: 10px; }
		h2 { color: #007bff; margin-top: 30px; }
		.force-friendly { color: #007bff; }
		.force-enemy { color: #dc3545; }
		.success { color: #28a745; }
		.failure { color: #dc3545; }
		table { border-collapse: collapse; width: 100%; margin: 20px 0; }
		th, td { padding: 12px; text-align: left; border-bottom: 1px solid #ddd; }
		th { background-color: #007bff; color: white; }
		.impact-High { background-color: #dc3545; color: white; padding: 2px 8px; border-radius: 3px; }
		.impact-Medium { background-color: #ffc107; color: black; padding: 2px 8px; border-radius: 3px; }
		.impact-Low { background-color: #28a745; color: white; padding: 2px 8px; border-radius: 3px; }
	</style>
</head>
<body>
<div class="container">
`)

	sb.WriteString("<h1>After Action Report</h1>\n")
	sb.WriteString(fmt.Sprintf("<p><strong>Simulation ID:</strong> %s</p>\n", esc(aar.Metadata.SimulationID)))
	sb.WriteString(fmt.Sprintf("<p><strong>Generated:</strong> %s</p>\n", aar.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("<p><strong>Simulated Time:</strong> %s</p>\n", aar.Metadata.SimTime))

	result := "failure"
	if aar.Summary.MissionSuccess {
		result = "success"
	}
	sb.WriteString("<h2>Executive Summary</h2>\n")
	sb.WriteString(fmt.Sprintf("<p><strong>Outcome:</strong> %s</p>\n", esc(aar.Summary.Outcome)))
	sb.WriteString(fmt.Sprintf("<p><strong>Mission:</strong> <span class='%s'>%s</span></p>\n", result, result))
	sb.WriteString(fmt.Sprintf("<p><strong>Strategy:</strong> %s | <strong>Seed:</strong> %d</p>\n",
		esc(aar.Scenario.Strategy), aar.Scenario.Seed))

	sb.WriteString("<h2>Forces</h2>\n<table>\n")
	sb.WriteString("<tr><th>Force</th><th>Strength</th><th>Losses</th><th>Kills</th><th>Survival</th></tr>\n")
	for _, f := range aar.Forces {
		sb.WriteString(fmt.Sprintf("<tr><td class='force-%s'>%s</td><td>%d/%d</td><td>%d</td><td>%d</td><td>%.1f%%</td></tr>\n",
			f.Force, f.Force, f.Final, f.Initial, f.Losses, f.Kills, f.SurvivalRate*100))
	}
	sb.WriteString("</table>\n")

	sb.WriteString("<h2>Engagements</h2>\n")
	sb.WriteString(fmt.Sprintf("<p>%d shots, %d hits (%.1f%%), %d kills</p>\n",
		aar.Engagements.ShotsFired, aar.Engagements.Hits, aar.Engagements.HitRate*100, aar.Engagements.Kills))
	sb.WriteString(fmt.Sprintf("<p>Assets protected: %d/%d</p>\n", aar.Assets.Protected, aar.Assets.Total))

	if len(aar.Timeline) > 0 {
		sb.WriteString("<h2>Timeline</h2>\n<table>\n<tr><th>Time</th><th>Impact</th><th>Event</th></tr>\n")
		for _, entry := range aar.Timeline {
			sb.WriteString(fmt.Sprintf("<tr><td>%s</td><td><span class='impact-%s'>%s</span></td><td>%s</td></tr>\n",
				entry.ElapsedTime, entry.Impact, entry.Impact, esc(entry.Description)))
		}
		sb.WriteString("</table>\n")
	}

	if len(aar.Recommendations) > 0 {
		sb.WriteString("<h2>Recommendations</h2>\n")
		for _, rec := range aar.Recommendations {
			sb.WriteString(fmt.Sprintf("<h3>%s <span class='impact-%s'>%s</span></h3>\n", esc(rec.Title), rec.Priority, rec.Priority))
			sb.WriteString(fmt.Sprintf("<p>%s</p>\n", esc(rec.Description)))
		}
	}

	sb.WriteString("</div>\n</body>\n</html>\n")
	return sb.String()
}

func detailFloat(ev SimulationEvent, key string) float64 {
	if v, ok := ev.Details[key].(float64); ok {
		return v
	}
	return 0
}

// formatSimTime renders simulated seconds as mm:ss.t
func formatSimTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	return fmt.Sprintf("%02d:%04.1f", minutes, seconds-float64(minutes*60))
}
