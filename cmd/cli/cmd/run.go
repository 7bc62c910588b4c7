package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/reporting"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	profiles "github.com/picogrid/swarm-defense/pkg/config"
	"github.com/picogrid/swarm-defense/pkg/logger"
	sim "github.com/picogrid/swarm-defense/pkg/simulation"
	"github.com/picogrid/swarm-defense/pkg/utils"
)

// descriptorName is the simulation.yaml entry the run command prompts from
const descriptorName = "swarm-defense"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a swarm defense scenario",
	Long: `Run a swarm defense scenario. Settings are layered in order: scenario
file, environment, preset, prompted parameters, parameter file, flags.`,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringP("scenario", "c", "", "scenario config file (YAML)")
	runCmd.Flags().String("preset", "", "named scenario preset")
	runCmd.Flags().StringP("strategy", "s", "", "navigation strategy")
	runCmd.Flags().Int64("seed", 0, "random seed")
	runCmd.Flags().StringP("params", "p", "", "parameter overrides file (YAML)")
	runCmd.Flags().String("profile", "", "saved run profile")
	runCmd.Flags().Bool("aar", false, "write an after-action report")
	runCmd.Flags().String("aar-format", "", "after-action report format (json, markdown, html)")
	runCmd.Flags().Bool("archive", false, "store the run in the archive database")
	runCmd.Flags().BoolP("verbose", "v", false, "log every shot and role change")
	runCmd.Flags().Int("workers", 0, "decide-phase workers, 0 uses every CPU")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	profile, err := selectedProfile(cmd)
	if err != nil {
		return err
	}

	scenarioPath, _ := cmd.Flags().GetString("scenario")
	if scenarioPath == "" && profile != nil {
		scenarioPath = profile.Config
	}
	cfg, err := config.LoadConfigOrDefault(scenarioPath)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	if err := applyPreset(cmd, cfg, profile); err != nil {
		return err
	}
	if err := applyParameters(cmd, cfg); err != nil {
		return err
	}
	if profile != nil && len(profile.Overrides) > 0 {
		config.MergeWithCLIOverrides(cfg, profile.Overrides)
	}
	if path, _ := cmd.Flags().GetString("params"); path != "" {
		overrides, err := loadParamsFile(path)
		if err != nil {
			return err
		}
		config.MergeWithCLIOverrides(cfg, overrides)
	}
	if err := applyFlags(cmd, cfg, profile); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.ConsoleLevel))
	if cmd.Flags().Changed("log-level") {
		logger.SetLevel(logger.ParseLevel(logLevel))
	}

	var archive *reporting.Archive
	if cfg.Archive.Enabled {
		path := cfg.Archive.Path
		if path == "" {
			path = viper.GetString(keyArchivePath)
		}
		archive, err = reporting.OpenArchive(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Warnf("Failed to close archive: %v", err)
			}
		}()
	}

	var simLog *reporting.SimulationLogger
	controller := controllers.NewSimulationController(
		controllers.WithEngineOptions(func(runID string) []simulation.Option {
			simLog = reporting.NewSimulationLogger(runID, nil, cfg.Logging.Verbose)
			opts := []simulation.Option{simulation.WithEventSink(simLog)}
			if archive != nil {
				opts = append(opts, simulation.WithFrameSink(archive.FrameSink(runID)))
			}
			return opts
		}),
	)
	defer controller.Shutdown()

	logger.LogSection("Swarm Defense Simulation")
	logger.LogKeyValues(map[string]interface{}{
		"Strategy":   cfg.Scenario.Strategy,
		"Formation":  cfg.Scenario.Formation,
		"Friendlies": cfg.Scenario.FriendlyCount,
		"Enemies":    cfg.Scenario.EnemyCount,
		"Assets":     len(cfg.Scenario.Assets),
		"Seed":       cfg.Simulation.Seed,
		"Max time":   fmt.Sprintf("%.0fs", cfg.Simulation.MaxTime),
	})
	if len(cfg.Scenario.Assets) > 0 {
		logger.LogSubSection("Assets")
		logger.LogList("Defended positions", assetLines(cfg))
	}

	handle, err := controller.Start(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Warn("Received interrupt signal, stopping simulation...")
			if err := controller.Stop(handle.ID()); err != nil {
				logger.Errorf("Failed to stop simulation: %v", err)
			}
		case <-ctx.Done():
		}
	}()

	started := time.Now()
	if err := controller.Launch(ctx, handle); err != nil {
		return err
	}
	if err := waitWithProgress(controller, handle); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	stats, err := controller.GetStatistics(handle.ID())
	if err != nil {
		return err
	}
	printStatistics(stats, time.Since(started))
	simLog.PrintSummary()

	if cfg.Logging.EnableAAR {
		if err := writeAAR(controller, handle.ID(), simLog, cfg, stats); err != nil {
			return err
		}
	}

	if archive != nil {
		if err := archive.SaveRun(context.Background(), handle.ID(), cfg, stats); err != nil {
			return err
		}
		logger.Successf("Run archived in %s", archive.Path())
	}

	if stats.MissionSuccess {
		logger.Success("Mission successful")
	} else {
		logger.Warnf("Mission failed (%s)", stats.Outcome)
	}
	return nil
}

// selectedProfile returns the profile named by --profile, or the selected
// one when the flag is absent
func selectedProfile(cmd *cobra.Command) (*profiles.Profile, error) {
	name, _ := cmd.Flags().GetString("profile")
	set, err := profiles.LoadProfiles()
	if err != nil {
		if name != "" {
			return nil, err
		}
		logger.Debugf("No profiles loaded: %v", err)
		return nil, nil
	}
	if name == "" {
		name = set.Selected
	}
	if name == "" {
		return nil, nil
	}
	p, ok := set.Get(name)
	if !ok {
		return nil, fmt.Errorf("profile %s not found", name)
	}
	logger.Infof("Using profile %s", p.Name)
	return &p, nil
}

func applyPreset(cmd *cobra.Command, cfg *config.ScenarioConfig, profile *profiles.Profile) error {
	name, _ := cmd.Flags().GetString("preset")
	if name == "" && profile != nil {
		name = profile.Preset
	}
	// Without a terminal the descriptor default would silently replace the
	// scenario file's forces, so only an explicit choice applies a preset
	if name == "" && (utils.Interactive() || os.Getenv(utils.EnvKey("preset")) != "") {
		desc := findDescriptor()
		if desc == nil {
			return nil
		}
		param, ok := desc.Parameter("preset")
		if !ok {
			return nil
		}
		values, err := utils.PromptForParameters([]sim.Parameter{param})
		if err != nil {
			return fmt.Errorf("failed to get parameters: %w", err)
		}
		name, _ = values["preset"].(string)
	}
	if name == "" {
		return nil
	}
	return config.ApplyPreset(cfg, name)
}

// applyParameters prompts for the remaining descriptor parameters. Defaults
// come from the configuration built so far, so accepting every prompt
// changes nothing.
func applyParameters(cmd *cobra.Command, cfg *config.ScenarioConfig) error {
	desc := findDescriptor()
	if desc == nil {
		return nil
	}

	current := currentValues(cfg)
	params := make([]sim.Parameter, 0, len(desc.Parameters))
	for _, p := range desc.Parameters {
		if p.Name == "preset" {
			continue
		}
		if flagFor(p.Name) != "" && cmd.Flags().Changed(flagFor(p.Name)) {
			continue
		}
		if v, ok := current[p.Name]; ok {
			p.Default = v
		}
		params = append(params, p)
	}

	values, err := utils.PromptForParameters(params)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}
	config.MergeWithCLIOverrides(cfg, values)
	return nil
}

func flagFor(param string) string {
	switch param {
	case "strategy", "seed":
		return param
	}
	return ""
}

func currentValues(cfg *config.ScenarioConfig) map[string]interface{} {
	return map[string]interface{}{
		"strategy":            cfg.Scenario.Strategy,
		"friendly_count":      cfg.Scenario.FriendlyCount,
		"enemy_count":         cfg.Scenario.EnemyCount,
		"ground_attack_ratio": cfg.Scenario.GroundAttackRatio,
		"seed":                int(cfg.Simulation.Seed),
		"max_time":            cfg.Simulation.MaxTime,
		"formation":           cfg.Scenario.Formation,
	}
}

func findDescriptor() *sim.Descriptor {
	infos, err := utils.DiscoverSimulations()
	if err != nil {
		logger.Debugf("Simulation discovery failed: %v", err)
		return nil
	}
	for i := range infos {
		if infos[i].Descriptor.Name == descriptorName {
			return &infos[i].Descriptor
		}
	}
	return nil
}

func loadParamsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}
	var overrides map[string]interface{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse parameters file: %w", err)
	}
	return overrides, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.ScenarioConfig, profile *profiles.Profile) error {
	flags := cmd.Flags()

	strategy, _ := flags.GetString("strategy")
	if strategy == "" && profile != nil {
		strategy = profile.Strategy
	}
	if strategy != "" {
		name, err := config.ParseStrategy(strategy)
		if err != nil {
			return err
		}
		cfg.Scenario.Strategy = name
	}

	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetInt64("seed")
	} else if profile != nil && profile.Seed != nil {
		cfg.Simulation.Seed = *profile.Seed
	}

	if flags.Changed("workers") {
		cfg.Performance.WorkerCount, _ = flags.GetInt("workers")
	}
	if flags.Changed("verbose") {
		cfg.Logging.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("aar") {
		cfg.Logging.EnableAAR, _ = flags.GetBool("aar")
	}
	if format, _ := flags.GetString("aar-format"); format != "" {
		cfg.Logging.AARFormat = format
		cfg.Logging.EnableAAR = true
	}
	if flags.Changed("archive") {
		cfg.Archive.Enabled, _ = flags.GetBool("archive")
	}
	return nil
}

// waitWithProgress blocks until the run ends, drawing a progress bar when
// attached to a terminal
func waitWithProgress(controller *controllers.SimulationController, handle *controllers.Handle) error {
	done := make(chan error, 1)
	go func() { done <- controller.Wait(handle.ID()) }()

	if !utils.Interactive() {
		logger.Progressf("Running %s until completion", handle.ID())
		return <-done
	}

	// Progress goes to stderr so redirected stdout only carries the summary
	bar := logger.NewProgressBar("Simulating")
	bar.SetWriter(os.Stderr)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			bar.Update(handle.Progress()/100, fmt.Sprintf("tick %d", handle.Engine().Tick()))
			bar.Finish()
			return err
		case <-ticker.C:
			e := handle.Engine()
			var detail string
			if f := e.LastFrame(); f != nil {
				friendly, enemy := f.ActiveCounts()
				detail = fmt.Sprintf("t=%.1fs  %d v %d", f.Time, friendly, enemy)
			}
			bar.Update(handle.Progress()/100, detail)
		}
	}
}

func printStatistics(stats simulation.StatisticsReport, wall time.Duration) {
	logger.LogSection("Results")
	table := logger.NewTable("METRIC", "VALUE")
	table.AddRow("Outcome", stats.Outcome)
	table.AddRow("Simulated time", fmt.Sprintf("%.1fs (%d ticks)", stats.Duration, stats.Ticks))
	if wall > 0 {
		table.AddRow("Wall time", wall.Round(time.Millisecond).String())
	}
	table.AddRow("Friendly losses", fmt.Sprintf("%d / %d", stats.FriendlyLosses, stats.FriendlyTotal))
	table.AddRow("Enemy losses", fmt.Sprintf("%d / %d", stats.EnemyLosses, stats.EnemyTotal))
	table.AddRow("Survival rate", fmt.Sprintf("%.1f%%", stats.SurvivalRate*100))
	table.AddRow("Kill ratio", fmt.Sprintf("%.2f", stats.KillRatio))
	table.AddRow("Assets protected", fmt.Sprintf("%d / %d", stats.AssetsProtected, stats.AssetsTotal))
	table.AddRow("Shots / hits", fmt.Sprintf("%d / %d", stats.ShotsFired, stats.Hits))
	table.AddRow("Accuracy", fmt.Sprintf("%.1f%%", stats.Accuracy*100))
	table.Print()
}

func writeAAR(controller *controllers.SimulationController, id string, simLog *reporting.SimulationLogger,
	cfg *config.ScenarioConfig, stats simulation.StatisticsReport) error {
	series, err := controller.GetAnalyticsSeries(id)
	if err != nil {
		return err
	}

	outputDir := cfg.Logging.AAROutputPath
	if outputDir == "" {
		outputDir = viper.GetString(keyReportsDir)
	}
	detail := "detailed"
	if cfg.Logging.Verbose {
		detail = "full"
	}
	gen := reporting.NewAARGenerator(simLog, reporting.AARConfig{
		OutputDir:   outputDir,
		Format:      cfg.Logging.AARFormat,
		DetailLevel: detail,
		Scenario:    cfg,
	})

	var path string
	build := func() error {
		aar, err := gen.GenerateAAR(stats, series)
		if err != nil {
			return fmt.Errorf("failed to generate after-action report: %w", err)
		}
		if path, err = gen.SaveAAR(aar); err != nil {
			return fmt.Errorf("failed to save after-action report: %w", err)
		}
		return nil
	}
	if utils.Interactive() {
		err = logger.WithSpinner("After-action report", build)
	} else {
		err = build()
	}
	if err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	logger.Successf("After-action report written to %s", abs)
	return nil
}

func assetLines(cfg *config.ScenarioConfig) []string {
	lines := make([]string, len(cfg.Scenario.Assets))
	for i, a := range cfg.Scenario.Assets {
		line := fmt.Sprintf("#%d at (%.0f, %.0f, %.0f) value %.1f", i, a.Position.X, a.Position.Y, a.Position.Z, a.Value)
		if len(a.Waypoints) > 0 {
			line += fmt.Sprintf(", %d waypoints", len(a.Waypoints))
		}
		lines[i] = line
	}
	return lines
}
