package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// runResult is the JSON document written to stdout
type runResult struct {
	RunID      string                      `json:"run_id"`
	Statistics simulation.StatisticsReport `json:"statistics"`
	Frames     []core.Frame                `json:"frames,omitempty"`
}

var (
	configPath string
	presetName string
	strategy   string
	seed       int64
	logLevel   string
	withFrames bool
	saveConfig string
)

var rootCmd = &cobra.Command{
	Use:   "swarm-defense",
	Short: "Run one swarm defense scenario headless and print its statistics as JSON",
	Long: `Runs a single scenario to completion without prompts. Logs go to
stderr and the result document goes to stdout, so output can be piped.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "scenario config file (YAML)")
	rootCmd.Flags().StringVar(&presetName, "preset", "", "named scenario preset")
	rootCmd.Flags().StringVarP(&strategy, "strategy", "s", "", "navigation strategy")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, silent)")
	rootCmd.Flags().BoolVar(&withFrames, "frames", false, "include recorded frames in the output")
	rootCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the resolved scenario to this file before running")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logger.ParseLevel(logLevel))

	cfg, err := config.LoadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	if presetName != "" {
		if err := config.ApplyPreset(cfg, presetName); err != nil {
			return err
		}
	}
	if strategy != "" {
		name, err := config.ParseStrategy(strategy)
		if err != nil {
			return err
		}
		cfg.Scenario.Strategy = name
	}
	if cmd.Flags().Changed("seed") {
		cfg.Simulation.Seed = seed
	}
	if saveConfig != "" {
		if err := config.SaveConfig(cfg, saveConfig); err != nil {
			return err
		}
	}

	controller := controllers.NewSimulationController()
	defer controller.Shutdown()

	handle, err := controller.Start(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.Launch(ctx, handle); err != nil {
		return err
	}
	if err := controller.Wait(handle.ID()); err != nil {
		return err
	}

	result := runResult{RunID: handle.ID()}
	if result.Statistics, err = controller.GetStatistics(handle.ID()); err != nil {
		return err
	}
	if withFrames {
		if result.Frames, err = controller.GetFrames(handle.ID(), 0, handle.Engine().FrameCount()); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
