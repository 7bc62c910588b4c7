package cmd

import (
	"os"
	"path/filepath"

	"github.com/picogrid/swarm-defense/pkg/config"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Viper keys
const (
	keyArchivePath = "archive.path"
	keyReportsDir  = "reports.dir"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarm-sim",
	Short: "Drone swarm defense simulation CLI",
	Long: `Swarm Sim runs coordination-free drone swarm defense scenarios:
defending drones protect ground assets from air and ground attackers using
only what each drone can observe, with no messages between them.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "CLI config file (default is $HOME/.swarm-sim/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("archive-path", "", "run archive database (default is $HOME/.swarm-sim/runs.db)")
	_ = viper.BindPFlag(keyArchivePath, rootCmd.PersistentFlags().Lookup("archive-path"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profileCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault(keyArchivePath, filepath.Join(home, config.Dir, "runs.db"))
	}
	viper.SetDefault(keyReportsDir, "./reports/")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME/" + config.Dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SWARM")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		logger.Debugf("Using CLI config %s", viper.ConfigFileUsed())
	}
}
