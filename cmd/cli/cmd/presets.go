package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List scenario presets",
	RunE:  listPresets,
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List navigation strategies",
	RunE:  listStrategies,
}

func listPresets(_ *cobra.Command, _ []string) error {
	base := config.GetDefaultConfig()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tFORCES\tSTRATEGY\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t------\t--------\t-----------")

	for _, name := range config.PresetNames() {
		p, _ := config.GetPreset(name)
		cfg := base.Clone()
		p.Apply(cfg)
		_, _ = fmt.Fprintf(w, "%s\t%d v %d\t%s\t%s\n", p.Name,
			cfg.Scenario.FriendlyCount, cfg.Scenario.EnemyCount, cfg.Scenario.Strategy, p.Description)
	}
	return w.Flush()
}

func listStrategies(_ *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t-----------")
	for _, kind := range core.StrategyKinds {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", kind, kind.Description())
	}
	return w.Flush()
}
