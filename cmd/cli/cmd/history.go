package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/reporting"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived runs",
	Long:  `List, inspect and delete runs stored in the archive database`,
	RunE:  listHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show an archived run's statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  showHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete an archived run and its frames",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to list, 0 for all")
	historyDeleteCmd.Flags().BoolP("yes", "y", false, "skip confirmation")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

func openHistory() (*reporting.Archive, error) {
	path := viper.GetString(keyArchivePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no archive at %s, run with --archive first", path)
	}
	return reporting.OpenArchive(path)
}

func listHistory(cmd *cobra.Command, _ []string) error {
	archive, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := archive.ListRuns(contextOf(cmd), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tSTRATEGY\tFORCES\tSEED\tOUTCOME\tKILL RATIO\tMISSION")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t------\t----\t-------\t----------\t-------")
	for _, r := range runs {
		mission := "failed"
		if r.MissionSuccess {
			mission = "success"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d v %d\t%d\t%s\t%.2f\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Strategy,
			r.FriendlyCount, r.EnemyCount, r.Seed, r.Outcome, r.KillRatio, mission)
	}
	return w.Flush()
}

func showHistory(cmd *cobra.Command, args []string) error {
	archive, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	ctx := contextOf(cmd)
	rec, err := archive.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	stats, err := rec.DecodeStatistics()
	if err != nil {
		return err
	}
	spinner := logger.NewSpinnerWithFrames("Loading recorded frames", logger.SpinnerRadar)
	spinner.Start()
	frames, err := archive.Frames(ctx, rec.ID)
	if err != nil {
		spinner.Stop()
		return err
	}
	spinner.UpdateMessage(fmt.Sprintf("Summarizing %d frames", len(frames)))
	peakEnemies := 0
	for i := range frames {
		_, enemies := frames[i].ActiveCounts()
		peakEnemies = max(peakEnemies, enemies)
	}
	spinner.Stop()

	details := map[string]interface{}{
		"Name":         rec.Name,
		"Recorded":     rec.CreatedAt.Format("2006-01-02 15:04:05"),
		"Formation":    rec.Formation,
		"Frames":       len(frames),
		"Peak threats": peakEnemies,
	}
	if len(frames) > 0 {
		friendlies, enemies := frames[len(frames)-1].ActiveCounts()
		details["Final forces"] = fmt.Sprintf("%d v %d", friendlies, enemies)
	}
	logger.LogSection(fmt.Sprintf("Run %s", rec.ID))
	logger.LogKeyValues(details)
	printStatistics(stats, 0)
	return nil
}

func deleteHistory(cmd *cobra.Command, args []string) error {
	archive, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		var confirm bool
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Are you sure you want to delete run %s?", args[0]),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Println("Deletion cancelled")
			return nil
		}
	}

	if err := archive.DeleteRun(contextOf(cmd), args[0]); err != nil {
		return err
	}
	fmt.Printf("Run %s deleted\n", args[0])
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
