package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available simulations",
	Long:  `List every simulation descriptor found under cmd/ with its parameters`,
	RunE:  listSimulations,
}

func init() {
	listCmd.Flags().BoolP("params", "p", false, "show each simulation's parameters")
}

func listSimulations(cmd *cobra.Command, _ []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	if len(simInfos) == 0 {
		fmt.Println("No simulations found")
		return nil
	}

	showParams, _ := cmd.Flags().GetBool("params")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tCATEGORY\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------\t-----------")

	for _, info := range simInfos {
		d := info.Descriptor
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Version, d.Category, d.Description)
		if !showParams {
			continue
		}
		for _, p := range d.Parameters {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%v\t%s\n", p.Name, p.Type, p.Default, p.Description)
		}
	}

	return w.Flush()
}
