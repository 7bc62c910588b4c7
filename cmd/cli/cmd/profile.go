package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	profiles "github.com/picogrid/swarm-defense/pkg/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved run profiles",
	Long:  `Manage named run profiles: a preset, strategy, seed and scenario file saved together`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE:  listProfiles,
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new profile",
	RunE:  addProfile,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a profile",
	RunE:  removeProfile,
}

var profileUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Select the profile used when run is given no --profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  useProfile,
}

const noneOption = "(none)"

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileUseCmd)
}

func listProfiles(_ *cobra.Command, _ []string) error {
	set, err := profiles.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(set.Profiles) == 0 {
		fmt.Println("No profiles saved")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPRESET\tSTRATEGY\tSEED\tSCENARIO")
	_, _ = fmt.Fprintln(w, "----\t------\t--------\t----\t--------")

	for _, p := range set.Profiles {
		name := p.Name
		if name == set.Selected {
			name += " *"
		}
		seed := "-"
		if p.Seed != nil {
			seed = strconv.FormatInt(*p.Seed, 10)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, orDash(p.Preset), orDash(p.Strategy), seed, orDash(p.Config))
	}

	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func addProfile(_ *cobra.Command, _ []string) error {
	set, err := profiles.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var p profiles.Profile

	namePrompt := &survey.Input{Message: "Profile name:"}
	if err := survey.AskOne(namePrompt, &p.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	if _, exists := set.Get(p.Name); exists {
		return fmt.Errorf("profile %s already exists", p.Name)
	}

	preset := noneOption
	presetPrompt := &survey.Select{
		Message: "Preset:",
		Options: append([]string{noneOption}, config.PresetNames()...),
		Default: noneOption,
		Description: func(value string, _ int) string {
			if p, ok := config.GetPreset(value); ok {
				return p.Description
			}
			return ""
		},
	}
	if err := survey.AskOne(presetPrompt, &preset); err != nil {
		return err
	}
	if preset != noneOption {
		p.Preset = preset
	}

	strategies := []string{noneOption}
	for _, kind := range core.StrategyKinds {
		strategies = append(strategies, string(kind))
	}
	strategy := noneOption
	strategyPrompt := &survey.Select{
		Message: "Strategy (overrides the preset):",
		Options: strategies,
		Default: noneOption,
	}
	if err := survey.AskOne(strategyPrompt, &strategy); err != nil {
		return err
	}
	if strategy != noneOption {
		p.Strategy = strategy
	}

	var seedText string
	seedPrompt := &survey.Input{
		Message: "Seed (blank keeps the scenario's seed):",
	}
	validateSeed := func(val interface{}) error {
		s, _ := val.(string)
		if s == "" {
			return nil
		}
		_, err := strconv.ParseInt(s, 10, 64)
		return err
	}
	if err := survey.AskOne(seedPrompt, &seedText, survey.WithValidator(validateSeed)); err != nil {
		return err
	}
	if seedText != "" {
		seed, _ := strconv.ParseInt(seedText, 10, 64)
		p.Seed = &seed
	}

	configPrompt := &survey.Input{
		Message: "Scenario file (optional):",
		Help:    "YAML scenario loaded before the preset is applied",
	}
	if err := survey.AskOne(configPrompt, &p.Config); err != nil {
		return err
	}

	set.Put(p)
	if err := profiles.SaveProfiles(set); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	fmt.Printf("Profile %s added successfully\n", p.Name)
	return nil
}

func removeProfile(_ *cobra.Command, _ []string) error {
	set, err := profiles.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(set.Profiles) == 0 {
		fmt.Println("No profiles to remove")
		return nil
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select profile to remove:",
		Options: set.Names(),
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return err
	}

	var confirm bool
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
		Default: false,
	}
	if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
		return err
	}
	if !confirm {
		fmt.Println("Removal cancelled")
		return nil
	}

	set.Remove(selected)
	if err := profiles.SaveProfiles(set); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	fmt.Printf("Profile %s removed successfully\n", selected)
	return nil
}

func useProfile(_ *cobra.Command, args []string) error {
	set, err := profiles.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		prompt := &survey.Select{
			Message: "Select default profile:",
			Options: append([]string{noneOption}, set.Names()...),
			Default: noneOption,
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}
	}

	if selected == noneOption {
		selected = ""
	} else if _, ok := set.Get(selected); !ok {
		return fmt.Errorf("profile %s not found", selected)
	}

	set.Selected = selected
	if err := profiles.SaveProfiles(set); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	if selected == "" {
		fmt.Println("Default profile cleared")
	} else {
		fmt.Printf("Profile %s selected\n", selected)
	}
	return nil
}
