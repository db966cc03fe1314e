package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "buildgen",
		Short:        "Procedural building generator tools",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(journalCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var opts generateOpts

	cmd := &cobra.Command{
		Use:   "generate [template-id]",
		Short: "Generate a building from a catalog template and save a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			opts.Template = args[0]
			if !c.Flags().Changed("seed") {
				opts.Seed = nil
			}
			return runGenerate(c.OutOrStdout(), opts)
		},
	}

	var seed int64
	opts.Seed = &seed
	cmd.Flags().StringVar(&opts.Configs, "configs", "./configs", "building template catalog directory")
	cmd.Flags().StringVar(&opts.Building, "building", "building", "building id")
	cmd.Flags().IntVarP(&opts.Floors, "floors", "n", 3, "floor count")
	cmd.Flags().StringVar(&opts.FloorTemplate, "floor-template", "", "floor template for every floor (default: random per floor)")
	cmd.Flags().StringVar(&opts.RoofTemplate, "roof-template", "", "roof template (default: random)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for template picks and element seeds (default: fresh)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "./data/snapshots", "snapshot output directory")
	cmd.Flags().StringVar(&opts.JournalDir, "journal", "", "data directory to append journal entries to (optional)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the building metadata blob")
	return cmd
}

func validateCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a template catalog directory, a template file, or a building blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runValidate(c.OutOrStdout(), args[0], kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "auto", "blob kind for .json files: auto, template or building")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [snapshot...]",
		Short: "Print snapshot headers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runInspect(c.OutOrStdout(), args)
		},
	}
}

func replayCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "replay [snapshot]",
		Short: "Regenerate a snapshot's building in a fresh scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runReplay(c.OutOrStdout(), args[0], verify)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", true, "fail when the regenerated elements differ from the stored building")
	return cmd
}

func journalCmd() *cobra.Command {
	var buildingID string

	cmd := &cobra.Command{
		Use:   "journal [data-dir]",
		Short: "Print journal entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runJournal(c.OutOrStdout(), args[0], buildingID)
		},
	}

	cmd.Flags().StringVarP(&buildingID, "building", "b", "", "only entries for this building")
	return cmd
}
