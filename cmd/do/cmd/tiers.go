package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/DuyAnh662/Fileshare/internal/config"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/spf13/cobra"
)

func TiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers [file]",
		Short: "Validate a tiers file and print the resulting table",
		Long:  "Without a file the built-in defaults are printed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := model.DefaultTiers()
			if len(args) == 1 {
				loaded, err := config.LoadTiers(args[0])
				if err != nil {
					return err
				}
				tiers = loaded
			}
			return printTiers(tiers)
		},
	}
}

func printTiers(tiers model.TierTable) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tNAME\tMAX UPLOADS\tREQUIRES\tDURATION")
	for _, plan := range tiers {
		duration := "-"
		if plan.DurationDays > 0 {
			duration = fmt.Sprintf("%dd", plan.DurationDays)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", plan.Level, plan.Name, plan.MaxUploads, plan.Requirement, duration)
	}
	return w.Flush()
}
