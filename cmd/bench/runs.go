package main

import (
	"fmt"

	"github.com/fwojciec/bench"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	var filter bench.RunFilter
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if filter.Limit < 0 {
				return fmt.Errorf("--limit must not be negative: %w", bench.ErrConfig)
			}
			s, err := a.runStore(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := s.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.reporter.Runs(runs)
		},
	}
	cmd.Flags().StringVar(&filter.Scenario, "scenario", "", "Only list runs of this scenario")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum runs to list (0 for all)")
	return cmd
}
