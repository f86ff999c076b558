package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/fieldsync/internal/app"
)

func newDrainCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay the saved queue once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, stop, err := startOneShot(ctx, c, buildOptions{})
			if err != nil {
				return err
			}
			defer stop()

			report, err := svc.Drain(ctx)
			// Start may have begun a replay of restored operations already.
			for err == nil && report.SkipReason == app.SkipInProgress {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(100 * time.Millisecond):
				}
				report, err = svc.Drain(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}
