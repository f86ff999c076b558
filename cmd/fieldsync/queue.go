package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newQueueCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the saved queue",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved operations in replay order",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, stop, err := startOneShot(cmd.Context(), c, buildOptions{forceOffline: true})
			if err != nil {
				return err
			}
			defer stop()

			pending := svc.Pending()
			if asJSON {
				return printJSON(cmd, pending)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tRETRIES\tENQUEUED\tDESCRIPTION")
			for _, op := range pending {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					op.ID, op.Kind, op.RetryCount, op.EnqueuedAt.Local().Format(time.DateTime), op.Description)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	var yes bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Drop every saved operation without replaying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge discards queued changes for good; pass --yes to confirm")
			}
			svc, stop, err := startOneShot(cmd.Context(), c, buildOptions{forceOffline: true})
			if err != nil {
				return err
			}
			defer stop()

			n, err := svc.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %d operation(s)\n", n)
			return nil
		},
	}
	purge.Flags().BoolVar(&yes, "yes", false, "confirm the purge")

	cmd.AddCommand(list, purge)
	return cmd
}
