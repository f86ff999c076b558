package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/fieldsync/pkg/fieldsync"
)

func newSubmitCmd(c *cli) *cobra.Command {
	var action, entity, payload, description, key string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Perform one mutation now, or queue it if the service is unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := fieldsync.Kind{Action: fieldsync.Action(action), Entity: entity}
			if err := kind.Validate(); err != nil {
				return err
			}

			svc, stop, err := startOneShot(cmd.Context(), c, buildOptions{})
			if err != nil {
				return err
			}
			defer stop()

			res := svc.Execute(cmd.Context(), fieldsync.Request{
				Kind:           kind,
				Payload:        json.RawMessage(payload),
				Description:    description,
				IdempotencyKey: key,
			})

			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success && !res.Queued {
				return fmt.Errorf("operation failed: %s", res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "create, update or delete")
	cmd.Flags().StringVar(&entity, "entity", "", "entity name, e.g. stationControl")
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON payload")
	cmd.Flags().StringVar(&description, "description", "", "human-readable label for notices")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "idempotency key (default: generated)")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
