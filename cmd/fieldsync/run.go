package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/fieldsync/pkg/fieldsync"
)

func newRunCmd(c *cli) *cobra.Command {
	bo := buildOptions{serveMetrics: true}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the queue in the foreground, replaying on reconnect until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, d, err := buildService(c.cfg, c.logger, bo)
			if err != nil {
				return err
			}
			defer d.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start fieldsync: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)

			// Surface a crash as an error so the group unwinds.
			g.Go(func() error {
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						if svc.Status() == fieldsync.StateCrashed {
							return errors.New("fieldsync crashed")
						}
					}
				}
			})

			g.Go(func() error {
				<-gctx.Done()
				c.zl.Info().Int("pending", len(svc.Pending())).Msg("stopping")
				if err := svc.Stop(); err != nil && !errors.Is(err, fieldsync.ErrNotRunning) {
					return fmt.Errorf("stop fieldsync: %w", err)
				}
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&bo.spool, "spool", false, "pick up request files dropped into the spool directory")
	cmd.Flags().StringVar(&bo.spoolDir, "spool-dir", "", "spool directory (default: <state-dir>/spool)")
	return cmd
}

// startOneShot starts a service for a single command and returns a stop
// function that logs instead of failing.
func startOneShot(ctx context.Context, c *cli, bo buildOptions) (*fieldsync.Service, func(), error) {
	svc, d, err := buildService(c.cfg, c.logger, bo)
	if err != nil {
		return nil, nil, err
	}
	if err := svc.Start(ctx); err != nil {
		d.close()
		return nil, nil, fmt.Errorf("start fieldsync: %w", err)
	}
	return svc, func() {
		if err := svc.Stop(); err != nil {
			c.zl.Warn().Err(err).Msg("stop fieldsync")
		}
		d.close()
	}, nil
}
