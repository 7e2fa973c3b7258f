package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"autoblog/internal/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCronCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect and run pseudo-cron events",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List scheduled events",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				deps, closeDeps, err := buildDeps(ctx, a.cfg, a.logger, metrics.New())
				if err != nil {
					return err
				}
				defer closeDeps()

				events, err := newScope(ctx, deps).Cron().Events(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tHOOK\tRECURRENCE\tNEXT RUN")
				for _, ev := range events {
					recurrence := ev.Recurrence
					if recurrence == "" {
						recurrence = "once"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.ID, ev.Hook, recurrence, ev.NextRun.Local().Format(time.RFC3339))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run every due event now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				deps, closeDeps, err := buildDeps(ctx, a.cfg, a.logger, metrics.New())
				if err != nil {
					return err
				}
				defer closeDeps()

				n, err := newScope(ctx, deps).SpawnCron(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("Pseudo-cron events ran", zap.Int("events", n))
				fmt.Fprintf(cmd.OutOrStdout(), "%d event(s) ran\n", n)
				return nil
			},
		},
	)
	return cmd
}
