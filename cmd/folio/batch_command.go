package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"folio/internal/batch"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Unattended batch resolution",
	}
	batchCmd.AddCommand(newBatchRunCommand(ctx))
	return batchCmd
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	var collection string
	var forceRefresh bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run batch resolution over the identifier population",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				lock := flock.New(a.cfg.LockPath())
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire batch lock: %w", err)
				}
				if !locked {
					return errors.New("another folio batch run holds the lock")
				}
				defer lock.Unlock()

				report, err := a.runner.Run(cmd.Context(), batch.Options{
					Collection:   collection,
					ForceRefresh: forceRefresh,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, report.Elapsed.Round(timeRounding))
				fmt.Fprintln(out, renderTable(
					[]string{"Succeeded", "Transient", "Persistent", "Passes"},
					[][]string{{
						fmt.Sprint(report.Succeeded),
						fmt.Sprint(report.Transient),
						fmt.Sprint(report.Persistent),
						fmt.Sprint(report.Passes),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Tenant collection the run resolves for")
	cmd.Flags().BoolVar(&forceRefresh, "force", false, "Re-run providers that already settled")
	return cmd
}
