package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/identity"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show coverage counts per source and operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				total, err := a.ids.Count(cmd.Context())
				if err != nil {
					return err
				}
				summary, err := a.ledger.Summary(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Identifiers tracked: %d\n", total)
				if len(summary) == 0 {
					fmt.Fprintln(out, "No coverage recorded yet.")
					return nil
				}

				rows := make([][]string, 0, len(summary))
				for _, counts := range summary {
					rows = append(rows, []string{
						counts.Source,
						counts.Operation,
						fmt.Sprint(counts.Success),
						fmt.Sprint(counts.Transient),
						fmt.Sprint(counts.Persistent),
						fmt.Sprint(counts.Pending),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Source", "Operation", "Success", "Transient", "Persistent", "Pending"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newCoverageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "coverage <type:value>",
		Short: "Show the coverage ledger for one identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Parse(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app) error {
				records, err := a.ledger.Records(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintf(out, "No coverage recorded for %s\n", id)
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					recordedAt := ""
					if !record.RecordedAt.IsZero() {
						recordedAt = record.RecordedAt.Local().Format("2006-01-02 15:04:05")
					}
					rows = append(rows, []string{
						record.Source,
						record.Operation,
						string(record.Status),
						record.Message,
						recordedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Source", "Operation", "Status", "Message", "Recorded"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
