package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"folio/internal/coverage"
	"folio/internal/identity"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var collection string
	var immediate bool
	var forceRefresh bool

	cmd := &cobra.Command{
		Use:   "resolve <type:value>",
		Short: "Resolve an identifier against the configured sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Parse(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app) error {
				if !immediate {
					if err := a.orchestrator.Register(cmd.Context(), id, collection); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Registered %s; the next batch run will resolve it\n", id)
					return nil
				}

				resolution, err := a.orchestrator.Resolve(cmd.Context(), id, collection, forceRefresh)
				printResolution(cmd, resolution)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Tenant collection the identifier belongs to")
	cmd.Flags().BoolVar(&immediate, "immediate", false, "Resolve synchronously instead of registering for the next batch run")
	cmd.Flags().BoolVar(&forceRefresh, "force", false, "Re-run providers that already settled")
	return cmd
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "register <type:value>",
		Short: "Register an identifier for the next batch run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Parse(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app) error {
				if err := a.orchestrator.Register(cmd.Context(), id, collection); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Tenant collection the identifier belongs to")
	return cmd
}

func printResolution(cmd *cobra.Command, resolution coverage.Resolution) {
	out := cmd.OutOrStdout()
	if len(resolution.Outcomes) == 0 {
		fmt.Fprintf(out, "%s: nothing to do, coverage already settled\n", resolution.Identifier)
		return
	}

	names := make([]string, 0, len(resolution.Outcomes))
	for name := range resolution.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		outcome := resolution.Outcomes[name]
		rows = append(rows, []string{name, string(outcome.Status), outcome.Message})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Provider", "Status", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "Resolved %s in %s\n", resolution.Identifier, resolution.Elapsed.Round(timeRounding))
}
