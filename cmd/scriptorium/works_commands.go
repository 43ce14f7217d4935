package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scriptorium/internal/queue"
	"scriptorium/internal/selection"
	"scriptorium/internal/services"
)

func newWorksCommand(ctx *commandContext) *cobra.Command {
	worksCmd := &cobra.Command{
		Use:   "works",
		Short: "Inspect registered works",
	}

	worksCmd.AddCommand(newWorksListCommand(ctx))
	worksCmd.AddCommand(newWorksShowCommand(ctx))
	worksCmd.AddCommand(newWorksSelectCommand(ctx))

	return worksCmd
}

var workHeaders = []string{"ID", "Title", "Metadata", "Imported"}

func newWorksListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered works, most recent first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				works, err := store.ListWorks(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return renderWorks(cmd, works, asJSON)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum works to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newWorksSelectCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "select <query>",
		Short: "Select works with query syntax",
		Long: "Select works matching a query. Recognized fields:\n" +
			"  identifier:<id>     exact identifier\n" +
			"  title:<text>        title contains text\n" +
			"  imported:<span>     imported within the timespan, e.g. imported:7d\n" +
			"Other words search identifier, title, and metadata. Quote values containing spaces.",
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := selection.Compile(strings.Join(args, " "), time.Now())
			if err != nil {
				return err
			}
			filter.Limit = limit
			return ctx.withStore(func(store *queue.Store) error {
				works, err := store.SelectWorks(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return renderWorks(cmd, works, asJSON)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum works to return (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderWorks(cmd *cobra.Command, works []*queue.Work, asJSON bool) error {
	if works == nil {
		works = []*queue.Work{}
	}
	return emit(cmd, asJSON, works, func() error {
		out := cmd.OutOrStdout()
		if len(works) == 0 {
			fmt.Fprintln(out, "No works found")
			return nil
		}
		fmt.Fprint(out, renderTable(workHeaders, buildWorkRows(works), nil))
		return nil
	})
}

type workDetail struct {
	Work    *queue.Work           `json:"work"`
	Actions []*queue.ActionRecord `json:"actions"`
}

func newWorksShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work and its action history",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				work, err := store.FindWork(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if work == nil {
					return services.Wrap(services.ErrNotFound, "cli", "works show", fmt.Sprintf("work %q", args[0]), nil)
				}
				records, err := store.ListActions(cmd.Context(), queue.ActionFilter{WorkID: work.ID})
				if err != nil {
					return err
				}
				if records == nil {
					records = []*queue.ActionRecord{}
				}
				detail := workDetail{Work: work, Actions: records}
				return emit(cmd, asJSON, detail, func() error {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "ID:        %s\n", work.ID)
					fmt.Fprintf(out, "Title:     %s\n", orDash(work.Title))
					fmt.Fprintf(out, "Imported:  %s\n", formatDisplayTime(work.CreatedAt))
					fmt.Fprintf(out, "Metadata:  %s\n", formatMetadata(work.Metadata))
					if len(records) == 0 {
						fmt.Fprintln(out, "Actions:   none")
						return nil
					}
					fmt.Fprintln(out, "Actions:")
					fmt.Fprint(out, renderTable(actionHeaders, buildActionRows(records), actionAligns))
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
