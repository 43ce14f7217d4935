package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"scriptorium/internal/actions"
	"scriptorium/internal/queue"
	"scriptorium/internal/selection"
	"scriptorium/internal/services"
	"scriptorium/internal/timespan"
)

var (
	actionHeaders = []string{"ID", "Work", "Action", "Status", "Scheduled", "Result"}
	actionAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
)

func newActionsCommand(ctx *commandContext) *cobra.Command {
	actionsCmd := &cobra.Command{
		Use:   "actions",
		Short: "Inspect and manage scheduled action records",
	}

	actionsCmd.AddCommand(newActionsListCommand(ctx))
	actionsCmd.AddCommand(newActionsShowCommand(ctx))
	actionsCmd.AddCommand(newActionsEnqueueCommand(ctx))
	actionsCmd.AddCommand(newActionsCancelCommand(ctx))
	actionsCmd.AddCommand(newActionsRetryCommand(ctx))
	actionsCmd.AddCommand(newActionsResetStuckCommand(ctx))
	actionsCmd.AddCommand(newActionsStatsCommand(ctx))
	actionsCmd.AddCommand(newActionsRegisteredCommand(ctx))

	return actionsCmd
}

func newActionsListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		workID   string
		action   string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List action records, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.ActionFilter{WorkID: workID, Action: action, Limit: limit}
			for _, value := range statuses {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return services.Wrap(services.ErrValidation, "cli", "actions list", fmt.Sprintf("unknown status %q", value), nil)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(store *queue.Store) error {
				records, err := store.ListActions(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if records == nil {
					records = []*queue.ActionRecord{}
				}
				return emit(cmd, asJSON, records, func() error {
					out := cmd.OutOrStdout()
					if len(records) == 0 {
						fmt.Fprintln(out, "No action records")
						return nil
					}
					fmt.Fprint(out, renderTable(actionHeaders, buildActionRows(records), actionAligns))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&workID, "work", "w", "", "Filter by work identifier")
	cmd.Flags().StringVarP(&action, "action", "a", "", "Filter by action name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newActionsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one action record",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return usageError(err)
			}
			return ctx.withStore(func(store *queue.Store) error {
				record, err := store.GetAction(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if record == nil {
					return services.Wrap(services.ErrNotFound, "cli", "actions show", fmt.Sprintf("action %d", ids[0]), nil)
				}
				return emit(cmd, asJSON, record, func() error {
					printActionRecord(cmd, record)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printActionRecord(cmd *cobra.Command, record *queue.ActionRecord) {
	out := cmd.OutOrStdout()
	now := time.Now()
	fmt.Fprintf(out, "ID:          %d\n", record.ID)
	fmt.Fprintf(out, "Work:        %s\n", record.WorkID)
	fmt.Fprintf(out, "Action:      %s\n", record.Action)
	fmt.Fprintf(out, "Parameters:  %s\n", formatParameters(record.Parameters))
	fmt.Fprintf(out, "Status:      %s\n", formatStatusLabel(string(record.Status)))
	fmt.Fprintf(out, "Scheduled:   %s (%s)\n", formatDisplayTime(record.ScheduledAt), formatRelative(record.ScheduledAt, now))
	fmt.Fprintf(out, "Started:     %s\n", formatOptionalTime(record.StartedAt))
	fmt.Fprintf(out, "Finished:    %s\n", formatOptionalTime(record.FinishedAt))
	if record.CorrelationID != "" {
		fmt.Fprintf(out, "Correlation: %s\n", record.CorrelationID)
	}
	if record.RetryOf > 0 {
		fmt.Fprintf(out, "Retry of:    %d\n", record.RetryOf)
	}
	if record.ErrorKind != "" {
		fmt.Fprintf(out, "Error kind:  %s\n", record.ErrorKind)
	}
	fmt.Fprintf(out, "Result:      %s\n", orDash(record.Result))
}

func newActionsEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		workID   string
		selectQ  string
		rawParam string
		delay    string
		force    bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue <action> (--work <id> | --select <query>)",
		Short: "Schedule an action against registered works",
		Long: "Schedule an action for one work or for every work a selection query matches.\n" +
			"Parameters use query syntax, for example:\n" +
			"  scriptorium actions enqueue validate-metadata --work ms-0042 --params require:title,creator --delay 10m\n" +
			"  scriptorium actions enqueue announce --select 'imported:1d' --params 'message:\"ready\"'",
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := strings.TrimSpace(args[0])
			hasWork, hasSelect := strings.TrimSpace(workID) != "", strings.TrimSpace(selectQ) != ""
			if hasWork == hasSelect {
				return usageError(errors.New("exactly one of --work or --select is required"))
			}

			var wait time.Duration
			if delay != "" {
				d, err := timespan.Duration(delay)
				if err != nil {
					return fmt.Errorf("--delay: %w", err)
				}
				wait = d
			}

			registry, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			executor, err := registry.Resolve(action)
			if err != nil && !force {
				return err
			}
			params, err := actions.ParseParameters(executor, rawParam)
			if err != nil {
				return err
			}

			var filter queue.WorkFilter
			if hasSelect {
				filter, err = selection.Compile(selectQ, time.Now())
				if err != nil {
					return err
				}
			}

			return ctx.withStore(func(store *queue.Store) error {
				targets, err := enqueueTargets(cmd, store, workID, hasSelect, filter)
				if err != nil {
					return err
				}
				scheduledAt := time.Now().Add(wait)
				records := make([]*queue.ActionRecord, 0, len(targets))
				for _, work := range targets {
					record, err := store.EnqueueAction(cmd.Context(), work.ID, action, params, scheduledAt)
					if err != nil {
						return err
					}
					records = append(records, record)
				}
				return emit(cmd, asJSON, records, func() error {
					out := cmd.OutOrStdout()
					if len(records) == 0 {
						fmt.Fprintln(out, "No works matched; nothing enqueued")
						return nil
					}
					for _, record := range records {
						fmt.Fprintf(out, "Enqueued action %d: %s for %s (%s)\n",
							record.ID, record.Action, record.WorkID, formatRelative(record.ScheduledAt, time.Now()))
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&workID, "work", "w", "", "Identifier of the work to act on")
	cmd.Flags().StringVarP(&selectQ, "select", "s", "", "Selection query choosing the works to act on")
	cmd.Flags().StringVarP(&rawParam, "params", "p", "", "Action parameters in query syntax")
	cmd.Flags().StringVarP(&delay, "delay", "d", "", "Delay before the action is due, as a timespan (e.g. 30m)")
	cmd.Flags().BoolVar(&force, "force", false, "Enqueue even when the action is not registered in this CLI")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func enqueueTargets(cmd *cobra.Command, store *queue.Store, workID string, selected bool, filter queue.WorkFilter) ([]*queue.Work, error) {
	if selected {
		return store.SelectWorks(cmd.Context(), filter)
	}
	work, err := store.FindWork(cmd.Context(), workID)
	if err != nil {
		return nil, err
	}
	if work == nil {
		return nil, services.Wrap(services.ErrNotFound, "cli", "actions enqueue", fmt.Sprintf("work %q is not registered", workID), nil)
	}
	return []*queue.Work{work}, nil
}

func newActionsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel pending action records",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return usageError(err)
			}
			return ctx.withStore(func(store *queue.Store) error {
				cancelled, err := store.CancelPending(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cancelled %d of %d records\n", cancelled, len(ids))
				if int(cancelled) < len(ids) {
					fmt.Fprintln(out, "Records that were not pending are unchanged")
				}
				return nil
			})
		},
	}
}

func newActionsRetryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Enqueue fresh copies of failed action records",
		Long:  "Enqueue a new pending copy of each failed record (all failed records when no ids are given). The failed originals are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return usageError(err)
			}
			return ctx.withStore(func(store *queue.Store) error {
				retried, err := store.RetryFailed(cmd.Context(), time.Now(), ids...)
				if retried == nil {
					retried = []*queue.ActionRecord{}
				}
				if renderErr := emit(cmd, asJSON, retried, func() error {
					out := cmd.OutOrStdout()
					for _, record := range retried {
						fmt.Fprintf(out, "Retrying %d as %d (%s for %s)\n", record.RetryOf, record.ID, record.Action, record.WorkID)
					}
					fmt.Fprintf(out, "Retried %d failed records\n", len(retried))
					return nil
				}); renderErr != nil {
					return renderErr
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newActionsResetStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Fail records left running by a daemon that is no longer alive",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("check daemon lock: %w", err)
			}
			if !locked {
				return errors.New("daemon is running; running records are still owned by it")
			}
			defer lock.Unlock() //nolint:errcheck

			return ctx.withStore(func(store *queue.Store) error {
				ids, err := store.ResetStuck(cmd.Context(), "")
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No running records")
					return nil
				}
				parts := make([]string, len(ids))
				for i, id := range ids {
					parts[i] = strconv.FormatInt(id, 10)
				}
				fmt.Fprintf(out, "Failed %d stuck records: %s\n", len(ids), strings.Join(parts, ", "))
				return nil
			})
		},
	}
}

func newActionsStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show action record counts by status",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, health, func() error {
					stats := map[queue.Status]int{
						queue.StatusPending:   health.Pending,
						queue.StatusRunning:   health.Running,
						queue.StatusSucceeded: health.Succeeded,
						queue.StatusFailed:    health.Failed,
						queue.StatusCancelled: health.Cancelled,
					}
					out := cmd.OutOrStdout()
					fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildStatsRows(stats), []columnAlignment{alignLeft, alignRight}))
					fmt.Fprintf(out, "Works: %d  Actions: %d\n", health.Works, health.Total)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newActionsRegisteredCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "registered",
		Short: "List built-in actions and their accepted parameters",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, name := range registry.Names() {
				executor, _ := registry.Resolve(name)
				accepted := "any"
				if _, ok := executor.(actions.ParameterDescriber); ok {
					accepted = orDash(strings.Join(actions.AcceptedParameters(executor), ", "))
				}
				rows = append(rows, []string{name, accepted})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Action", "Parameters"}, rows, nil))
			return nil
		},
	}
}
