package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scriptorium/internal/logging"
	"scriptorium/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines    int
		follow   bool
		workID   string
		actionID int64
		level    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the current daemon log",
		Long: "Print the last lines of the most recent daemon log. With --follow, keep printing\n" +
			"new lines until interrupted. Filters apply to both JSON and console log formats.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lines < 0 {
				return usageError(fmt.Errorf("--lines must be non-negative"))
			}
			path := logging.CurrentDaemonLogPath(cfg.Paths.LogDir)
			filter := logs.Filter{WorkID: workID, ActionID: actionID, Level: level}
			out := cmd.OutOrStdout()

			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines, Filter: filter})
			if err != nil {
				return err
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if result.Offset == 0 && len(result.Lines) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No daemon log at %s\n", path)
				}
				return nil
			}

			offset := result.Offset
			for {
				next, err := logs.Tail(cmd.Context(), path, logs.TailOptions{
					Offset: offset,
					Follow: true,
					Wait:   time.Second,
					Filter: filter,
				})
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				for _, line := range next.Lines {
					fmt.Fprintln(out, line)
				}
				offset = next.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVarP(&workID, "work", "w", "", "Only lines for this work")
	cmd.Flags().Int64Var(&actionID, "action-id", 0, "Only lines for this action record")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
