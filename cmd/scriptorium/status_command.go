package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"scriptorium/internal/config"
	"scriptorium/internal/daemonrun"
	"scriptorium/internal/preflight"
	"scriptorium/internal/queue"
)

type daemonState struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Lock    string `json:"lock"`
}

type statusReport struct {
	ConfigPath string               `json:"config_path"`
	Daemon     daemonState          `json:"daemon"`
	Checks     []preflight.Result   `json:"checks"`
	Queue      *queue.HealthSummary `json:"queue,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{ConfigPath: ctx.configPath, Daemon: probeDaemon(cfg)}
			report.Checks = preflight.RunAll(cmd.Context(), cfg)
			report.Checks = append(report.Checks, preflight.CheckQueueDatabaseFromConfig(cmd.Context(), cfg))
			report.Queue = queueSummary(cmd.Context(), cfg)

			return emit(cmd, asJSON, report, func() error {
				out := cmd.OutOrStdout()
				printStatusReport(out, report, shouldColorize(out))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// probeDaemon infers daemon liveness from its lock: a lock we can take is
// not held by a running daemon.
func probeDaemon(cfg *config.Config) daemonState {
	state := daemonState{Lock: cfg.LockPath()}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err == nil && locked {
		_ = lock.Unlock()
		return state
	}
	state.Running = err == nil
	if pid, err := daemonrun.ReadPID(cfg); err == nil {
		state.PID = pid
	}
	return state
}

func queueSummary(ctx context.Context, cfg *config.Config) *queue.HealthSummary {
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		return nil
	}
	store, err := queue.OpenPath(cfg.DatabasePath())
	if err != nil {
		return nil
	}
	defer store.Close()
	health, err := store.Health(ctx)
	if err != nil {
		return nil
	}
	return &health
}

func printStatusReport(out io.Writer, report statusReport, colorize bool) {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	lines = append(lines, daemonLines(report, colorize)...)
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	lines = append(lines, checkLines(report.Checks, colorize)...)
	if report.Queue != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Queue", colorize)...)
		lines = append(lines, queueLines(*report.Queue, colorize)...)
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
