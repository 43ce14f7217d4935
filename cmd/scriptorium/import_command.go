package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"scriptorium/internal/actions"
	"scriptorium/internal/config"
	"scriptorium/internal/ingest"
	"scriptorium/internal/logging"
	"scriptorium/internal/queue"
	"scriptorium/internal/services"
)

type importOptions struct {
	title     string
	metadata  []string
	manifest  string
	action    string
	params    string
	delay     string
	noAction  bool
	threshold float64
	asJSON    bool
}

type importOutcome struct {
	ID       string        `json:"id"`
	Imported bool          `json:"imported"`
	Error    string        `json:"error,omitempty"`
	Kind     services.Kind `json:"error_kind,omitempty"`
	Similar  []string      `json:"similar,omitempty"`
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import [id]",
		Short: "Register a work and schedule its post-import action",
		Long: "Register a work by identifier, or every work in a YAML manifest with --manifest.\n" +
			"A work whose identifier is already registered is rejected (exit code 3).",
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (opts.manifest == "") {
				return services.Wrap(services.ErrValidation, "cli", "import", "provide exactly one of an id argument or --manifest", nil)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			onImport, err := resolveOnImport(cfg, registry, opts)
			if err != nil {
				return err
			}

			var candidates []*queue.Work
			if opts.manifest != "" {
				manifest, err := ingest.LoadManifest(opts.manifest)
				if err != nil {
					return err
				}
				candidates = manifest.Candidates()
			} else {
				meta, err := parseMetadataFlags(opts.metadata)
				if err != nil {
					return err
				}
				candidates = []*queue.Work{{ID: args[0], Title: opts.title, Metadata: meta}}
			}

			return ctx.withStore(func(store *queue.Store) error {
				pipeline := ingest.NewPipeline(store, registry, ctx.notifications(), ctx.cliLogger())
				outcomes, importErr := runImports(cmd, pipeline, store, ctx.cliLogger(), candidates, onImport, opts.threshold)
				if err := emit(cmd, opts.asJSON, outcomes, func() error {
					printImportOutcomes(cmd.OutOrStdout(), outcomes, onImport)
					return nil
				}); err != nil {
					return err
				}
				return importErr
			})
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Work title")
	cmd.Flags().StringArrayVarP(&opts.metadata, "meta", "m", nil, "Metadata entry key=value (repeatable)")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Import every work listed in a YAML manifest")
	cmd.Flags().StringVar(&opts.action, "action", "", "Post-import action (overrides import.action)")
	cmd.Flags().StringVar(&opts.params, "params", "", "Post-import action parameters in query syntax")
	cmd.Flags().StringVar(&opts.delay, "delay", "", "Post-import delay timespan, e.g. 30m")
	cmd.Flags().BoolVar(&opts.noAction, "no-action", false, "Skip the post-import action")
	cmd.Flags().Float64Var(&opts.threshold, "similarity", ingest.DefaultSimilarityThreshold, "Title similarity that triggers a possible-duplicate note")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRegistry(ctx *commandContext) (*actions.Registry, error) {
	registry := actions.NewRegistry()
	if err := actions.RegisterBuiltins(registry, ctx.notifications()); err != nil {
		return nil, err
	}
	return registry, nil
}

func resolveOnImport(cfg *config.Config, registry *actions.Registry, opts importOptions) (*ingest.OnImportAction, error) {
	if opts.noAction {
		return nil, nil
	}
	if opts.action == "" {
		onImport, err := ingest.OnImportFromConfig(cfg, registry)
		if err != nil || onImport == nil {
			return onImport, err
		}
		if opts.delay != "" {
			onImport.Delay = opts.delay
		}
		return onImport, nil
	}
	executor, err := registry.Resolve(opts.action)
	if err != nil {
		return nil, err
	}
	params, err := actions.ParseParameters(executor, opts.params)
	if err != nil {
		return nil, err
	}
	return &ingest.OnImportAction{Action: opts.action, Parameters: params, Delay: opts.delay}, nil
}

func runImports(cmd *cobra.Command, pipeline *ingest.Pipeline, works ingest.WorkLister, logger *slog.Logger, candidates []*queue.Work, onImport *ingest.OnImportAction, threshold float64) ([]importOutcome, error) {
	outcomes := make([]importOutcome, 0, len(candidates))
	var errs []error
	for _, candidate := range candidates {
		outcome := importOutcome{ID: candidate.ID}
		matches, err := pipeline.Checker().Similar(cmd.Context(), works, candidate, threshold)
		if err != nil {
			logging.WarnWithContext(logger, "similarity check failed; importing without duplicate note", "similarity_check_failed",
				logging.String(logging.FieldWorkID, candidate.ID),
				logging.Error(err),
			)
		}
		for _, match := range matches {
			outcome.Similar = append(outcome.Similar, fmt.Sprintf("%s (%.2f)", match.Work.ID, match.Score))
		}

		work, err := pipeline.Import(cmd.Context(), candidate, onImport)
		if work != nil {
			outcome.ID = work.ID
			outcome.Imported = true
		}
		if err != nil {
			outcome.Error = err.Error()
			outcome.Kind = services.KindOf(err)
			errs = append(errs, err)
			// Storage failures affect every remaining entry.
			if errors.Is(err, services.ErrStorageUnavailable) {
				outcomes = append(outcomes, outcome)
				break
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, joinImportErrors(errs, len(candidates))
}

// joinImportErrors folds per-entry failures into one error. The most severe
// failure comes first so it decides the exit code.
func joinImportErrors(errs []error, total int) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	ordered := slices.Clone(errs)
	slices.SortStableFunc(ordered, func(a, b error) int {
		return services.Severity(b) - services.Severity(a)
	})
	return fmt.Errorf("%d of %d imports failed: %w", len(errs), total, errors.Join(ordered...))
}

func printImportOutcomes(out io.Writer, outcomes []importOutcome, onImport *ingest.OnImportAction) {
	for _, outcome := range outcomes {
		switch {
		case outcome.Imported && outcome.Error != "":
			fmt.Fprintf(out, "Imported %s (post-import action not scheduled: %s)\n", outcome.ID, outcome.Error)
		case outcome.Imported:
			line := "Imported " + outcome.ID
			if onImport != nil {
				line += fmt.Sprintf(" (scheduled %s", onImport.Action)
				if onImport.Delay != "" {
					line += " in " + onImport.Delay
				}
				line += ")"
			}
			fmt.Fprintln(out, line)
		case outcome.Kind == services.KindWorkExists:
			fmt.Fprintf(out, "Skipped %s: already registered\n", outcome.ID)
		default:
			fmt.Fprintf(out, "Failed %s: %s\n", outcome.ID, outcome.Error)
		}
		if len(outcome.Similar) > 0 {
			fmt.Fprintf(out, "  note: title resembles %s\n", strings.Join(outcome.Similar, ", "))
		}
	}
}

func parseMetadataFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, services.Wrap(services.ErrValidation, "cli", "import",
				fmt.Sprintf("metadata %q must be key=value", entry), nil)
		}
		meta[key] = strings.TrimSpace(value)
	}
	return meta, nil
}
