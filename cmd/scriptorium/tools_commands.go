package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scriptorium/internal/query"
	"scriptorium/internal/selection"
	"scriptorium/internal/timespan"
)

func newTimespanCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "timespan <expr>...",
		Short:       "Convert timespan expressions such as 90m or 2d to seconds",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			type result struct {
				Input     string `json:"input"`
				Seconds   int64  `json:"seconds"`
				Canonical string `json:"canonical"`
			}
			results := make([]result, 0, len(args))
			for _, arg := range args {
				seconds, err := timespan.Parse(arg)
				if err != nil {
					return fmt.Errorf("%q: %w", arg, err)
				}
				results = append(results, result{Input: arg, Seconds: seconds, Canonical: timespan.Format(seconds)})
			}
			return emit(cmd, asJSON, results, func() error {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Input, strconv.FormatInt(r.Seconds, 10), r.Canonical})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Input", "Seconds", "Canonical"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueryCommand() *cobra.Command {
	var (
		keys   []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:         "query <input>",
		Short:       "Show how query syntax is tokenized",
		Long:        "Tokenize input with the query parser. Without --key the work selection fields are recognized.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			recognized := keys
			if len(recognized) == 0 {
				recognized = selection.Keys
			}
			tokens := query.Parse(strings.Join(args, " "), recognized...)
			type tokenView struct {
				Key   string `json:"key,omitempty"`
				Value string `json:"value"`
			}
			views := make([]tokenView, 0, len(tokens))
			for _, token := range tokens {
				views = append(views, tokenView{Key: token.Key, Value: token.Value})
			}
			return emit(cmd, asJSON, views, func() error {
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No tokens")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for i, view := range views {
					rows = append(rows, []string{strconv.Itoa(i + 1), orDash(view.Key), view.Value})
				}
				fmt.Fprint(out, renderTable([]string{"#", "Key", "Value"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "Recognized key (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
