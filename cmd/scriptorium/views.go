package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"scriptorium/internal/query"
	"scriptorium/internal/queue"
	"scriptorium/internal/textutil"
	"scriptorium/internal/timespan"
)

func buildWorkRows(works []*queue.Work) [][]string {
	rows := make([][]string, 0, len(works))
	for _, work := range works {
		rows = append(rows, []string{
			work.ID,
			orDash(work.Title),
			formatMetadata(work.Metadata),
			formatDisplayTime(work.CreatedAt),
		})
	}
	return rows
}

func buildActionRows(records []*queue.ActionRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.FormatInt(record.ID, 10),
			record.WorkID,
			record.Action,
			formatStatusLabel(string(record.Status)),
			formatDisplayTime(record.ScheduledAt),
			orDash(truncate(record.Result, 48)),
		})
	}
	return rows
}

func buildStatsRows(stats map[queue.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}

func formatStatusLabel(status string) string {
	return textutil.Label(status)
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDisplayTime(*t)
}

// formatRelative renders how far t is from now in timespan notation.
func formatRelative(t, now time.Time) string {
	d := t.Sub(now)
	switch {
	case d >= time.Second:
		return "in " + timespan.FormatDuration(d)
	case d <= -time.Second:
		return timespan.FormatDuration(-d) + " ago"
	default:
		return "now"
	}
}

func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(meta))
	for key := range meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, meta[key]))
	}
	return truncate(strings.Join(parts, " "), 48)
}

// formatParameters renders parameters in query syntax so the output can be
// pasted back into "actions enqueue --params".
func formatParameters(params map[string]string) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	tokens := make([]query.Token, 0, len(keys))
	for _, key := range keys {
		tokens = append(tokens, query.Token{Key: key, Value: params[key]})
	}
	return query.Join(tokens)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid action id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
