package logs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"scriptorium/internal/logging"
)

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	WorkID   string
	ActionID int64
	Level    string
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.WorkID) == "" && f.ActionID <= 0 && strings.TrimSpace(f.Level) == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	fields := parseLine(line)
	if fields == nil {
		return false
	}
	if want := strings.TrimSpace(f.WorkID); want != "" && fields[logging.FieldWorkID] != want {
		return false
	}
	if f.ActionID > 0 && fields[logging.FieldActionID] != strconv.FormatInt(f.ActionID, 10) {
		return false
	}
	if want := levelRank(f.Level); want > 0 && levelRank(fields["level"]) < want {
		return false
	}
	return true
}

func (f Filter) apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	kept := lines[:0]
	for _, line := range lines {
		if f.Match(line) {
			kept = append(kept, line)
		}
	}
	return kept
}

// parseLine extracts flat fields from a JSON or console log line.
func parseLine(line string) map[string]string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil
		}
		fields := make(map[string]string, len(raw))
		for key, value := range raw {
			switch v := value.(type) {
			case float64:
				fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
			case string:
				fields[key] = v
			default:
				fields[key] = fmt.Sprint(v)
			}
		}
		return fields
	}

	// 2026-01-02T15:04:05Z INFO component: message key=value key="quoted value"
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil
	}
	fields := map[string]string{"level": parts[1]}
	if len(parts) == 3 {
		for key, value := range consolePairs(parts[2]) {
			fields[key] = value
		}
	}
	return fields
}

func consolePairs(text string) map[string]string {
	pairs := map[string]string{}
	for i := 0; i < len(text); {
		eq := strings.IndexByte(text[i:], '=')
		if eq < 0 {
			break
		}
		eq += i
		start := strings.LastIndexByte(text[:eq], ' ') + 1
		key := text[start:eq]
		rest := text[eq+1:]
		var value string
		if strings.HasPrefix(rest, `"`) {
			if unquoted, err := strconv.QuotedPrefix(rest); err == nil {
				value, _ = strconv.Unquote(unquoted)
				i = eq + 1 + len(unquoted)
			} else {
				value = rest
				i = len(text)
			}
		} else {
			end := strings.IndexByte(rest, ' ')
			if end < 0 {
				end = len(rest)
			}
			value = rest[:end]
			i = eq + 1 + end
		}
		if key != "" {
			pairs[key] = value
		}
	}
	return pairs
}

func levelRank(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return 1
	case "INFO":
		return 2
	case "WARN", "WARNING":
		return 3
	case "ERROR":
		return 4
	default:
		return 0
	}
}
