package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"scriptorium/internal/preflight"
	"scriptorium/internal/queue"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine formats "  Label:   [KIND] message", wrapped in the kind's
// color when colorize is set.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusKinds[kind]
	text := "[" + style.label + "]"
	if message != "" {
		text += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)
	if colorize && style.color != "" {
		return style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(line))
	if colorize {
		return []string{ansiBlue + line + ansiReset, ansiBlue + rule + ansiReset}
	}
	return []string{line, rule}
}

func daemonLines(report statusReport, colorize bool) []string {
	state := renderStatusLine("Scheduler", statusWarn, "Not running", colorize)
	if report.Daemon.Running {
		detail := "Running"
		if report.Daemon.PID > 0 {
			detail += " (pid " + strconv.Itoa(report.Daemon.PID) + ")"
		}
		state = renderStatusLine("Scheduler", statusOK, detail, colorize)
	}
	return []string{
		state,
		renderStatusLine("Config", statusInfo, orDash(report.ConfigPath), colorize),
	}
}

// checkLines renders a summary line followed by one line per check.
func checkLines(results []preflight.Result, colorize bool) []string {
	if len(results) == 0 {
		return []string{renderStatusLine("Summary", statusInfo, "no checks ran", colorize)}
	}
	failed := preflight.Failed(results)
	summary := renderStatusLine("Summary", statusOK, fmt.Sprintf("%d checks passed", len(results)), colorize)
	if len(failed) > 0 {
		summary = renderStatusLine("Summary", statusError, fmt.Sprintf("%d of %d checks failed", len(failed), len(results)), colorize)
	}
	lines := []string{summary}
	for _, result := range results {
		kind := statusError
		if result.Passed {
			kind = statusOK
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func queueLines(health queue.HealthSummary, colorize bool) []string {
	failedKind := statusInfo
	if health.Failed > 0 {
		failedKind = statusWarn
	}
	runningKind := statusInfo
	if health.Running > 0 {
		runningKind = statusOK
	}
	return []string{
		renderStatusLine("Works", statusInfo, strconv.Itoa(health.Works), colorize),
		renderStatusLine("Pending", statusInfo, strconv.Itoa(health.Pending), colorize),
		renderStatusLine("Running", runningKind, strconv.Itoa(health.Running), colorize),
		renderStatusLine("Succeeded", statusInfo, strconv.Itoa(health.Succeeded), colorize),
		renderStatusLine("Failed", failedKind, strconv.Itoa(health.Failed), colorize),
		renderStatusLine("Cancelled", statusInfo, strconv.Itoa(health.Cancelled), colorize),
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
