// Package logs tails daemon log files for the CLI.
//
// Tail reads the last N lines or everything after a byte offset, and in
// follow mode polls until new lines arrive or the wait elapses. A Filter
// narrows lines to one work, action record, or minimum level; it
// understands both the JSON and the console log formats.
package logs
