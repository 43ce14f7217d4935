// Package timespan parses the human-readable durations administrators use for
// scheduler cadences and action delays.
//
// A timespan is a positive integer without leading zeros followed by an
// optional unit letter: s (seconds, also the default), m, h, or d. Composite
// forms such as "1h30m" are rejected so every accepted string maps to exactly
// one second count and Format can reproduce it.
package timespan
