package timespan

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidFormat reports input that does not match the timespan grammar.
var ErrInvalidFormat = errors.New("invalid timespan format")

var pattern = regexp.MustCompile(`^([1-9][0-9]*)([smhd]?)$`)

var multipliers = map[string]int64{
	"":  1,
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
}

// formatUnits is ordered largest first so Format picks the coarsest exact unit.
var formatUnits = []struct {
	suffix  string
	seconds int64
}{
	{"d", 86400},
	{"h", 3600},
	{"m", 60},
}

// Parse converts a timespan string into a number of seconds.
func Parse(input string) (int64, error) {
	match := pattern.FindStringSubmatch(input)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, input)
	}
	magnitude, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, input, err)
	}
	multiplier := multipliers[match[2]]
	if magnitude > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidFormat, input)
	}
	return magnitude * multiplier, nil
}

// Duration parses input and returns it as a time.Duration.
func Duration(input string) (time.Duration, error) {
	seconds, err := Parse(input)
	if err != nil {
		return 0, err
	}
	if seconds > int64(math.MaxInt64/time.Second) {
		return 0, fmt.Errorf("%w: %q overflows duration", ErrInvalidFormat, input)
	}
	return time.Duration(seconds) * time.Second, nil
}

// MustDuration is Duration for compile-time constants; it panics on bad input.
func MustDuration(input string) time.Duration {
	d, err := Duration(input)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders a positive second count using the largest unit that divides
// it exactly. Parse(Format(n)) == n for every n > 0.
func Format(seconds int64) string {
	if seconds <= 0 {
		return ""
	}
	for _, unit := range formatUnits {
		if seconds%unit.seconds == 0 {
			return strconv.FormatInt(seconds/unit.seconds, 10) + unit.suffix
		}
	}
	return strconv.FormatInt(seconds, 10) + "s"
}

// FormatDuration renders d truncated to whole seconds. Sub-second and
// non-positive durations render as an empty string.
func FormatDuration(d time.Duration) string {
	return Format(int64(d / time.Second))
}
