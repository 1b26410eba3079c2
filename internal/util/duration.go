package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
)

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

// ParseDuration parses compact duration strings such as "15m", "7d" or
// "2w". Unlike time.ParseDuration it supports day and week units, which
// token lifetimes are naturally expressed in. A bare number is rejected.
func ParseDuration(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, errors.New("empty duration")
	}

	split := len(trimmed)
	for split > 0 && unicode.IsLetter(rune(trimmed[split-1])) {
		split--
	}

	value, unit := trimmed[:split], strings.ToLower(trimmed[split:])
	if value == "" || unit == "" {
		return 0, errors.Errorf("malformed duration %q", s)
	}

	factor, ok := durationUnits[unit]
	if !ok {
		return 0, errors.Errorf("unknown duration unit %q in %q", unit, s)
	}

	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed duration %q", s)
	}
	if amount < 0 {
		return 0, errors.Errorf("negative duration %q", s)
	}

	return time.Duration(amount * float64(factor)), nil
}

// FormatDuration formats duration into human readable format (e.g., "1h30m", "5m10s", "45s").
func FormatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	}

	if duration < time.Hour {
		m := int(duration.Minutes())
		s := int(duration.Seconds()) % 60

		return fmt.Sprintf("%dm%ds", m, s)
	}

	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60

	return fmt.Sprintf("%dh%dm", h, m)
}
