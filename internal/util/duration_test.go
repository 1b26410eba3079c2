package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{name: "milliseconds", input: "250ms", expected: 250 * time.Millisecond},
		{name: "seconds", input: "45s", expected: 45 * time.Second},
		{name: "minutes", input: "15m", expected: 15 * time.Minute},
		{name: "hours", input: "12h", expected: 12 * time.Hour},
		{name: "days", input: "7d", expected: 7 * 24 * time.Hour},
		{name: "weeks", input: "2w", expected: 2 * 7 * 24 * time.Hour},
		{name: "fractional", input: "1.5h", expected: 90 * time.Minute},
		{name: "uppercase unit", input: "30S", expected: 30 * time.Second},
		{name: "surrounding whitespace", input: " 5m ", expected: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDuration_SevenDaysInMilliseconds(t *testing.T) {
	got, err := ParseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, int64(7*86400000), got.Milliseconds())
}

func TestParseDuration_Invalid(t *testing.T) {
	inputs := []string{"", "  ", "7", "d", "7x", "abc", "-1d", "1dd"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			assert.Error(t, err)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "5m10s", FormatDuration(5*time.Minute+10*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}
