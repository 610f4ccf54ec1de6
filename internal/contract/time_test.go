package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC)

func TestParseRelativeTime(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Time
		expectError bool
	}{
		{"plural months mixed case", "3 MoNtHs AgO", fixedNow.AddDate(0, -3, 0), false},
		{"singular week", "1 Week Ago", fixedNow.Add(-7 * 24 * time.Hour), false},
		{"hours", "6 hours ago", fixedNow.Add(-6 * time.Hour), false},
		{"minutes", "45 minutes ago", fixedNow.Add(-45 * time.Minute), false},
		{"missing ago", "2 years", time.Time{}, true},
		{"bad unit", "4 decades ago", time.Time{}, true},
		{"non-numeric", "one year ago", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.input, fixedNow)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseTimeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"now", "now", fixedNow},
		{"rfc3339", "2025-10-01T08:30:00Z", time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)},
		{"rfc3339 offset", "2025-10-01T10:30:00+02:00", time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)},
		{"space separated", "2025-10-01 08:30:00", time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)},
		{"date only", "2025-10-01", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"relative", "1 day ago", fixedNow.Add(-24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeInput(tt.input, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "want %s got %s", tt.expected, got)
		})
	}

	_, err := ParseTimeInput("yesterday-ish", fixedNow)
	assert.Error(t, err)
}

func TestParseLookbackDuration(t *testing.T) {
	const day = 24 * time.Hour

	tests := []struct {
		name      string
		input     string
		want      time.Duration
		expectErr bool
	}{
		{"go syntax", "90m", 90 * time.Minute, false},
		{"go syntax seconds", "2s", 2 * time.Second, false},
		{"1 minute", "1 minute", time.Minute, false},
		{"3 hours", "3 hours", 3 * time.Hour, false},
		{"7 days", "7 days", 7 * day, false},
		{"4 weeks", "4 weeks", 4 * 7 * day, false},
		{"month approx", "1 month", 30 * day, false},
		{"year approx", "2 years", 2 * 365 * day, false},
		{"mixed case", "3 MoNtHs", 3 * 30 * day, false},
		{"zero go syntax", "0s", 0, true},
		{"negative", "-5m", 0, true},
		{"zero quantity", "0 days", 0, true},
		{"missing unit", "3", 0, true},
		{"bad unit", "3 decades", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLookbackDuration(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
