package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)

	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "midnight stays put",
			input:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "end of day truncates",
			input:    time.Date(2025, 12, 31, 23, 59, 59, 999999999, time.UTC),
			expected: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "offset zone is converted to UTC first",
			input:    time.Date(2025, 3, 10, 2, 0, 0, 0, ist),
			expected: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StartOfDay(tt.input)
			assert.True(t, tt.expected.Equal(result), "got %s", result)
			assert.Equal(t, time.UTC, result.Location())
		})
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected int
	}{
		{
			name:     "same day",
			start:    time.Date(2025, 7, 15, 8, 0, 0, 0, time.UTC),
			end:      time.Date(2025, 7, 15, 22, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "late evening to early morning counts one day",
			start:    time.Date(2025, 7, 15, 23, 30, 0, 0, time.UTC),
			end:      time.Date(2025, 7, 16, 0, 30, 0, 0, time.UTC),
			expected: 1,
		},
		{
			name:     "leap year february",
			start:    time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			expected: 2,
		},
		{
			name:     "non-leap year february",
			start:    time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			expected: 1,
		},
		{
			name:     "end before start is negative",
			start:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			expected: -7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysBetween(tt.start, tt.end))
		})
	}
}
