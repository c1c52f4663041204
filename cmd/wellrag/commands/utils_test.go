// ABOUTME: Tests for shared CLI formatting and validation helpers
// ABOUTME: Covers rune-safe truncation, relative times and positive-int checks

package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short unchanged", "ADK-GT-01", 20, "ADK-GT-01"},
		{"exact length unchanged", "ADK-GT-01", 9, "ADK-GT-01"},
		{"long gets ellipsis", "NAALDWIJK-GT-02-S1_EOWR.pdf", 12, "NAALDWIJK..."},
		{"tiny limit cuts bytes", "report", 2, "re"},
		{"empty", "", 5, ""},
		{"units kept whole", "Temperatur 92 °C am Kopf", 15, "Temperatur 9..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		input time.Time
		want  string
	}{
		{"seconds", now.Add(-20 * time.Second), "just now"},
		{"minutes", now.Add(-12 * time.Minute), "12m ago"},
		{"hours", now.Add(-5 * time.Hour), "5h ago"},
		{"days", now.Add(-3 * 24 * time.Hour), "3d ago"},
		{"older shows date", now.Add(-30 * 24 * time.Hour), now.Add(-30 * 24 * time.Hour).Format("2006-01-02")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.input))
		})
	}
}

func TestValidatePositiveInt(t *testing.T) {
	assert.NoError(t, validatePositiveInt(1, "limit"))
	assert.NoError(t, validatePositiveInt(500, "concurrency"))

	err := validatePositiveInt(0, "limit")
	assert.EqualError(t, err, "limit must be positive, got 0")

	err = validatePositiveInt(-4, "concurrency")
	assert.ErrorContains(t, err, "concurrency")
}
