package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpr_Invalid(t *testing.T) {
	tests := []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
		"@daily",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"1,,2 * * * *",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseExpr(expr)
			assert.Error(t, err)
		})
	}
}

func TestExpr_Next(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC) // Monday

	tests := []struct {
		name string
		expr string
		from time.Time
		want time.Time
	}{
		{"every minute", "* * * * *", base, time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC)},
		{"top of hour", "0 * * * *", base, time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)},
		{"daily at nine", "0 9 * * *", base, time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)},
		{"every 15 minutes", "*/15 * * * *", base, time.Date(2024, 1, 15, 10, 45, 0, 0, time.UTC)},
		{"range with step", "0 8-18/4 * * *", base, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)},
		{"weekdays list", "0 9 * * 1,3,5", base, time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC)},
		{"sunday", "0 0 * * 0", base, time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)},
		{"named weekday", "0 0 * * SUN", base, time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)},
		{"first of month", "0 0 1 * *", base, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"dom or dow", "0 0 20 * 3", base, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)},
		{"leap day", "0 12 29 2 *", base, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
		{"exact minute is strictly after", "30 10 * * *", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), time.Date(2024, 1, 16, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			got, err := e.Next(tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpr_NextNeverMatches(t *testing.T) {
	e, err := ParseExpr("0 0 31 2 *")
	require.NoError(t, err)
	_, err = e.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestExpr_NextKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	e, err := ParseExpr("0 6 * * *")
	require.NoError(t, err)

	got, err := e.Next(time.Date(2024, 5, 1, 7, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 6, 0, 0, 0, loc), got)
}
