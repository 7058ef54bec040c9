package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInflationRate(t *testing.T) {
	tests := []struct {
		name  string
		block uint64
		want  float64
	}{
		{"genesis", 0, 9.78},
		{"just before first narrowing", 249_999, 9.78},
		{"first narrowing", 250_000, 9.77},
		{"mid schedule", 100_000_000, 5.78},
		{"floor reached", 250_000 * 883, 0.95},
		{"far past floor", 1_000_000_000, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InflationRate(tt.block), 1e-9)
		})
	}
}

func TestNewSteemPerDay(t *testing.T) {
	// 365M supply at 3.65% inflation issues 36500 STEEM per day.
	assert.InDelta(t, 36_500, NewSteemPerDay(365_000_000, 3.65), 1e-6)
	assert.Zero(t, NewSteemPerDay(0, 9.78))
}
