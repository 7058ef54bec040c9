package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected string
	}{
		{name: "billions", value: 1_250_000_000, expected: "1.25B"},
		{name: "millions", value: 584_003_293.225, expected: "584.00M"},
		{name: "thousands", value: 4_671.245, expected: "4.67K"},
		{name: "units", value: 42.5, expected: "42.50"},
		{name: "dust keeps precision", value: 0.00012345, expected: "0.00012345"},
		{name: "negative mirrors positive", value: -1500, expected: "-1.50K"},
		{name: "zero", value: 0, expected: "0.00000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatLargeNumber(tt.value))
		})
	}
}
