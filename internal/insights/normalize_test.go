package insights

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 12.5, 12.5},
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"grouped string", "1,234.5", 1234.5},
		{"padded string", " 42 ", 42},
		{"empty string", "", 0},
		{"garbage string", "abc", 0},
		{"nan string", "NaN", 0},
		{"inf string", "Inf", 0},
		{"inf float", math.Inf(1), 0},
		{"nan float", math.NaN(), 0},
		{"json number", json.Number("3.25"), 3.25},
		{"bad json number", json.Number("x"), 0},
		{"bool", true, 0},
		{"object", map[string]any{"a": 1}, 0},
		{"nil pointer", (*float64)(nil), 0},
		{"int8", int8(-5), -5},
		{"int16", int16(42), 42},
		{"uint8", uint8(7), 7},
		{"uint16", uint16(65000), 65000},
		{"float32", float32(2.5), 2.5},
		{"float64 pointer", floatPtr(4.75), 4.75},
		{"float32 pointer", float32Ptr(3), 3},
		{"int pointer", intPtr(11), 11},
		{"string pointer", stringPtr("1,000"), 1000},
		{"json number pointer", jsonNumberPtr("6.5"), 6.5},
		{"nil int pointer", (*int)(nil), 0},
		{"named float", spendAmount(9.5), 9.5},
		{"inf float32", float32(math.Inf(1)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNumber(tt.in)
			assert.Equal(t, tt.want, got)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{2.345, 2.35},
		{-2.345, -2.35},
		{0.125, 0.13},
		{1.004, 1.0},
		{100, 100},
		{math.NaN(), 0},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestRoundCount(t *testing.T) {
	assert.Equal(t, 3.0, RoundCount(2.5))
	assert.Equal(t, -3.0, RoundCount(-2.5))
	assert.Equal(t, 2.0, RoundCount(2.49))
	assert.Equal(t, 0.0, RoundCount(math.Inf(1)))
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 0.0, SafeDiv(1, 0))
	assert.Equal(t, 0.0, SafeDiv(0, 0))
	assert.Equal(t, 0.25, SafeDiv(1, 4))
	assert.Equal(t, -2.0, SafeDiv(-6, 3))
}

type spendAmount float64

func floatPtr(v float64) *float64 { return &v }

func float32Ptr(v float32) *float32 { return &v }

func intPtr(v int) *int { return &v }

func stringPtr(v string) *string { return &v }

func jsonNumberPtr(v string) *json.Number {
	n := json.Number(v)
	return &n
}
