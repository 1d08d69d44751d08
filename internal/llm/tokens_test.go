package llm

import (
	"math"
	"strings"
	"testing"
)

func TestEstimateTokensFormula(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},        // 3/3.5 floors to 0
		{"abcd", 1},       // 4/3.5 = 1.14...
		{"1234567", 2},    // 7/3.5 = 2 exactly
		{strings.Repeat("x", 35), 10},
		{strings.Repeat("x", 3500), 1000},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(len=%d) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestEstimateTokensMatchesFloor(t *testing.T) {
	for n := 0; n <= 1000; n++ {
		text := strings.Repeat("a", n)
		want := int(math.Floor(float64(n) / 3.5))
		if got := EstimateTokens(text); got != want {
			t.Fatalf("EstimateTokens(len=%d) = %d, want floor(%d/3.5) = %d", n, got, n, want)
		}
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	prev := 0
	for n := 0; n <= 2000; n++ {
		got := EstimateTokens(strings.Repeat("a", n))
		if got < prev {
			t.Fatalf("estimate decreased at length %d: %d < %d", n, got, prev)
		}
		prev = got
	}
}
