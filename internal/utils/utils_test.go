package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_NormalizeSymbol tests the NormalizeSymbol function with various inputs
func Test_NormalizeSymbol(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		expected    string
		expectError bool
		description string
	}{
		{
			name:        "Already normalized",
			symbol:      "btcusdt",
			expected:    "btcusdt",
			description: "Should keep a lowercase symbol unchanged",
		},
		{
			name:        "Uppercase symbol",
			symbol:      "ETHUSDT",
			expected:    "ethusdt",
			description: "Should lowercase the symbol",
		},
		{
			name:        "Surrounding whitespace",
			symbol:      "  SolUsdt \t",
			expected:    "solusdt",
			description: "Should trim and lowercase",
		},
		{
			name:        "Empty symbol",
			symbol:      "",
			expectError: true,
			description: "Should reject empty symbol",
		},
		{
			name:        "Whitespace only",
			symbol:      "   ",
			expectError: true,
			description: "Should reject blank symbol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.symbol)
			if tt.expectError {
				assert.Error(t, err, tt.description)
				assert.True(t, errors.Is(err, ErrInvalidSymbol), "Should return ErrInvalidSymbol")
				assert.True(t, errors.Is(err, ErrInvalidArgument), "Should classify as invalid argument")
				return
			}
			assert.NoError(t, err, tt.description)
			assert.Equal(t, tt.expected, got, tt.description)
		})
	}
}

// Test_SplitSymbols tests CSV symbol list parsing
func Test_SplitSymbols(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Two symbols", input: "BTCUSDT,ethusdt", expected: []string{"btcusdt", "ethusdt"}},
		{name: "Blank entries dropped", input: " btcusdt , ,ethusdt,", expected: []string{"btcusdt", "ethusdt"}},
		{name: "Empty input", input: "", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitSymbols(tt.input))
		})
	}
}

// Test_ValidatePair tests aligned-pair validation
func Test_ValidatePair(t *testing.T) {
	t.Run("Valid pair", func(t *testing.T) {
		b, q, err := ValidatePair("BTCUSDT", " ethusdt ")
		assert.NoError(t, err)
		assert.Equal(t, "btcusdt", b)
		assert.Equal(t, "ethusdt", q)
	})

	t.Run("Missing base", func(t *testing.T) {
		_, _, err := ValidatePair("", "ethusdt")
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), "base")
	})

	t.Run("Missing quote", func(t *testing.T) {
		_, _, err := ValidatePair("btcusdt", " ")
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), "quote")
	})
	t.Run("Same symbol twice", func(t *testing.T) {
		b, q, err := ValidatePair("btcusdt", "BTCUSDT")
		require.NoError(t, err, "A symbol paired with itself is still two symbols")
		assert.Equal(t, b, q)
	})

	t.Run("Pair error text", func(t *testing.T) {
		assert.ErrorIs(t, ErrInvalidPair, ErrInvalidArgument)
		assert.NotContains(t, ErrInvalidPair.Error(), "distinct")
	})
}

// Benchmark_NormalizeSymbol benchmarks the NormalizeSymbol function
func Benchmark_NormalizeSymbol(b *testing.B) {
	symbols := []string{"BTCUSDT", " ethusdt ", "SolUsdt", ""}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = NormalizeSymbol(symbols[i%len(symbols)])
	}
}
