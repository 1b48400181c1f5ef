// Package utils provides common utility functions for data validation.
//
// This package contains the symbol normalization shared by the feed manager,
// the tick store and the HTTP layer, and the sentinel errors used to classify
// caller mistakes across packages.
package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Error definitions for validation functions
var (
	// ErrInvalidArgument marks any request that was rejected before doing work.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidSymbol indicates an empty or blank trading symbol.
	ErrInvalidSymbol = fmt.Errorf("%w: symbol cannot be empty", ErrInvalidArgument)

	// ErrInvalidPair indicates an aligned-pair request that does not name two symbols.
	// The two may be the same symbol.
	ErrInvalidPair = fmt.Errorf("%w: exactly two symbols required", ErrInvalidArgument)
)

// NormalizeSymbol trims surrounding whitespace and lowercases the symbol.
//
// Returns ErrInvalidSymbol when nothing is left after trimming.
func NormalizeSymbol(symbol string) (string, error) {
	sym := strings.ToLower(strings.TrimSpace(symbol))
	if sym == "" {
		return "", ErrInvalidSymbol
	}
	return sym, nil
}

// NormalizeFilter normalizes an optional symbol filter. An empty filter is
// valid and means "all symbols".
func NormalizeFilter(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// SplitSymbols parses a comma-separated symbol list, dropping blank entries.
func SplitSymbols(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := NormalizeFilter(p); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// ValidatePair checks that base and quote name two non-empty symbols and
// returns them normalized. base and quote may be equal.
func ValidatePair(base, quote string) (string, string, error) {
	b, err := NormalizeSymbol(base)
	if err != nil {
		return "", "", fmt.Errorf("base: %w", err)
	}
	q, err := NormalizeSymbol(quote)
	if err != nil {
		return "", "", fmt.Errorf("quote: %w", err)
	}
	return b, q, nil
}
