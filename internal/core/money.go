// Package core holds the domain model of the approval engine.
//
// This file contains parsing helpers for monetary amounts crossing the API
// boundary. Amounts are positive decimal magnitudes; the sign is carried by
// Direction.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to an amount magnitude.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs
// are rejected: direction is expressed separately, never as a negative
// amount. Zero and malformed input are rejected too.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseCurrencyCode normalizes and validates an ISO-4217-style code.
func ParseCurrencyCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 3 {
		return "", &ValidationError{Field: "currencyCode", Reason: "must be a 3-letter code"}
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", &ValidationError{Field: "currencyCode", Reason: "must be a 3-letter code"}
		}
	}
	return code, nil
}
