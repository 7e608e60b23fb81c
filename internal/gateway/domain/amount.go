package domain

import (
	"math"
	"strings"
)

// MinorUnits converts a decimal amount to the smallest currency unit.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MajorUnits converts minor units back to a decimal amount.
func MajorUnits(amount int64) float64 {
	return float64(amount) / 100
}

// IntervalFromPlan maps the catalog interval flag onto a recurring interval.
func IntervalFromPlan(interval int) string {
	if interval == 0 {
		return IntervalMonth
	}
	return IntervalYear
}

func NormalizeCurrency(currency, fallback string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = strings.ToLower(strings.TrimSpace(fallback))
	}
	if currency == "" {
		currency = "usd"
	}
	return currency
}
