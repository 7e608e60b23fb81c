package domain

import "testing"

func TestMinorUnits(t *testing.T) {
	cases := map[float64]int64{
		49.99: 4999,
		0.1:   10,
		100:   10000,
	}
	for in, want := range cases {
		if got := MinorUnits(in); got != want {
			t.Fatalf("MinorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestIntervalFromPlan(t *testing.T) {
	if got := IntervalFromPlan(0); got != IntervalMonth {
		t.Fatalf("expected month, got %s", got)
	}
	if got := IntervalFromPlan(1); got != IntervalYear {
		t.Fatalf("expected year, got %s", got)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := NormalizeCurrency(" USD ", "eur"); got != "usd" {
		t.Fatalf("expected usd, got %s", got)
	}
	if got := NormalizeCurrency("", "EUR"); got != "eur" {
		t.Fatalf("expected eur fallback, got %s", got)
	}
	if got := NormalizeCurrency("", ""); got != "usd" {
		t.Fatalf("expected usd default, got %s", got)
	}
}
