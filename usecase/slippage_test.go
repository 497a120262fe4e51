package usecase

import (
	"testing"

	"github.com/noda-sin/chasebot/models"
	"github.com/shopspring/decimal"
)

func TestSlippageExceeded(t *testing.T) {
	max := decimal.RequireFromString("0.10")
	starting := decimal.RequireFromString("50")

	cases := []struct {
		current string
		side    models.OrderSide
		want    bool
	}{
		// exactly at the budget is still acceptable
		{"50.05", models.SideBuy, false},
		{"50.06", models.SideBuy, true},
		{"49.95", models.SideBuy, false},
		{"49.95", models.SideSell, false},
		{"49.94", models.SideSell, true},
		{"50.05", models.SideSell, false},
	}
	for _, c := range cases {
		got := slippageExceeded(decimal.RequireFromString(c.current), starting, c.side, max)
		if got != c.want {
			t.Fatalf("slippageExceeded(%s, %s) = %v", c.current, c.side, got)
		}
	}

	if slippageExceeded(decimal.RequireFromString("50"), decimal.Zero, models.SideBuy, max) {
		t.Fatal("failed test")
	}
}
