package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseIndicatorSet(t *testing.T) {
	raw := map[string]map[string]string{
		"15m": {
			"adx":         "27.5",
			"obv":         "1200",
			"obv_ema":     "1100",
			"stoch_slowk": "42.1",
			"stoch_slowd": "38.9",
		},
	}
	set, err := ParseIndicatorSet(raw)
	if err != nil {
		t.Fatal(err)
	}
	ind, ok := set["15m"]
	if !ok {
		t.Fatal("failed test")
	}
	if !ind.ADX.Equal(decimal.RequireFromString("27.5")) {
		t.Fatal("failed test")
	}
	if !ind.OBV.Equal(decimal.RequireFromString("1200")) {
		t.Fatal("failed test")
	}
	if !ind.StochSlowD.Equal(decimal.RequireFromString("38.9")) {
		t.Fatal("failed test")
	}
}

func TestParseIndicatorSetMissingKey(t *testing.T) {
	raw := map[string]map[string]string{
		"15m": {
			"adx": "27.5",
		},
	}
	if _, err := ParseIndicatorSet(raw); err == nil {
		t.Fatal("failed test")
	}
}

func TestParseIndicatorSetBadNumber(t *testing.T) {
	raw := map[string]map[string]string{
		"15m": {
			"adx":         "not-a-number",
			"obv":         "1200",
			"obv_ema":     "1100",
			"stoch_slowk": "42.1",
			"stoch_slowd": "38.9",
		},
	}
	if _, err := ParseIndicatorSet(raw); err == nil {
		t.Fatal("failed test")
	}
}
