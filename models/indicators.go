package models

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Indicators is one period's externally computed indicator snapshot.
type Indicators struct {
	ADX        decimal.Decimal
	OBV        decimal.Decimal
	OBVEMA     decimal.Decimal
	StochSlowK decimal.Decimal
	StochSlowD decimal.Decimal
}

// IndicatorSet maps a period name to that period's indicators.
type IndicatorSet map[string]Indicators

// ParseIndicatorSet converts the wire form of an indicator payload, one
// map of numeric strings per period, into an IndicatorSet.
func ParseIndicatorSet(raw map[string]map[string]string) (IndicatorSet, error) {
	set := IndicatorSet{}
	for period, values := range raw {
		ind := Indicators{}
		fields := []struct {
			key string
			dst *decimal.Decimal
		}{
			{"adx", &ind.ADX},
			{"obv", &ind.OBV},
			{"obv_ema", &ind.OBVEMA},
			{"stoch_slowk", &ind.StochSlowK},
			{"stoch_slowd", &ind.StochSlowD},
		}
		for _, f := range fields {
			s, ok := values[f.key]
			if !ok {
				return nil, errors.Errorf("period %s: missing indicator %s", period, f.key)
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, errors.Wrapf(err, "period %s: indicator %s", period, f.key)
			}
			*f.dst = d
		}
		set[period] = ind
	}
	return set, nil
}
