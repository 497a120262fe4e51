package util

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

const (
	fiatPlaces = 2
	coinPlaces = 8
)

func Index(vs []string, t string) int {
	for i, v := range vs {
		if v == t {
			return i
		}
	}
	return -1
}

func Include(vs []string, t string) bool {
	return Index(vs, t) >= 0
}

type Set struct {
	buff map[string]struct{}
}

func NewSet() *Set {
	return &Set{buff: map[string]struct{}{}}
}

func (s *Set) Append(i string) {
	s.buff[i] = struct{}{}
}

func (s *Set) Include(i string) bool {
	_, ok := s.buff[i]
	return ok
}

func (s *Set) ToSlice() []string {
	keys := make([]string, 0, len(s.buff))
	for k := range s.buff {
		keys = append(keys, k)
	}
	return keys
}

type Operation func() error

func BackoffRetry(retry int, op Operation) error {
	b := &backoff.Backoff{
		Max: 5 * time.Minute,
	}
	var err error
	for i := 0; i < retry; i++ {
		err = op()
		if err == nil {
			return nil
		}
		d := b.Duration()
		time.Sleep(d)
	}
	return err
}

// RoundFiat truncates a fiat amount to 2 decimal places, toward zero.
func RoundFiat(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(fiatPlaces)
}

// RoundCoin truncates a crypto amount to 8 decimal places, toward zero.
func RoundCoin(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(coinPlaces)
}

// FloorStep rounds a quantity down to a multiple of step.
func FloorStep(d decimal.Decimal, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return d
	}
	return d.Div(step).Floor().Mul(step)
}
