package usecase_test

import (
	"testing"
	"time"

	"github.com/noda-sin/chasebot/models"
	"github.com/shopspring/decimal"
)

func TestUpdateAmountsSingleFlight(t *testing.T) {
	engine, stub, _ := newTestEngine(t, false, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})
	// the initial refresh ran during startup
	if stub.AccountCalls() != 1 {
		t.Fatal("failed test")
	}

	for i := 0; i < 50; i++ {
		engine.UpdateAmounts()
	}
	if stub.AccountCalls() != 1 {
		t.Fatal("failed test")
	}

	time.Sleep(1100 * time.Millisecond)
	engine.UpdateAmounts()
	if stub.AccountCalls() != 2 {
		t.Fatal("failed test")
	}
}

func TestUpdateAmountsFailureZeroesBalances(t *testing.T) {
	engine, stub, _ := newTestEngine(t, false, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
		"BTC":  d("1"),
	})
	if !engine.Balance("USDT").Equal(d("100")) {
		t.Fatal("failed test")
	}
	if !engine.FiatEquivalent().IsPositive() {
		t.Fatal("failed test")
	}

	stub.FailAccounts = true
	time.Sleep(1100 * time.Millisecond)
	engine.UpdateAmounts()

	if !engine.Balance("USDT").IsZero() || !engine.Balance("BTC").IsZero() {
		t.Fatal("failed test")
	}
	if !engine.FiatEquivalent().IsZero() {
		t.Fatal("failed test")
	}
}

func TestBalancesTruncateTowardZero(t *testing.T) {
	engine, _, _ := newTestEngine(t, false, map[models.Asset]decimal.Decimal{
		"USDT": d("10.129"),
		"BTC":  d("0.123456789"),
	})

	if !engine.Balance("USDT").Equal(d("10.12")) {
		t.Fatal("failed test")
	}
	if !engine.Balance("BTC").Equal(d("0.12345678")) {
		t.Fatal("failed test")
	}
	// 10.12 + 0.12345678 * 50000, marked at the book's last trade
	if !engine.FiatEquivalent().Equal(d("6182.959")) {
		t.Fatal("failed test")
	}
}

func TestUntrackedAssetsIgnored(t *testing.T) {
	engine, stub, _ := newTestEngine(t, false, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})

	stub.SetBalance("XRP", d("5000"))
	time.Sleep(1100 * time.Millisecond)
	engine.UpdateAmounts()

	if !engine.Balance("XRP").IsZero() {
		t.Fatal("failed test")
	}
	if !engine.Balance("USDT").Equal(d("100")) {
		t.Fatal("failed test")
	}
}
