package usecase_test

import (
	"testing"
	"time"

	"github.com/noda-sin/chasebot/models"
)

func TestOrderPollerIdlesWithoutChase(t *testing.T) {
	_, stub, _ := newTestEngine(t, true, nil)

	time.Sleep(1200 * time.Millisecond)
	if stub.OrderListCalls() != 0 {
		t.Fatal("failed test")
	}
}

func TestOrderPollerRedistributesDuringChase(t *testing.T) {
	engine, stub, _ := newTestEngine(t, true, nil)
	product := engine.GetProductByID("BTC-USDT")

	if _, err := stub.PlaceLimitOrder("BTC-USDT", models.SideBuy, d("0.001"), d("49999.99"), true); err != nil {
		t.Fatal(err)
	}

	if !product.TryBeginChase() {
		t.Fatal("failed test")
	}
	time.Sleep(1300 * time.Millisecond)

	calls := stub.OrderListCalls()
	if calls < 1 || calls > 2 {
		t.Fatal("failed test")
	}
	if product.OpenOrderCount() != 1 {
		t.Fatal("failed test")
	}

	product.EndChase()
	time.Sleep(1200 * time.Millisecond)
	if stub.OrderListCalls() != calls {
		t.Fatal("failed test")
	}
}
