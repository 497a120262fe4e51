package usecase_test

import (
	"testing"
	"time"

	"github.com/noda-sin/chasebot/models"
	"github.com/shopspring/decimal"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestBuyChaseRestsOneTickUnderAsk(t *testing.T) {
	engine, stub, _ := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})
	product := engine.GetProductByID("BTC-USDT")
	product.SetBuy()

	done := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return stub.OpenOrderCount("BTC-USDT") == 1
	})
	orders, err := stub.GetOrders()
	if err != nil {
		t.Fatal(err)
	}
	order := orders[0]
	if order.Side != models.SideBuy || !order.PostOnly {
		t.Fatal("failed test")
	}
	if !order.Price.Equal(d("49999.99")) {
		t.Fatal("failed test")
	}
	// half of the 100 USDT at one tick under the ask
	if !order.Size.Equal(d("0.001")) {
		t.Fatal("failed test")
	}

	product.ClearFlags()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}
	if stub.OpenOrderCount("BTC-USDT") != 0 {
		t.Fatal("failed test")
	}
	if product.InProgress() {
		t.Fatal("failed test")
	}
}

func TestBuyChaseFallsBackToFullFunds(t *testing.T) {
	// half of 60 USDT is below the product minimum, the full amount is not
	engine, stub, _ := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"USDT": d("60"),
	})
	product := engine.GetProductByID("BTC-USDT")
	product.SetBuy()

	done := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return stub.OpenOrderCount("BTC-USDT") == 1
	})
	orders, err := stub.GetOrders()
	if err != nil {
		t.Fatal(err)
	}
	if !orders[0].Size.Equal(d("0.0012")) {
		t.Fatal("failed test")
	}

	product.ClearFlags()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}
}

func TestBuyChaseRepricesWhenMarketMoves(t *testing.T) {
	engine, stub, books := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})
	product := engine.GetProductByID("BTC-USDT")
	product.SetBuy()

	done := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return stub.OpenOrderCount("BTC-USDT") == 1
	})

	// the ask rises within the slippage budget: the resting order is
	// superseded by a single full-size order at the new tracked price
	books["BTC-USDT"].Update(d("50002"), d("50003"), d("50003"))
	waitFor(t, 2*time.Second, func() bool {
		orders, err := stub.GetOrders()
		if err != nil || len(orders) != 1 {
			return false
		}
		return orders[0].Price.Equal(d("50002.99"))
	})
	orders, err := stub.GetOrders()
	if err != nil {
		t.Fatal(err)
	}
	if !orders[0].Size.Equal(d("0.00199988")) {
		t.Fatal("failed test")
	}

	product.ClearFlags()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}
	if stub.OpenOrderCount("BTC-USDT") != 0 {
		t.Fatal("failed test")
	}
}

func TestBuyChaseEscalatesOnSlippage(t *testing.T) {
	engine, stub, books := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})
	stub.SetMark("BTC-USDT", d("50100"))
	product := engine.GetProductByID("BTC-USDT")
	product.SetBuy()

	done := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return stub.OpenOrderCount("BTC-USDT") == 1
	})

	// 0.2% above the chase start, past the 0.10% budget
	books["BTC-USDT"].Update(d("50099"), d("50100"), d("50100"))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}

	if stub.OpenOrderCount("BTC-USDT") != 0 {
		t.Fatal("failed test")
	}
	accounts, err := stub.GetAccounts()
	if err != nil {
		t.Fatal(err)
	}
	var btc decimal.Decimal
	for _, account := range accounts {
		if account.Asset == "BTC" {
			btc = account.Available
		}
	}
	if !btc.IsPositive() {
		t.Fatal("failed test")
	}
	// escalation ends the chase even though the signal still says buy
	if !product.BuyFlag() || product.InProgress() {
		t.Fatal("failed test")
	}
}

func TestSellChaseRestsOneTickOverBid(t *testing.T) {
	engine, stub, _ := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"BTC": d("0.01"),
	})
	product := engine.GetProductByID("BTC-USDT")
	product.SetSell()

	done := make(chan struct{})
	go func() {
		engine.Sell(product)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return stub.OpenOrderCount("BTC-USDT") == 1
	})
	orders, err := stub.GetOrders()
	if err != nil {
		t.Fatal(err)
	}
	order := orders[0]
	if order.Side != models.SideSell || !order.PostOnly {
		t.Fatal("failed test")
	}
	if !order.Price.Equal(d("49999.01")) {
		t.Fatal("failed test")
	}
	if !order.Size.Equal(d("0.005")) {
		t.Fatal("failed test")
	}

	product.ClearFlags()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}
	if stub.OpenOrderCount("BTC-USDT") != 0 {
		t.Fatal("failed test")
	}
}

func TestCloseStopsChase(t *testing.T) {
	engine, stub, _ := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})
	product := engine.GetProductByID("BTC-USDT")
	product.SetBuy()

	done := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(done)
	}()
	waitFor(t, 2*time.Second, func() bool {
		return stub.OpenOrderCount("BTC-USDT") == 1
	})

	engine.Close(false)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}
	if product.BuyFlag() || product.SellFlag() || product.InProgress() {
		t.Fatal("failed test")
	}
	if stub.OpenOrderCount("BTC-USDT") != 0 {
		t.Fatal("failed test")
	}
}

func TestSecondChaseYieldsToFirst(t *testing.T) {
	engine, _, _ := newTestEngine(t, true, map[models.Asset]decimal.Decimal{
		"USDT": d("100"),
	})
	product := engine.GetProductByID("BTC-USDT")
	product.SetBuy()

	done := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(done)
	}()
	waitFor(t, 2*time.Second, func() bool {
		return product.InProgress()
	})

	// the slot is taken, so this returns without touching the chase
	second := make(chan struct{})
	go func() {
		engine.Buy(product)
		close(second)
	}()
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second chase did not yield")
	}
	if !product.InProgress() {
		t.Fatal("failed test")
	}

	product.ClearFlags()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("chase did not stop")
	}
}
