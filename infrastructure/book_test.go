package infrastructure

import (
	"encoding/json"
	"testing"

	"github.com/noda-sin/chasebot/models"
	"github.com/shopspring/decimal"
)

func TestParseExchangeTicker(t *testing.T) {
	book := &LiveBook{productID: "BTC-USDT"}

	raw := []byte(`{"s":"BTCUSDT","c":"50000.1","b":"50000","a":"50000.2"}`)
	update := book.parse(raw)
	if update == nil {
		t.Fatal("failed test")
	}
	if update.ProductID != "BTC-USDT" {
		t.Fatal("failed test")
	}
	if !update.Bid.Equal(decimal.RequireFromString("50000")) {
		t.Fatal("failed test")
	}
	if !update.Ask.Equal(decimal.RequireFromString("50000.2")) {
		t.Fatal("failed test")
	}
	if !update.Price.Equal(decimal.RequireFromString("50000.1")) {
		t.Fatal("failed test")
	}

	if book.parse([]byte("not json")) != nil {
		t.Fatal("failed test")
	}
	if book.parse([]byte(`{"s":"BTCUSDT","c":"oops","b":"1","a":"2"}`)) != nil {
		t.Fatal("failed test")
	}
}

func TestParseRelayedUpdateFiltersProducts(t *testing.T) {
	book := &LiveBook{productID: "BTC-USDT", relayed: true}

	other, _ := json.Marshal(&models.BookUpdate{
		ProductID: "ETH-USDT",
		Bid:       decimal.RequireFromString("3000"),
		Ask:       decimal.RequireFromString("3000.1"),
	})
	if book.parse(other) != nil {
		t.Fatal("failed test")
	}

	mine, _ := json.Marshal(&models.BookUpdate{
		ProductID: "BTC-USDT",
		Bid:       decimal.RequireFromString("50000"),
		Ask:       decimal.RequireFromString("50000.2"),
		Price:     decimal.RequireFromString("50000.1"),
	})
	update := book.parse(mine)
	if update == nil {
		t.Fatal("failed test")
	}
	if !update.Bid.Equal(decimal.RequireFromString("50000")) {
		t.Fatal("failed test")
	}
}

func TestApplyUpdatesSnapshotAndSubscribers(t *testing.T) {
	book := &LiveBook{productID: "BTC-USDT"}
	ch := book.Subscribe()

	update := &models.BookUpdate{
		ProductID: "BTC-USDT",
		Bid:       decimal.RequireFromString("50000"),
		Ask:       decimal.RequireFromString("50000.2"),
		Price:     decimal.RequireFromString("50000.1"),
	}
	book.apply(update)

	if !book.Bid().Equal(update.Bid) || !book.Ask().Equal(update.Ask) {
		t.Fatal("failed test")
	}
	ticker := book.Ticker()
	if ticker == nil || !ticker.Price.Equal(update.Price) {
		t.Fatal("failed test")
	}

	select {
	case got := <-ch:
		if got.ProductID != "BTC-USDT" {
			t.Fatal("failed test")
		}
	default:
		t.Fatal("failed test")
	}
}

func TestTickerNilBeforeFirstUpdate(t *testing.T) {
	book := &LiveBook{productID: "BTC-USDT"}
	if book.Ticker() != nil {
		t.Fatal("failed test")
	}
}
