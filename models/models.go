package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Asset string

type OrderSide string

type OrderType string

type OrderStatus string

const (
	SideBuy  = OrderSide("buy")
	SideSell = OrderSide("sell")

	TypeLimit  = OrderType("limit")
	TypeMarket = OrderType("market")

	StatusPending  = OrderStatus("pending")
	StatusOpen     = OrderStatus("open")
	StatusDone     = OrderStatus("done")
	StatusRejected = OrderStatus("rejected")
	StatusNotFound = OrderStatus("not-found")
)

// Terminal reports whether an order in this status can no longer fill.
func (s OrderStatus) Terminal() bool {
	return s == StatusDone || s == StatusRejected || s == StatusNotFound
}

type Balance struct {
	Asset     Asset
	Available decimal.Decimal
}

// Ticker is the last known trade price for a product.
type Ticker struct {
	Price decimal.Decimal
	Time  time.Time
}

// BookUpdate is one best-bid/ask snapshot as relayed over the book feed.
type BookUpdate struct {
	ProductID string          `json:"product_id"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Price     decimal.Decimal `json:"price"`
	Time      time.Time       `json:"time"`
}

// Book is the live order-book accessor for a single product.
type Book interface {
	Bid() decimal.Decimal
	Ask() decimal.Decimal
	Ticker() *Ticker
}

// ProductInfo is the exchange's static metadata for a tradable pair.
type ProductInfo struct {
	ID             string
	BaseAsset      Asset
	QuoteAsset     Asset
	MinSize        decimal.Decimal
	QuoteIncrement decimal.Decimal
}
