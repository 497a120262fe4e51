package models

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/shopspring/decimal"
)

// Product is the per-pair trading state. Signal flags and the chase slot
// are guarded by a single mutex; the invariant is that at most one chase
// worker holds the slot at any time, and that buy and sell flags are never
// set together.
type Product struct {
	ID             string
	BaseAsset      Asset
	QuoteAsset     Asset
	MinSize        decimal.Decimal
	QuoteIncrement decimal.Decimal
	Book           Book

	mu               sync.Mutex
	buyFlag          bool
	sellFlag         bool
	orderInProgress  bool
	lastSignalSwitch time.Time

	openOrders cmap.ConcurrentMap // order id -> *Order
}

func NewProduct(info *ProductInfo, book Book) *Product {
	return &Product{
		ID:             info.ID,
		BaseAsset:      info.BaseAsset,
		QuoteAsset:     info.QuoteAsset,
		MinSize:        info.MinSize,
		QuoteIncrement: info.QuoteIncrement,
		Book:           book,
		openOrders:     cmap.New(),
	}
}

func (p *Product) BuyFlag() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buyFlag
}

func (p *Product) SellFlag() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sellFlag
}

func (p *Product) InProgress() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orderInProgress
}

func (p *Product) LastSignalSwitch() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSignalSwitch
}

// SetBuy raises the buy flag, recording the switch time when the product
// was previously in a sell state.
func (p *Product) SetBuy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sellFlag {
		p.lastSignalSwitch = time.Now()
	}
	p.sellFlag = false
	p.buyFlag = true
}

// SetSell raises the sell flag, recording the switch time when the product
// was previously in a buy state.
func (p *Product) SetSell() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buyFlag {
		p.lastSignalSwitch = time.Now()
	}
	p.buyFlag = false
	p.sellFlag = true
}

// ClearFlags drops both signal flags. Any running chase observes the
// cleared flag on its next iteration and winds down.
func (p *Product) ClearFlags() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buyFlag = false
	p.sellFlag = false
}

// TryBeginChase acquires the chase slot. It returns false when another
// chase already owns the product.
func (p *Product) TryBeginChase() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orderInProgress {
		return false
	}
	p.orderInProgress = true
	return true
}

func (p *Product) EndChase() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderInProgress = false
}

func (p *Product) AddOpenOrder(order *Order) {
	if order == nil || order.ID == "" {
		return
	}
	p.openOrders.Set(order.ID, order)
}

func (p *Product) RemoveOpenOrder(id string) {
	p.openOrders.Remove(id)
}

// ReplaceOpenOrders swaps the whole open set for the orders the exchange
// currently reports for this product.
func (p *Product) ReplaceOpenOrders(orders []*Order) {
	for _, id := range p.openOrders.Keys() {
		p.openOrders.Remove(id)
	}
	for _, order := range orders {
		p.AddOpenOrder(order)
	}
}

func (p *Product) OpenOrders() []*Order {
	orders := []*Order{}
	for _, v := range p.openOrders.Items() {
		orders = append(orders, v.(*Order))
	}
	return orders
}

func (p *Product) OpenOrderCount() int {
	return p.openOrders.Count()
}
