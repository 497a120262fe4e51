package infrastructure

import (
	"sync"
	"time"

	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/usecase"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ExchangeStub is an in-memory exchange for dry-run mode and tests.
// Limit orders rest until Fill is called; market orders fill immediately
// at the product's mark price.
type ExchangeStub struct {
	mu       sync.Mutex
	products []*models.ProductInfo
	byID     map[string]*models.ProductInfo
	balances map[models.Asset]decimal.Decimal
	orders   map[string]*models.Order
	marks    map[string]decimal.Decimal

	// FailAccounts and FailOrders make the matching calls return a
	// transient error. Set them before concurrent use.
	FailAccounts bool
	FailOrders   bool

	accountCalls   int
	orderListCalls int
}

func NewExchangeStub(products []*models.ProductInfo, initial map[models.Asset]decimal.Decimal) *ExchangeStub {
	ex := &ExchangeStub{
		products: products,
		byID:     map[string]*models.ProductInfo{},
		balances: map[models.Asset]decimal.Decimal{},
		orders:   map[string]*models.Order{},
		marks:    map[string]decimal.Decimal{},
	}
	for _, p := range products {
		ex.byID[p.ID] = p
		ex.balances[p.BaseAsset] = decimal.Zero
		ex.balances[p.QuoteAsset] = decimal.Zero
	}
	for asset, amount := range initial {
		ex.balances[asset] = amount
	}
	return ex
}

func (ex *ExchangeStub) GetProducts() ([]*models.ProductInfo, error) {
	return ex.products, nil
}

func (ex *ExchangeStub) PlaceLimitOrder(productID string, side models.OrderSide, size decimal.Decimal, price decimal.Decimal, postOnly bool) (*models.Order, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if _, ok := ex.byID[productID]; !ok {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "place limit order",
			errors.Errorf("unknown product: %s", productID))
	}
	order := &models.Order{
		ID:            xid.New().String(),
		ClientOrderID: xid.New().String(),
		ProductID:     productID,
		Side:          side,
		OrderType:     models.TypeLimit,
		Status:        models.StatusOpen,
		Price:         price,
		Size:          size,
		PostOnly:      postOnly,
		Time:          time.Now(),
	}
	ex.orders[order.ID] = order
	copied := *order
	return &copied, nil
}

func (ex *ExchangeStub) PlaceMarketOrder(productID string, side models.OrderSide, size decimal.Decimal, funds decimal.Decimal) (*models.Order, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	info, ok := ex.byID[productID]
	if !ok {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "place market order",
			errors.Errorf("unknown product: %s", productID))
	}
	mark, ok := ex.marks[productID]
	if !ok || !mark.IsPositive() {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "place market order",
			errors.Errorf("no mark price for %s", productID))
	}

	if side == models.SideBuy {
		if size.IsZero() {
			size = funds.Div(mark).Truncate(8)
		} else {
			funds = size.Mul(mark)
		}
		ex.balances[info.QuoteAsset] = ex.balances[info.QuoteAsset].Sub(funds)
		ex.balances[info.BaseAsset] = ex.balances[info.BaseAsset].Add(size)
	} else {
		ex.balances[info.BaseAsset] = ex.balances[info.BaseAsset].Sub(size)
		ex.balances[info.QuoteAsset] = ex.balances[info.QuoteAsset].Add(size.Mul(mark))
	}

	order := &models.Order{
		ID:            xid.New().String(),
		ClientOrderID: xid.New().String(),
		ProductID:     productID,
		Side:          side,
		OrderType:     models.TypeMarket,
		Status:        models.StatusDone,
		Price:         mark,
		Size:          size,
		FilledSize:    size,
		Time:          time.Now(),
	}
	ex.orders[order.ID] = order
	log.WithFields(log.Fields{
		"product": productID,
		"side":    side,
		"size":    size,
	}).Debug("stub market order filled")
	copied := *order
	return &copied, nil
}

func (ex *ExchangeStub) CancelOrder(id string) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	order, ok := ex.orders[id]
	if !ok || order.Status.Terminal() {
		return usecase.NewExchangeError(usecase.ErrNotFound, "cancel order",
			errors.Errorf("order not found: %s", id))
	}
	delete(ex.orders, id)
	return nil
}

func (ex *ExchangeStub) CancelAll(productID string) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	for id, order := range ex.orders {
		if order.Status.Terminal() {
			continue
		}
		if productID != "" && order.ProductID != productID {
			continue
		}
		delete(ex.orders, id)
	}
	return nil
}

func (ex *ExchangeStub) GetOrder(id string) (*models.Order, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	order, ok := ex.orders[id]
	if !ok {
		return nil, usecase.NewExchangeError(usecase.ErrNotFound, "get order",
			errors.Errorf("order not found: %s", id))
	}
	copied := *order
	return &copied, nil
}

func (ex *ExchangeStub) GetOrders() ([]*models.Order, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.orderListCalls++
	if ex.FailOrders {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "get orders",
			errors.New("stub failure"))
	}
	orders := []*models.Order{}
	for _, order := range ex.orders {
		if order.Status.Terminal() {
			continue
		}
		copied := *order
		orders = append(orders, &copied)
	}
	return orders, nil
}

func (ex *ExchangeStub) GetAccounts() ([]*models.Balance, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.accountCalls++
	if ex.FailAccounts {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "get accounts",
			errors.New("stub failure"))
	}
	balances := []*models.Balance{}
	for asset, amount := range ex.balances {
		balances = append(balances, &models.Balance{Asset: asset, Available: amount})
	}
	return balances, nil
}

// SetMark sets the price market orders fill at for a product.
func (ex *ExchangeStub) SetMark(productID string, price decimal.Decimal) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.marks[productID] = price
}

// SetBalance overrides one asset's available amount.
func (ex *ExchangeStub) SetBalance(asset models.Asset, amount decimal.Decimal) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.balances[asset] = amount
}

// Fill fully executes a resting limit order at its limit price and moves
// the balances accordingly.
func (ex *ExchangeStub) Fill(id string) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	order, ok := ex.orders[id]
	if !ok || order.Status.Terminal() {
		return errors.Errorf("order not open: %s", id)
	}
	info := ex.byID[order.ProductID]
	if order.Side == models.SideBuy {
		ex.balances[info.QuoteAsset] = ex.balances[info.QuoteAsset].Sub(order.Size.Mul(order.Price))
		ex.balances[info.BaseAsset] = ex.balances[info.BaseAsset].Add(order.Size)
	} else {
		ex.balances[info.BaseAsset] = ex.balances[info.BaseAsset].Sub(order.Size)
		ex.balances[info.QuoteAsset] = ex.balances[info.QuoteAsset].Add(order.Size.Mul(order.Price))
	}
	order.Status = models.StatusDone
	order.FilledSize = order.Size
	return nil
}

// OpenOrderCount reports resting orders, scoped to a product when
// productID is non-empty.
func (ex *ExchangeStub) OpenOrderCount(productID string) int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	n := 0
	for _, order := range ex.orders {
		if order.Status.Terminal() {
			continue
		}
		if productID != "" && order.ProductID != productID {
			continue
		}
		n++
	}
	return n
}

func (ex *ExchangeStub) AccountCalls() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.accountCalls
}

func (ex *ExchangeStub) OrderListCalls() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.orderListCalls
}
