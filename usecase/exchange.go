package usecase

import (
	"fmt"

	"github.com/noda-sin/chasebot/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Exchange is the authenticated order API the engine trades against.
// Implementations wrap every failure in an *ExchangeError so the engine
// can apply one policy per error kind instead of per call site.
type Exchange interface {
	GetProducts() ([]*models.ProductInfo, error)
	PlaceLimitOrder(productID string, side models.OrderSide, size decimal.Decimal, price decimal.Decimal, postOnly bool) (*models.Order, error)
	// PlaceMarketOrder submits a market order sized either by base size or,
	// for buys, by quote funds. Exactly one of size and funds is non-zero.
	PlaceMarketOrder(productID string, side models.OrderSide, size decimal.Decimal, funds decimal.Decimal) (*models.Order, error)
	CancelOrder(id string) error
	// CancelAll cancels every open order, scoped to one product when
	// productID is non-empty.
	CancelAll(productID string) error
	GetOrder(id string) (*models.Order, error)
	GetOrders() ([]*models.Order, error)
	GetAccounts() ([]*models.Balance, error)
}

type ErrKind int

const (
	// ErrTransient covers network and API failures. The engine logs and
	// carries on; the polling cadence is the retry mechanism.
	ErrTransient ErrKind = iota
	// ErrNotFound means the referenced order no longer exists on the
	// exchange. The chase treats this as a normal re-price trigger.
	ErrNotFound
	// ErrParse means the exchange answered with a value the adapter could
	// not decode. The chase logs it and keeps its last known state.
	ErrParse
)

type ExchangeError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange: %s: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

func NewExchangeError(kind ErrKind, op string, err error) *ExchangeError {
	return &ExchangeError{Kind: kind, Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee) && ee.Kind == ErrNotFound
}

func IsParse(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee) && ee.Kind == ErrParse
}
