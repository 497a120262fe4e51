package usecase

import (
	"sync"
	"time"

	"github.com/noda-sin/chasebot/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Config is the engine's immutable runtime configuration.
type Config struct {
	ProductIDs  []string
	Fiat        models.Asset
	Live        bool
	MaxSlippage decimal.Decimal // percent, e.g. 0.10
}

// TradeEngine owns the product list, the balance cache and the order
// poller, and runs one chase worker per active buy or sell decision.
type TradeEngine struct {
	Exchange Exchange

	cfg      Config
	books    map[string]models.Book
	products []*models.Product

	balmu             sync.Mutex
	balances          map[models.Asset]decimal.Decimal
	fiatEquivalent    decimal.Decimal
	lastBalanceUpdate time.Time

	lastOrderPoll time.Time

	stopch   chan struct{}
	stopOnce sync.Once
}

func NewTradeEngine(ex Exchange, books map[string]models.Book, cfg Config) *TradeEngine {
	return &TradeEngine{
		Exchange: ex,
		cfg:      cfg,
		books:    books,
		balances: map[models.Asset]decimal.Decimal{},
		stopch:   make(chan struct{}),
	}
}

// Start builds the product states from the configured list, performs the
// initial balance refresh and launches the order poller.
func (engine *TradeEngine) Start() error {
	infos, err := engine.Exchange.GetProducts()
	if err != nil {
		return errors.Wrap(err, "failed to load products")
	}
	byID := map[string]*models.ProductInfo{}
	for _, info := range infos {
		byID[info.ID] = info
	}

	for _, id := range engine.cfg.ProductIDs {
		info, ok := byID[id]
		if !ok {
			return errors.Errorf("unknown product: %s", id)
		}
		book, ok := engine.books[id]
		if !ok {
			return errors.Errorf("no order book for product: %s", id)
		}
		product := models.NewProduct(info, book)
		engine.products = append(engine.products, product)
		engine.balances[product.BaseAsset] = decimal.Zero
	}
	engine.balances[engine.cfg.Fiat] = decimal.Zero

	engine.UpdateAmounts()

	go engine.pollOrders()

	log.WithField("products", engine.cfg.ProductIDs).Info("trade engine started")
	return nil
}

// Close signals every chase to wind down and cancels all resting orders.
// With exit set it also stops the order poller. Safe to call repeatedly
// and while chases are mid-loop; they observe the cleared flags on their
// next iteration.
func (engine *TradeEngine) Close(exit bool) {
	for _, product := range engine.products {
		product.ClearFlags()
	}
	if err := engine.Exchange.CancelAll(""); err != nil {
		log.WithError(err).Error("failed to cancel all orders")
	}
	if exit {
		engine.stopOnce.Do(func() {
			close(engine.stopch)
		})
	}
}

func (engine *TradeEngine) GetProductByID(id string) *models.Product {
	for _, product := range engine.products {
		if product.ID == id {
			return product
		}
	}
	return nil
}

func (engine *TradeEngine) Products() []*models.Product {
	return engine.products
}
