package usecase

import (
	"time"

	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const chaseTick = 10 * time.Millisecond

var (
	partialHalf = decimal.RequireFromString("0.5")
	partialFull = decimal.RequireFromString("1.0")
	one         = decimal.NewFromInt(1)
	hundred     = decimal.NewFromInt(100)
)

// Buy chases the best ask with a resting post-only order until the
// product's buy flag clears or the quote amount is exhausted. A single
// chase owns the product at a time; a second caller returns immediately.
func (engine *TradeEngine) Buy(product *models.Product) {
	if !product.TryBeginChase() {
		return
	}
	defer product.EndChase()

	escalated := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("product", product.ID).Errorf("buy chase aborted: %v", r)
			}
		}()
		escalated = engine.chaseBuy(product)
	}()
	if escalated {
		return
	}
	if err := engine.Exchange.CancelAll(product.ID); err != nil {
		log.WithError(err).Error("failed to cancel remaining buy orders")
	}
}

// Sell is the sell-side counterpart of Buy, chasing the best bid until
// the sell flag clears or the base amount is exhausted.
func (engine *TradeEngine) Sell(product *models.Product) {
	if !product.TryBeginChase() {
		return
	}
	defer product.EndChase()

	escalated := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("product", product.ID).Errorf("sell chase aborted: %v", r)
			}
		}()
		escalated = engine.chaseSell(product)
	}()
	if escalated {
		return
	}
	if err := engine.Exchange.CancelAll(product.ID); err != nil {
		log.WithError(err).Error("failed to cancel remaining sell orders")
	}
}

// chaseBuy runs the buy loop. It returns true when the chase escalated to
// a market order, in which case all cleanup already happened.
func (engine *TradeEngine) chaseBuy(product *models.Product) bool {
	var lastStatusCheck time.Time
	startingPrice := product.Book.Ask().Sub(product.QuoteIncrement)

	ret := engine.placeBuy(product, partialHalf)
	bid := ret.Price
	amount := engine.QuoteAmount(product)

	for product.BuyFlag() && (amount.GreaterThanOrEqual(product.MinSize) || product.OpenOrderCount() > 0) {
		current := product.Book.Ask().Sub(product.QuoteIncrement)

		if slippageExceeded(current, startingPrice, models.SideBuy, engine.cfg.MaxSlippage) {
			engine.escalate(product, models.SideBuy)
			return true
		}

		if ret.Status.Terminal() {
			ret = engine.placeBuy(product, partialHalf)
			bid = ret.Price
		} else if bid.IsZero() || bid.LessThan(current) {
			// the market moved; the resting order is no longer at the best
			// tracked price
			if product.OpenOrderCount() > 0 {
				ret = engine.placeBuy(product, partialFull)
			} else {
				ret = engine.placeBuy(product, partialHalf)
			}
			engine.cancelOthers(product, ret.ID)
			bid = ret.Price
		}

		if ret.ID != "" && time.Since(lastStatusCheck) >= time.Second {
			ret = engine.refreshOrder(ret)
			lastStatusCheck = time.Now()
		}

		amount = engine.QuoteAmount(product)
		time.Sleep(chaseTick)
	}
	return false
}

func (engine *TradeEngine) chaseSell(product *models.Product) bool {
	var lastStatusCheck time.Time
	startingPrice := product.Book.Bid().Add(product.QuoteIncrement)

	ret := engine.placeSell(product, partialHalf)
	ask := ret.Price
	amount := engine.BaseAmount(product)

	for product.SellFlag() && (amount.GreaterThanOrEqual(product.MinSize) || product.OpenOrderCount() > 0) {
		current := product.Book.Bid().Add(product.QuoteIncrement)

		if slippageExceeded(current, startingPrice, models.SideSell, engine.cfg.MaxSlippage) {
			engine.escalate(product, models.SideSell)
			return true
		}

		if ret.Status.Terminal() {
			ret = engine.placeSell(product, partialHalf)
			ask = ret.Price
		} else if ask.IsZero() || ask.GreaterThan(current) {
			if product.OpenOrderCount() > 0 {
				ret = engine.placeSell(product, partialFull)
			} else {
				ret = engine.placeSell(product, partialHalf)
			}
			engine.cancelOthers(product, ret.ID)
			ask = ret.Price
		}

		if ret.ID != "" && time.Since(lastStatusCheck) >= time.Second {
			ret = engine.refreshOrder(ret)
			lastStatusCheck = time.Now()
		}

		amount = engine.BaseAmount(product)
		time.Sleep(chaseTick)
	}
	return false
}

// placeBuy prices one tick under the best ask and sizes the order at
// partial of the available quote amount, falling back to the full amount
// when the partial size is below the product minimum.
func (engine *TradeEngine) placeBuy(product *models.Product, partial decimal.Decimal) *models.Order {
	amount := engine.QuoteAmount(product).Mul(partial)
	bid := product.Book.Ask().Sub(product.QuoteIncrement)
	if !bid.IsPositive() {
		return &models.Order{Status: models.StatusRejected}
	}
	size := util.RoundCoin(amount.Div(bid))

	if size.LessThan(product.MinSize) {
		amount = engine.QuoteAmount(product)
		bid = product.Book.Ask().Sub(product.QuoteIncrement)
		if !bid.IsPositive() {
			return &models.Order{Status: models.StatusRejected}
		}
		size = util.RoundCoin(amount.Div(bid))
	}

	if size.LessThan(product.MinSize) {
		return &models.Order{Status: models.StatusDone}
	}

	log.WithFields(log.Fields{
		"product": product.ID,
		"price":   bid,
		"size":    size,
	}).Debug("placing buy")
	ret, err := engine.Exchange.PlaceLimitOrder(product.ID, models.SideBuy, size, bid, true)
	if err != nil {
		log.WithError(err).Error("failed to place buy order")
		return &models.Order{Status: models.StatusRejected}
	}
	ordersPlaced.WithLabelValues(product.ID, string(models.SideBuy), string(models.TypeLimit)).Inc()
	if ret.Status == models.StatusPending || ret.Status == models.StatusOpen {
		product.AddOpenOrder(ret)
	}
	return ret
}

// placeSell prices one tick over the best bid and sizes the order at
// partial of the held base amount, falling back to the full amount when
// the partial is below the product minimum.
func (engine *TradeEngine) placeSell(product *models.Product, partial decimal.Decimal) *models.Order {
	amount := util.RoundCoin(engine.BaseAmount(product).Mul(partial))
	if amount.LessThan(product.MinSize) {
		amount = engine.BaseAmount(product)
	}
	ask := product.Book.Bid().Add(product.QuoteIncrement)

	if amount.LessThan(product.MinSize) {
		return &models.Order{Status: models.StatusDone}
	}
	if !ask.IsPositive() {
		return &models.Order{Status: models.StatusRejected}
	}

	log.WithFields(log.Fields{
		"product": product.ID,
		"price":   ask,
		"size":    amount,
	}).Debug("placing sell")
	ret, err := engine.Exchange.PlaceLimitOrder(product.ID, models.SideSell, amount, ask, true)
	if err != nil {
		log.WithError(err).Error("failed to place sell order")
		return &models.Order{Status: models.StatusRejected}
	}
	ordersPlaced.WithLabelValues(product.ID, string(models.SideSell), string(models.TypeLimit)).Inc()
	if ret.Status == models.StatusPending || ret.Status == models.StatusOpen {
		product.AddOpenOrder(ret)
	}
	return ret
}

// escalate is the bounded-loss path: cancel everything resting for the
// product and take the remaining amount at market. No further chasing is
// attempted for this signal.
func (engine *TradeEngine) escalate(product *models.Product, side models.OrderSide) {
	log.WithFields(log.Fields{
		"product": product.ID,
		"side":    side,
	}).Warn("max slippage exceeded, escalating to market order")
	slippageEscalations.WithLabelValues(product.ID, string(side)).Inc()

	if err := engine.Exchange.CancelAll(product.ID); err != nil {
		log.WithError(err).Error("failed to cancel orders before market escalation")
	}

	var err error
	if side == models.SideBuy {
		_, err = engine.Exchange.PlaceMarketOrder(product.ID, side, decimal.Zero, engine.QuoteAmount(product))
	} else {
		_, err = engine.Exchange.PlaceMarketOrder(product.ID, side, engine.BaseAmount(product), decimal.Zero)
	}
	if err != nil {
		log.WithError(err).Error("failed to place market order")
		return
	}
	ordersPlaced.WithLabelValues(product.ID, string(side), string(models.TypeMarket)).Inc()
}

// cancelOthers enforces at most one live order per chase.
func (engine *TradeEngine) cancelOthers(product *models.Product, keepID string) {
	for _, order := range product.OpenOrders() {
		if order.ID == keepID {
			continue
		}
		if err := engine.Exchange.CancelOrder(order.ID); err != nil {
			log.WithError(err).Error("failed to cancel superseded order")
			continue
		}
		product.RemoveOpenOrder(order.ID)
	}
}

// refreshOrder re-queries a live order's status. Parse failures keep the
// last known state; a vanished order surfaces as not-found so the chase
// re-prices on its next pass.
func (engine *TradeEngine) refreshOrder(current *models.Order) *models.Order {
	refreshed, err := engine.Exchange.GetOrder(current.ID)
	switch {
	case err == nil:
		return refreshed
	case IsNotFound(err):
		vanished := *current
		vanished.Status = models.StatusNotFound
		return &vanished
	case IsParse(err):
		log.WithError(err).Error("failed to parse order status")
		return current
	default:
		log.WithError(err).Error("failed to refresh order status")
		return current
	}
}

// slippageExceeded reports whether current has moved adversely against
// the chase's starting reference price by more than maxSlippage percent.
func slippageExceeded(current, starting decimal.Decimal, side models.OrderSide, maxSlippage decimal.Decimal) bool {
	if !starting.IsPositive() {
		return false
	}
	var pct decimal.Decimal
	if side == models.SideBuy {
		pct = current.Div(starting).Sub(one).Mul(hundred)
	} else {
		pct = one.Sub(current.Div(starting)).Mul(hundred)
	}
	return pct.GreaterThan(maxSlippage)
}
