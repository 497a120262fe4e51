package usecase

import (
	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	adxTrendThreshold = decimal.NewFromInt(25)
	stochMidpoint     = decimal.NewFromInt(50)
)

// DetermineTrades combines one indicator snapshot per configured period
// into a buy, sell or hold intent for the product, updates its flags and
// spawns a chase worker when a tradable intent is present.
//
// Per period: ADX above 25 selects the trending rule (buy while OBV is
// above its EMA, sell once it drops below); otherwise the ranging rule
// applies (buy while %K leads %D with room below the 50 midpoint, sell
// once %K trails %D or overshoots 50). Buy intent is the AND of every
// period, sell intent the OR of any period.
func (engine *TradeEngine) DetermineTrades(productID string, periods []string, indicators models.IndicatorSet) {
	engine.UpdateAmounts()

	if !engine.cfg.Live {
		return
	}
	product := engine.GetProductByID(productID)
	if product == nil {
		log.WithField("product", productID).Warn("signal for unknown product")
		return
	}
	baseAmount := engine.BaseAmount(product)

	newBuy := true
	newSell := false
	for _, period := range periods {
		ind, ok := indicators[period]
		if !ok {
			log.WithFields(log.Fields{
				"product": productID,
				"period":  period,
			}).Warn("missing indicators for period")
			return
		}
		if ind.ADX.GreaterThan(adxTrendThreshold) {
			newBuy = newBuy && ind.OBV.GreaterThan(ind.OBVEMA)
			newSell = newSell || ind.OBV.LessThan(ind.OBVEMA)
		} else {
			newBuy = newBuy && ind.StochSlowK.GreaterThan(ind.StochSlowD) &&
				ind.StochSlowK.LessThan(stochMidpoint)
			newSell = newSell || ind.StochSlowK.LessThan(ind.StochSlowD) ||
				ind.StochSlowK.GreaterThan(stochMidpoint)
		}
	}

	// Crypto-quoted pairs are gated on their fiat counterparts: only buy
	// the pair while its base asset's own fiat signal says buy, and only
	// sell it while the quote asset remains a sound store of value.
	if product.QuoteAsset != engine.cfg.Fiat {
		counterpart := engine.GetProductByID(string(product.BaseAsset) + "-" + string(engine.cfg.Fiat))
		reference := engine.GetProductByID(string(product.QuoteAsset) + "-" + string(engine.cfg.Fiat))
		newBuy = newBuy && counterpart != nil && counterpart.BuyFlag()
		newSell = newSell && reference != nil && reference.BuyFlag()
	}

	switch {
	case newBuy:
		product.SetBuy()
		amount := engine.QuoteAmount(product)
		bid := product.Book.Ask().Sub(product.QuoteIncrement)
		if !bid.IsPositive() {
			return
		}
		size := util.RoundCoin(amount.Div(bid))
		if size.GreaterThanOrEqual(product.MinSize) && !product.InProgress() {
			go engine.Buy(product)
		}
	case newSell:
		product.SetSell()
		if baseAmount.GreaterThanOrEqual(product.MinSize) && !product.InProgress() {
			go engine.Sell(product)
		}
	default:
		product.ClearFlags()
	}
}
