package usecase

import (
	"time"

	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// UpdateAmounts refreshes the balance cache when it is more than one
// second stale. The mutex makes the refresh single-flight: concurrent
// callers wait for the in-flight refresh and then reuse its result. On
// any exchange failure every tracked balance is zeroed; callers treat
// that as "unknown, assume empty".
func (engine *TradeEngine) UpdateAmounts() {
	engine.balmu.Lock()
	defer engine.balmu.Unlock()

	if time.Since(engine.lastBalanceUpdate) <= time.Second {
		return
	}
	engine.lastBalanceUpdate = time.Now()

	accounts, err := engine.Exchange.GetAccounts()
	if err != nil {
		log.WithError(err).Error("failed to refresh balances")
		balanceRefreshes.WithLabelValues("error").Inc()
		for asset := range engine.balances {
			engine.balances[asset] = decimal.Zero
		}
		engine.fiatEquivalent = decimal.Zero
		return
	}
	balanceRefreshes.WithLabelValues("ok").Inc()

	for _, account := range accounts {
		if _, tracked := engine.balances[account.Asset]; !tracked {
			continue
		}
		if account.Asset == engine.cfg.Fiat {
			engine.balances[account.Asset] = util.RoundFiat(account.Available)
		} else {
			engine.balances[account.Asset] = util.RoundCoin(account.Available)
		}
	}

	total := engine.balances[engine.cfg.Fiat]
	for _, product := range engine.products {
		if product.QuoteAsset != engine.cfg.Fiat {
			continue
		}
		ticker := product.Book.Ticker()
		if ticker == nil || !ticker.Price.IsPositive() {
			continue
		}
		total = total.Add(engine.balances[product.BaseAsset].Mul(ticker.Price))
	}
	engine.fiatEquivalent = total
	fiatEquivalentGauge.Set(fiatGaugeValue(total))
}

// Balance returns the cached available amount for an asset.
func (engine *TradeEngine) Balance(asset models.Asset) decimal.Decimal {
	engine.balmu.Lock()
	defer engine.balmu.Unlock()
	return engine.balances[asset]
}

// FiatEquivalent is the fiat balance plus every fiat-quoted holding
// marked at its last known price.
func (engine *TradeEngine) FiatEquivalent() decimal.Decimal {
	engine.balmu.Lock()
	defer engine.balmu.Unlock()
	return engine.fiatEquivalent
}

// BaseAmount is the tradable base-currency amount for a product.
func (engine *TradeEngine) BaseAmount(product *models.Product) decimal.Decimal {
	engine.UpdateAmounts()
	return engine.Balance(product.BaseAsset)
}

// QuoteAmount is the tradable quote-currency amount for a product.
func (engine *TradeEngine) QuoteAmount(product *models.Product) decimal.Decimal {
	engine.UpdateAmounts()
	return engine.Balance(product.QuoteAsset)
}

func (engine *TradeEngine) PrintBalances() {
	log.Info("----------------- Balances -----------------")
	engine.balmu.Lock()
	for asset, amount := range engine.balances {
		log.Info(string(asset), " : ", amount)
	}
	equivalent := engine.fiatEquivalent
	engine.balmu.Unlock()
	log.Infof("%s equivalent : %s", engine.cfg.Fiat, equivalent)
	log.Info("--------------------------------------------")
}
