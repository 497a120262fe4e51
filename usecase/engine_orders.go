package usecase

import (
	"time"

	"github.com/noda-sin/chasebot/models"
	log "github.com/sirupsen/logrus"
)

const pollTick = 10 * time.Millisecond

// pollOrders is the background order poller. Only when some product has a
// chase in flight, and at most once per second, it fetches the full open
// order list and redistributes it to the owning products. Chases read
// their product's open set instead of polling the exchange themselves, so
// exchange call volume stays flat as more products chase concurrently.
func (engine *TradeEngine) pollOrders() {
	for {
		select {
		case <-engine.stopch:
			return
		case <-time.After(pollTick):
		}

		if !engine.chaseInFlight() {
			continue
		}
		if time.Since(engine.lastOrderPoll) < time.Second {
			continue
		}

		orders, err := engine.Exchange.GetOrders()
		if err != nil {
			log.WithError(err).Error("failed to refresh open orders")
			continue
		}
		engine.lastOrderPoll = time.Now()

		byProduct := map[string][]*models.Order{}
		for _, order := range orders {
			byProduct[order.ProductID] = append(byProduct[order.ProductID], order)
		}
		for _, product := range engine.products {
			product.ReplaceOpenOrders(byProduct[product.ID])
		}
	}
}

func (engine *TradeEngine) chaseInFlight() bool {
	for _, product := range engine.products {
		if product.InProgress() {
			return true
		}
	}
	return false
}
