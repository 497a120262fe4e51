package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/noda-sin/chasebot/infrastructure"
	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/usecase"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func main() {
	products := strings.Split(getenv("CHASEBOT_PRODUCTS", "BTC-USDT,ETH-USDT,ETH-BTC"), ",")

	exchange, err := infrastructure.NewBinance(
		os.Getenv("EXCHANGE_APIKEY"),
		os.Getenv("EXCHANGE_SECRET"),
		products,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to connect exchange")
	}

	books := map[string]models.Book{}
	for _, id := range products {
		books[id] = infrastructure.NewLiveBook(id, os.Getenv("CHASEBOT_BOOK_SERVER"))
	}

	engine := usecase.NewTradeEngine(exchange, books, usecase.Config{
		ProductIDs:  products,
		Fiat:        models.Asset(getenv("CHASEBOT_FIAT", "USDT")),
		Live:        os.Getenv("CHASEBOT_LIVE") == "1",
		MaxSlippage: decimal.RequireFromString(getenv("CHASEBOT_MAX_SLIPPAGE", "0.10")),
	})
	if err := engine.Start(); err != nil {
		log.WithError(err).Fatal("failed to start trade engine")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	sig := <-interrupt
	log.Info("got signal : ", sig)
	engine.Close(true)
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
