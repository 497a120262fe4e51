package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/noda-sin/chasebot/infrastructure"
	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/usecase"
)

func main() {
	// .env keeps keys out of the shell; missing file is fine
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "chasebot"
	app.Usage = "A bot chasing maker orders from technical signals, with a slippage cutover to market orders"
	app.Version = "0.0.1"

	var dryrun bool
	var live bool
	var debug bool
	var apiKey string
	var secret string
	var products string
	var fiat string
	var slippage string
	var funds string
	var bookServer string
	var httpAddr string

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:        "dryrun, d",
			Usage:       "trade against an in-memory exchange stub",
			Destination: &dryrun,
		},
		cli.BoolFlag{
			Name:        "live, l",
			Usage:       "act on signals (otherwise balances and orders are only observed)",
			Destination: &live,
		},
		cli.BoolFlag{
			Name:        "debug",
			Usage:       "debug logging",
			Destination: &debug,
		},
		cli.StringFlag{
			Name:        "apikey, a",
			Usage:       "api key of exchange",
			Destination: &apiKey,
			EnvVar:      "EXCHANGE_APIKEY",
		},
		cli.StringFlag{
			Name:        "secret, s",
			Usage:       "secret of exchange",
			Destination: &secret,
			EnvVar:      "EXCHANGE_SECRET",
		},
		cli.StringFlag{
			Name:        "products, p",
			Usage:       "comma separated product ids",
			Destination: &products,
			Value:       "BTC-USDT,ETH-USDT,ETH-BTC",
			EnvVar:      "CHASEBOT_PRODUCTS",
		},
		cli.StringFlag{
			Name:        "fiat, f",
			Usage:       "fiat currency code",
			Destination: &fiat,
			Value:       "USDT",
			EnvVar:      "CHASEBOT_FIAT",
		},
		cli.StringFlag{
			Name:        "slippage",
			Usage:       "max slippage percent before escalating to a market order",
			Destination: &slippage,
			Value:       "0.10",
			EnvVar:      "CHASEBOT_MAX_SLIPPAGE",
		},
		cli.StringFlag{
			Name:        "funds",
			Usage:       "starting fiat balance in dryrun mode",
			Destination: &funds,
			Value:       "1000",
		},
		cli.StringFlag{
			Name:        "book-server",
			Usage:       "host of a chasebot book server; empty dials the exchange directly",
			Destination: &bookServer,
			EnvVar:      "CHASEBOT_BOOK_SERVER",
		},
		cli.StringFlag{
			Name:        "http-addr",
			Usage:       "address of the metrics and signal endpoint",
			Destination: &httpAddr,
			Value:       ":9090",
		},
	}

	app.Action = func(c *cli.Context) error {
		if !dryrun && (apiKey == "" || secret == "") {
			return cli.NewExitError("api key and secret is required", 1)
		}
		if debug {
			log.SetLevel(log.DebugLevel)
		}
		maxSlippage, err := decimal.NewFromString(slippage)
		if err != nil {
			return cli.NewExitError("invalid slippage: "+slippage, 1)
		}
		startingFunds, err := decimal.NewFromString(funds)
		if err != nil {
			return cli.NewExitError("invalid funds: "+funds, 1)
		}
		cfg := usecase.Config{
			ProductIDs:  strings.Split(products, ","),
			Fiat:        models.Asset(fiat),
			Live:        live,
			MaxSlippage: maxSlippage,
		}
		return run(cfg, apiKey, secret, dryrun, startingFunds, bookServer, httpAddr)
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cfg usecase.Config, apiKey, secret string, dryrun bool, funds decimal.Decimal, bookServer, httpAddr string) error {
	binance, err := infrastructure.NewBinance(apiKey, secret, cfg.ProductIDs)
	if err != nil {
		return err
	}

	books := map[string]models.Book{}
	liveBooks := map[string]*infrastructure.LiveBook{}
	for _, id := range cfg.ProductIDs {
		book := infrastructure.NewLiveBook(id, bookServer)
		books[id] = book
		liveBooks[id] = book
	}

	var exchange usecase.Exchange = binance
	if dryrun {
		infos, _ := binance.GetProducts()
		stub := infrastructure.NewExchangeStub(infos, map[models.Asset]decimal.Decimal{
			cfg.Fiat: funds,
		})
		// keep the stub's fill price pinned to the live feed
		for id, book := range liveBooks {
			go func(id string, updates <-chan *models.BookUpdate) {
				for update := range updates {
					stub.SetMark(id, update.Price)
				}
			}(id, book.Subscribe())
		}
		exchange = stub
	}

	engine := usecase.NewTradeEngine(exchange, books, cfg)
	if err := engine.Start(); err != nil {
		return err
	}

	go serveHTTP(engine, httpAddr)

	report := time.NewTicker(time.Minute)
	defer report.Stop()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-report.C:
			engine.UpdateAmounts()
			engine.PrintBalances()
		case sig := <-interrupt:
			log.Info("got signal : ", sig)
			log.Info("stopping chasebot")
			engine.Close(true)
			return nil
		}
	}
}

// signalPayload is what the indicator pipeline posts to /signals.
type signalPayload struct {
	ProductID  string                       `json:"product_id"`
	Periods    []string                     `json:"periods"`
	Indicators map[string]map[string]string `json:"indicators"`
}

func serveHTTP(engine *usecase.TradeEngine, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/signals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var payload signalPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		set, err := models.ParseIndicatorSet(payload.Indicators)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		engine.DetermineTrades(payload.ProductID, payload.Periods, set)
		w.WriteHeader(http.StatusNoContent)
	})
	log.Info("serving metrics and signals on ", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("http server stopped")
	}
}
