package infrastructure

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/noda-sin/chasebot/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const binanceStreamHost = "stream.binance.com:9443"

// LiveBook tracks the best bid/ask and last trade price for one product,
// fed either by the exchange's public ticker stream or, when serverHost
// is set, by a chasebot book server relaying the same updates.
type LiveBook struct {
	productID string
	streamURL string
	relayed   bool

	mu   sync.Mutex
	bid  decimal.Decimal
	ask  decimal.Decimal
	last *models.Ticker
	subs []chan *models.BookUpdate

	stopch   chan struct{}
	stopOnce sync.Once
}

func NewLiveBook(productID string, serverHost string) *LiveBook {
	book := &LiveBook{
		productID: productID,
		stopch:    make(chan struct{}),
	}
	if serverHost != "" {
		u := url.URL{Scheme: "ws", Host: serverHost, Path: "/ws"}
		book.streamURL = u.String()
		book.relayed = true
	} else {
		symbol := strings.ToLower(strings.ReplaceAll(productID, "-", ""))
		u := url.URL{Scheme: "wss", Host: binanceStreamHost, Path: "/ws/" + symbol + "@ticker"}
		book.streamURL = u.String()
	}
	go book.run()
	return book
}

func (b *LiveBook) Bid() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bid
}

func (b *LiveBook) Ask() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ask
}

// Ticker returns the last trade price, or nil before the first update.
func (b *LiveBook) Ticker() *models.Ticker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Subscribe returns a channel of book updates. Slow subscribers miss
// updates rather than stall the feed.
func (b *LiveBook) Subscribe() <-chan *models.BookUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *models.BookUpdate, 256)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *LiveBook) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopch)
	})
}

func (b *LiveBook) run() {
	for {
		select {
		case <-b.stopch:
			return
		default:
		}
		conn, _, err := websocket.DefaultDialer.Dial(b.streamURL, nil)
		if err != nil {
			log.WithError(err).WithField("url", b.streamURL).Error("failed to dial book stream")
			time.Sleep(time.Second)
			continue
		}
		b.readLoop(conn)
	}
}

func (b *LiveBook) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-b.stopch:
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Error("book stream read failed")
			return
		}
		update := b.parse(raw)
		if update == nil {
			continue
		}
		b.apply(update)
	}
}

// binanceTicker is the subset of the exchange's 24hr ticker event the
// book needs.
type binanceTicker struct {
	Symbol string `json:"s"`
	Last   string `json:"c"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

func (b *LiveBook) parse(raw []byte) *models.BookUpdate {
	if b.relayed {
		var update models.BookUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			return nil
		}
		if update.ProductID != b.productID {
			return nil
		}
		return &update
	}

	var tk binanceTicker
	if err := json.Unmarshal(raw, &tk); err != nil {
		return nil
	}
	bid, err := decimal.NewFromString(tk.Bid)
	if err != nil {
		return nil
	}
	ask, err := decimal.NewFromString(tk.Ask)
	if err != nil {
		return nil
	}
	price, err := decimal.NewFromString(tk.Last)
	if err != nil {
		return nil
	}
	return &models.BookUpdate{
		ProductID: b.productID,
		Bid:       bid,
		Ask:       ask,
		Price:     price,
		Time:      time.Now(),
	}
}

func (b *LiveBook) apply(update *models.BookUpdate) {
	b.mu.Lock()
	b.bid = update.Bid
	b.ask = update.Ask
	b.last = &models.Ticker{Price: update.Price, Time: update.Time}
	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// StaticBook is a settable book for tests and offline runs.
type StaticBook struct {
	mu   sync.Mutex
	bid  decimal.Decimal
	ask  decimal.Decimal
	last *models.Ticker
}

func NewStaticBook() *StaticBook {
	return &StaticBook{}
}

// Update replaces the whole snapshot at once.
func (b *StaticBook) Update(bid, ask, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bid = bid
	b.ask = ask
	b.last = &models.Ticker{Price: price, Time: time.Now()}
}

func (b *StaticBook) Bid() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bid
}

func (b *StaticBook) Ask() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ask
}

func (b *StaticBook) Ticker() *models.Ticker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
