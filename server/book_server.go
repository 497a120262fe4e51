package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/noda-sin/chasebot/infrastructure"
	"github.com/noda-sin/chasebot/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Error("client read failed")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type Hub struct {
	clients    map[*Client]bool
	updates    chan *models.BookUpdate
	register   chan *Client
	unregister chan *Client
}

func newHub() *Hub {
	return &Hub{
		clients:    map[*Client]bool{},
		updates:    make(chan *models.BookUpdate, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) watch(books []*infrastructure.LiveBook) {
	for _, book := range books {
		go func(ch <-chan *models.BookUpdate) {
			for update := range ch {
				h.updates <- update
			}
		}(book.Subscribe())
	}
}

func (h *Hub) run() {
	go func() {
		for {
			select {
			case client := <-h.register:
				h.clients[client] = true
			case client := <-h.unregister:
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					close(client.send)
				}
			case update := <-h.updates:
				bytes, err := json.Marshal(update)
				if err != nil {
					continue
				}
				for client := range h.clients {
					select {
					case client.send <- bytes:
					default:
						close(client.send)
						delete(h.clients, client)
					}
				}
			}
		}
	}()
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("failed to upgrade connection")
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}

func run(addr string, productIDs []string) {
	books := []*infrastructure.LiveBook{}
	for _, id := range productIDs {
		books = append(books, infrastructure.NewLiveBook(id, ""))
	}
	hub := newHub()
	hub.watch(books)
	hub.run()
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})
	log.Info("book server listening on ", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func main() {
	app := cli.NewApp()
	app.Name = "chasebot-book-server"
	app.Usage = "Relays best bid/ask tickers for a set of products over websocket"
	app.Version = "0.0.1"

	var addr string
	var products string

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Destination: &addr,
			Value:       "localhost:8080",
		},
		cli.StringFlag{
			Name:        "products, p",
			Usage:       "comma separated product ids",
			Destination: &products,
			Value:       "BTC-USDT,ETH-USDT,ETH-BTC",
		},
	}

	app.Action = func(c *cli.Context) error {
		run(addr, strings.Split(products, ","))
		return nil
	}
	app.Run(os.Args)
}
