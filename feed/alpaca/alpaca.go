// Package alpaca streams Alpaca market data quotes into a book.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/feed"
)

const DefaultURL = "wss://stream.data.alpaca.markets/v2/iex"

// Protocol authenticates with an API key pair and subscribes to quotes.
// Each quote becomes a one-level replace update on both sides.
type Protocol struct {
	BaseURL string
	Key     string
	Secret  string
}

func New(baseURL, key, secret string, opts feed.Options) *feed.Stream {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return feed.NewStream(&Protocol{BaseURL: baseURL, Key: key, Secret: secret}, opts)
}

func (p *Protocol) Name() string { return "alpaca" }

func (p *Protocol) URL(string) string { return p.BaseURL }

// message covers every frame type the stream sends. Frames arrive as JSON
// arrays of messages. The lower-case "t" and "s" keys must be declared so
// they do not fold onto "T" and "S".
type message struct {
	T      string   `json:"T"`
	Msg    string   `json:"msg"`
	Code   int      `json:"code"`
	Symbol string   `json:"S"`
	Quotes []string `json:"quotes"`

	Time json.RawMessage `json:"t"`
	Size json.RawMessage `json:"s"`

	BidPrice float64 `json:"bp"`
	BidSize  float64 `json:"bs"`
	AskPrice float64 `json:"ap"`
	AskSize  float64 `json:"as"`
}

type authRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeRequest struct {
	Action string   `json:"action"`
	Quotes []string `json:"quotes"`
}

// Handshake waits for the welcome, authenticates and subscribes to the
// quotes of symbol.
func (p *Protocol) Handshake(_ context.Context, conn *websocket.Conn, symbol string) error {
	if err := expect(conn, "success", "connected"); err != nil {
		return err
	}
	if err := conn.WriteJSON(authRequest{Action: "auth", Key: p.Key, Secret: p.Secret}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if err := expect(conn, "success", "authenticated"); err != nil {
		return err
	}
	if err := conn.WriteJSON(subscribeRequest{Action: "subscribe", Quotes: []string{symbol}}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	return expect(conn, "subscription", "")
}

// expect reads one frame and requires a message of type typ (and text msg
// when non-empty). Error frames are returned as errors.
func expect(conn *websocket.Conn, typ, msg string) error {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await %s: %w", typ, err)
	}
	var msgs []message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return fmt.Errorf("decode %s reply: %w", typ, err)
	}
	for _, m := range msgs {
		switch {
		case m.T == "error":
			return fmt.Errorf("alpaca error %d: %s", m.Code, m.Msg)
		case m.T == typ && (msg == "" || m.Msg == msg):
			return nil
		}
	}
	return fmt.Errorf("unexpected reply while awaiting %s: %s", typ, raw)
}

// Decode keeps the last quote for symbol in the frame.
func (p *Protocol) Decode(raw []byte, symbol string) (feed.Update, bool, error) {
	var msgs []message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return feed.Update{}, false, fmt.Errorf("decode frame: %w", err)
	}
	var (
		last  *message
		fault error
	)
	for i := range msgs {
		m := &msgs[i]
		switch {
		case m.T == "q" && m.Symbol == symbol:
			last = m
		case m.T == "error":
			fault = fmt.Errorf("alpaca error %d: %s", m.Code, m.Msg)
		}
	}
	if last == nil {
		return feed.Update{}, false, fault
	}

	u := feed.Update{Replace: true}
	if last.BidPrice > 0 && last.BidSize > 0 {
		u.Bids = []feed.Quote{{Price: orderbook.PriceFromFloat(last.BidPrice), Quantity: orderbook.QuantityFromFloat(last.BidSize)}}
	}
	if last.AskPrice > 0 && last.AskSize > 0 {
		u.Asks = []feed.Quote{{Price: orderbook.PriceFromFloat(last.AskPrice), Quantity: orderbook.QuantityFromFloat(last.AskSize)}}
	}
	return u, true, nil
}
