// Package binance streams Binance partial book depth into a book.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/feed"
)

const DefaultURL = "wss://stream.binance.com:9443/ws"

// Protocol subscribes to the top-20 depth stream at 1s cadence. Each depth
// message is a full top-of-book picture and replaces the previous one.
type Protocol struct {
	BaseURL string
	nextID  atomic.Uint64
}

// New returns a feed for the venue at baseURL (DefaultURL when empty).
func New(baseURL string, opts feed.Options) *feed.Stream {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return feed.NewStream(&Protocol{BaseURL: baseURL}, opts)
}

func (p *Protocol) Name() string { return "binance" }

func (p *Protocol) URL(string) string { return p.BaseURL }

func StreamName(symbol string) string {
	return strings.ToLower(symbol) + "@depth20@1000ms"
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type response struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

// Handshake subscribes and waits for the matching acknowledgement. Frames
// that arrive before the ack are dropped.
func (p *Protocol) Handshake(_ context.Context, conn *websocket.Conn, symbol string) error {
	id := p.nextID.Add(1)
	req := subscribeRequest{Method: "SUBSCRIBE", Params: []string{StreamName(symbol)}, ID: id}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await subscribe ack: %w", err)
		}
		var r response
		if json.Unmarshal(msg, &r) != nil || r.ID == nil || *r.ID != id {
			continue
		}
		if r.Error != nil {
			return fmt.Errorf("subscribe %s rejected: %d %s", StreamName(symbol), r.Error.Code, r.Error.Msg)
		}
		return nil
	}
}

type depthMessage struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

func (p *Protocol) Decode(msg []byte, _ string) (feed.Update, bool, error) {
	var d depthMessage
	if err := json.Unmarshal(msg, &d); err != nil {
		return feed.Update{}, false, fmt.Errorf("decode depth: %w", err)
	}
	if d.Bids == nil && d.Asks == nil {
		return feed.Update{}, false, nil
	}
	bids, err := quotes(d.Bids)
	if err != nil {
		return feed.Update{}, false, err
	}
	asks, err := quotes(d.Asks)
	if err != nil {
		return feed.Update{}, false, err
	}
	return feed.Update{Bids: bids, Asks: asks, Replace: true}, true, nil
}

func quotes(levels [][2]string) ([]feed.Quote, error) {
	out := make([]feed.Quote, 0, len(levels))
	for _, l := range levels {
		price, err := orderbook.ParsePrice(l[0])
		if err != nil {
			return nil, err
		}
		qty, err := orderbook.ParseQuantity(l[1])
		if err != nil {
			return nil, err
		}
		out = append(out, feed.Quote{Price: price, Quantity: qty})
	}
	return out, nil
}
