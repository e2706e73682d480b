// Package feed defines the market data feed capability and a reusable
// websocket stream that venue packages plug a Protocol into.
package feed

import (
	"context"
	"errors"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/infra/sequence"
)

var (
	ErrNotConnected     = errors.New("feed: not connected")
	ErrAlreadyConnected = errors.New("feed: already connected")
	ErrNotAttached      = errors.New("feed: no sink attached")
	ErrHandshake        = errors.New("feed: handshake failed")
)

// Sink is the book side of a feed. *orderbook.OrderBook satisfies it.
type Sink interface {
	Symbol() string
	AddOrder(orderbook.Order) ([]orderbook.Trade, error)
	CancelOrder(id uint64) bool
}

// Feed produces orders into the attached Sink once connected. Disconnect
// stops the feed cooperatively and returns only after its loop has exited.
type Feed interface {
	Name() string
	Connect(ctx context.Context, symbol string) error
	Disconnect() error
	IsConnected() bool
	Attach(Sink)
}

// Quote is one price level as reported by a venue.
type Quote struct {
	Price    orderbook.Price
	Quantity orderbook.Quantity
}

// Update is one decoded venue message. A Replace update supersedes every
// level the feed placed before it.
type Update struct {
	Bids    []Quote
	Asks    []Quote
	Replace bool
}

// Applier turns updates into book orders. Ids come from the sequencer the
// caller owns. An Applier belongs to a single feed goroutine.
type Applier struct {
	sink   Sink
	seq    *sequence.Sequencer
	placed []uint64
}

func NewApplier(sink Sink, seq *sequence.Sequencer) *Applier {
	if seq == nil {
		seq = sequence.New(0)
	}
	return &Applier{sink: sink, seq: seq}
}

// Apply returns how many orders were accepted and how many resting orders
// were cancelled.
func (a *Applier) Apply(u Update) (added, cancelled int) {
	if u.Replace {
		for _, id := range a.placed {
			if a.sink.CancelOrder(id) {
				cancelled++
			}
		}
		a.placed = a.placed[:0]
	}
	added += a.place(orderbook.Buy, u.Bids)
	added += a.place(orderbook.Sell, u.Asks)
	return added, cancelled
}

func (a *Applier) place(side orderbook.Side, quotes []Quote) int {
	n := 0
	for _, q := range quotes {
		if q.Price <= 0 || q.Quantity <= 0 {
			continue
		}
		id := a.seq.Next()
		if _, err := a.sink.AddOrder(orderbook.NewOrder(id, side, orderbook.Limit, q.Price, q.Quantity, a.sink.Symbol())); err != nil {
			continue
		}
		a.placed = append(a.placed, id)
		n++
	}
	return n
}
