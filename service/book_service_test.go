package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

type tradeRecorder struct {
	mu     sync.Mutex
	trades []orderbook.Trade
	err    error
}

func (r *tradeRecorder) PublishTrade(_ context.Context, t orderbook.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, t)
	return r.err
}

func px(f float64) orderbook.Price     { return orderbook.PriceFromFloat(f) }
func qty(f float64) orderbook.Quantity { return orderbook.QuantityFromFloat(f) }

func TestPlaceOrderAssignsIDsAndPublishesTrades(t *testing.T) {
	rec := &tradeRecorder{}
	svc := NewBookService("BTCUSDT", BookOptions{Trades: rec, Logger: zerolog.Nop(), Strict: true})

	id1, trades, err := svc.PlaceOrder(orderbook.Buy, orderbook.Limit, px(100), qty(10))
	require.NoError(t, err)
	assert.Empty(t, trades)
	id2, trades, err := svc.PlaceOrder(orderbook.Sell, orderbook.Limit, px(100), qty(4))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	require.Len(t, trades, 1)
	assert.Equal(t, trades, rec.trades)
	assert.Equal(t, qty(6), svc.Snapshot().Bids[0].Quantity)
}

func TestTradePublishFailureDoesNotFailOrder(t *testing.T) {
	rec := &tradeRecorder{err: errors.New("broker down")}
	svc := NewBookService("BTCUSDT", BookOptions{Trades: rec, Logger: zerolog.Nop()})
	_, _, err := svc.PlaceOrder(orderbook.Buy, orderbook.Limit, px(100), qty(1))
	require.NoError(t, err)
	_, trades, err := svc.PlaceOrder(orderbook.Sell, orderbook.Limit, px(100), qty(1))
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestAddOrderRejections(t *testing.T) {
	svc := NewBookService("BTCUSDT", BookOptions{Logger: zerolog.Nop()})
	_, err := svc.AddOrder(orderbook.NewOrder(1, orderbook.Buy, orderbook.Limit, px(1), qty(1), "ETHUSDT"))
	assert.ErrorIs(t, err, orderbook.ErrSymbolMismatch)
	assert.Equal(t, "symbol", rejectReason(err))

	_, err = svc.AddOrder(orderbook.NewOrder(2, orderbook.Buy, orderbook.Limit, 0, qty(1), "BTCUSDT"))
	assert.Equal(t, "invalid", rejectReason(err))
}

func TestCancelAndReport(t *testing.T) {
	svc := NewBookService("BTCUSDT", BookOptions{Logger: zerolog.Nop(), Strict: true})
	id, _, err := svc.PlaceOrder(orderbook.Buy, orderbook.Limit, px(99), qty(1))
	require.NoError(t, err)
	_, _, err = svc.PlaceOrder(orderbook.Sell, orderbook.Limit, px(101), qty(1))
	require.NoError(t, err)

	assert.True(t, svc.CancelOrder(id))
	assert.False(t, svc.CancelOrder(id))

	r := svc.Report()
	assert.Equal(t, "BTCUSDT", r.Symbol)
	assert.Zero(t, r.BidLevels)
	assert.Equal(t, 1, r.AskLevels)
	assert.True(t, r.Velocity.CancellationRatio.Valid)
	assert.InDelta(t, 0.5, r.Velocity.CancellationRatio.Value, 1e-12)
	assert.True(t, r.Stability.UpdateRate.Valid)
	require.NoError(t, svc.Analyzer().RequireHistory())
}

func TestActivityTracksQuoteChanges(t *testing.T) {
	book := orderbook.New("X")
	clock := time.Unix(0, 0)
	a := newActivity(book, func() time.Time { return clock })

	_, ok := a.QuoteUpdateRate()
	assert.False(t, ok)
	_, ok = a.MeanQuoteLife()
	assert.False(t, ok)
	_, ok = a.CancellationRatio()
	assert.False(t, ok)

	clock = clock.Add(time.Second)
	a.observe(px(100), px(101))
	clock = clock.Add(2 * time.Second)
	a.observe(px(100), px(101)) // unchanged
	a.observe(px(100), px(102))
	clock = clock.Add(4 * time.Second)
	a.observe(px(99), px(102))

	rate, ok := a.QuoteUpdateRate()
	require.True(t, ok)
	assert.InDelta(t, 3.0/7, rate, 1e-12)

	life, ok := a.MeanQuoteLife()
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, life)
}

func BenchmarkPlaceOrder(b *testing.B) {
	svc := NewBookService("BTCUSDT", BookOptions{Logger: zerolog.Nop()})
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			side := orderbook.Buy
			if i%2 == 1 {
				side = orderbook.Sell
			}
			_, _, _ = svc.PlaceOrder(side, orderbook.Limit, px(100), qty(1))
			i++
		}
	})
}
