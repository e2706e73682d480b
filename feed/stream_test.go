package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/infra/backoff"
	"github.com/arithmax-research/TurboBook/infra/sequence"
)

// testProto speaks a tiny protocol: the client sends {"op":"hello"}, the
// venue answers "welcome", then sends {"bids":[[p,q]],"asks":[[p,q]]}.
type testProto struct {
	url        string
	handshakes atomic.Int32
}

func (p *testProto) Name() string      { return "test" }
func (p *testProto) URL(string) string { return p.url }

func (p *testProto) Handshake(_ context.Context, conn *websocket.Conn, symbol string) error {
	p.handshakes.Add(1)
	if err := conn.WriteJSON(map[string]string{"op": "hello", "symbol": symbol}); err != nil {
		return err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	if string(msg) != "welcome" {
		return errors.New(string(msg))
	}
	return nil
}

func (p *testProto) Decode(msg []byte, _ string) (Update, bool, error) {
	var raw struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Update{}, false, err
	}
	if raw.Bids == nil && raw.Asks == nil {
		return Update{}, false, nil
	}
	u := Update{Replace: true}
	for _, b := range raw.Bids {
		u.Bids = append(u.Bids, q(b[0], b[1]))
	}
	for _, a := range raw.Asks {
		u.Asks = append(u.Asks, q(a[0], a[1]))
	}
	return u, true, nil
}

type venue struct {
	srv   *httptest.Server
	conns atomic.Int32
	// greet is the handshake reply.
	greet string
	// serve runs after the handshake with the connection number (1-based).
	serve func(n int32, c *websocket.Conn)
}

func newVenue(t *testing.T, greet string, serve func(int32, *websocket.Conn)) *venue {
	v := &venue{greet: greet, serve: serve}
	up := websocket.Upgrader{}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := v.conns.Add(1)
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		if err := c.WriteMessage(websocket.TextMessage, []byte(v.greet)); err != nil {
			return
		}
		v.serve(n, c)
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *venue) wsURL() string { return "ws" + strings.TrimPrefix(v.srv.URL, "http") }

func holdOpen(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func newTestStream(p *testProto) *Stream {
	return NewStream(p, Options{
		HandshakeTimeout: time.Second,
		Backoff:          backoff.Policy{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond},
		BreakerFailures:  100,
		Sequencer:        sequence.New(0),
		Logger:           zerolog.Nop(),
	})
}

func TestStreamDeliversUpdatesIntoBook(t *testing.T) {
	v := newVenue(t, "welcome", func(_ int32, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"event":"ack"}`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"bids":[[99,1],[98,2]],"asks":[[101,1]]}`))
		holdOpen(c)
	})
	p := &testProto{url: v.wsURL()}
	book := orderbook.New("BTCUSDT", orderbook.WithInvariantChecks())
	s := newTestStream(p)
	s.Attach(book)

	require.NoError(t, s.Connect(context.Background(), "BTCUSDT"))
	assert.True(t, s.IsConnected())
	assert.ErrorIs(t, s.Connect(context.Background(), "BTCUSDT"), ErrAlreadyConnected)

	require.Eventually(t, func() bool { return book.Len() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, orderbook.PriceFromFloat(99), book.BestBid())

	require.NoError(t, s.Disconnect())
	assert.False(t, s.IsConnected())
	assert.ErrorIs(t, s.Disconnect(), ErrNotConnected)
}

func TestStreamReconnectRerunsHandshake(t *testing.T) {
	v := newVenue(t, "welcome", func(n int32, c *websocket.Conn) {
		if n == 1 {
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"bids":[[99,1]],"asks":[[101,1]]}`))
			return // drop the first connection
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"bids":[[100,5]],"asks":[[102,5]]}`))
		holdOpen(c)
	})
	p := &testProto{url: v.wsURL()}
	book := orderbook.New("BTCUSDT", orderbook.WithInvariantChecks())
	s := newTestStream(p)
	s.Attach(book)

	require.NoError(t, s.Connect(context.Background(), "BTCUSDT"))
	require.Eventually(t, func() bool {
		return book.BestAsk() == orderbook.PriceFromFloat(102)
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(2), p.handshakes.Load())
	assert.Equal(t, orderbook.PriceFromFloat(100), book.BestBid())
	assert.Equal(t, 2, book.Len(), "replace update cancels the first connection's levels")
	require.NoError(t, s.Disconnect())
}

func TestStreamHandshakeFailure(t *testing.T) {
	v := newVenue(t, "denied", func(int32, *websocket.Conn) {})
	s := newTestStream(&testProto{url: v.wsURL()})
	s.Attach(orderbook.New("BTCUSDT"))

	err := s.Connect(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, ErrHandshake)
	assert.False(t, s.IsConnected())
}

func TestStreamRequiresSink(t *testing.T) {
	s := newTestStream(&testProto{url: "ws://127.0.0.1:1"})
	assert.ErrorIs(t, s.Connect(context.Background(), "BTCUSDT"), ErrNotAttached)
}

func TestDisconnectDuringBackoffReturns(t *testing.T) {
	v := newVenue(t, "welcome", func(n int32, c *websocket.Conn) {})
	p := &testProto{url: v.wsURL()}
	s := NewStream(p, Options{
		HandshakeTimeout: time.Second,
		Backoff:          backoff.Policy{Base: time.Hour},
		Logger:           zerolog.Nop(),
	})
	s.Attach(orderbook.New("BTCUSDT"))
	require.NoError(t, s.Connect(context.Background(), "BTCUSDT"))

	require.Eventually(t, func() bool { return !s.IsConnected() }, 2*time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Disconnect() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return while the stream was backing off")
	}
}
