package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/arithmax-research/TurboBook/infra/backoff"
	"github.com/arithmax-research/TurboBook/infra/metrics"
	"github.com/arithmax-research/TurboBook/infra/sequence"
)

// Protocol is the venue-specific part of a Stream.
type Protocol interface {
	Name() string
	// URL is the endpoint to dial for symbol.
	URL(symbol string) string
	// Handshake runs after every dial, before the first Decode. The read
	// deadline is bounded by the handshake timeout while it runs.
	Handshake(ctx context.Context, conn *websocket.Conn, symbol string) error
	// Decode converts one message. ok is false for control messages.
	Decode(msg []byte, symbol string) (u Update, ok bool, err error)
}

type Options struct {
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the silence tolerated before a connection is
	// treated as dropped. Zero disables it.
	ReadTimeout     time.Duration
	Backoff         backoff.Policy
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Sequencer       *sequence.Sequencer
	Dialer          *websocket.Dialer
	Logger          zerolog.Logger
}

// Stream is a Feed over a websocket. A dropped connection is redialled with
// jittered exponential backoff behind a circuit breaker, and every new
// connection repeats the full handshake before updates flow again.
type Stream struct {
	proto   Protocol
	opts    Options
	log     zerolog.Logger
	dialer  *websocket.Dialer
	breaker *gobreaker.CircuitBreaker

	mu     sync.Mutex
	sink   Sink
	symbol string
	cancel context.CancelFunc
	done   chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	connected atomic.Bool
}

func NewStream(proto Protocol, opts Options) *Stream {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff = backoff.Policy{Base: 2 * time.Second, Max: time.Minute, Jitter: 0.2}
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	}
	s := &Stream{
		proto:  proto,
		opts:   opts,
		log:    opts.Logger.With().Str("feed", proto.Name()).Logger(),
		dialer: dialer,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    proto.Name(),
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("feed breaker state change")
		},
	})
	return s
}

func (s *Stream) Name() string { return s.proto.Name() }

func (s *Stream) Attach(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Stream) IsConnected() bool { return s.connected.Load() }

// Connect dials and handshakes once, returning that attempt's error. On
// success the read loop runs until Disconnect; ctx only bounds the first
// attempt.
func (s *Stream) Connect(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyConnected
	}
	if s.sink == nil {
		return ErrNotAttached
	}

	conn, err := s.dial(ctx, symbol)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.symbol = symbol
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setConn(conn)
	s.connected.Store(true)
	metrics.FeedConnected.WithLabelValues(s.Name(), symbol).Set(1)
	s.log.Info().Str("symbol", symbol).Msg("feed connected")

	go s.run(runCtx, conn, NewApplier(s.sink, s.opts.Sequencer), s.done)
	return nil
}

// Disconnect signals the loop, closes the socket and waits for the loop to
// return.
func (s *Stream) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return ErrNotConnected
	}
	s.cancel()
	if conn := s.currentConn(); conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	<-s.done
	s.done, s.cancel = nil, nil
	s.setConn(nil)
	s.log.Info().Str("symbol", s.symbol).Msg("feed disconnected")
	return nil
}

func (s *Stream) dial(ctx context.Context, symbol string) (*websocket.Conn, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		hctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
		defer cancel()

		url := s.proto.URL(symbol)
		conn, _, err := s.dialer.DialContext(hctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: dial %s: %w", s.Name(), url, err)
		}
		deadline, _ := hctx.Deadline()
		_ = conn.SetReadDeadline(deadline)
		if err := s.proto.Handshake(hctx, conn, symbol); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w: %w", s.Name(), ErrHandshake, err)
		}
		_ = conn.SetReadDeadline(time.Time{})
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*websocket.Conn), nil
}

func (s *Stream) run(ctx context.Context, conn *websocket.Conn, ap *Applier, done chan struct{}) {
	defer close(done)
	defer metrics.FeedConnected.WithLabelValues(s.Name(), s.symbol).Set(0)
	defer s.connected.Store(false)

	for {
		err := s.read(ctx, conn, ap)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.connected.Store(false)
		metrics.FeedConnected.WithLabelValues(s.Name(), s.symbol).Set(0)
		s.log.Warn().Err(err).Str("symbol", s.symbol).Msg("connection lost, reconnecting")

		if conn = s.reconnect(ctx); conn == nil {
			return
		}
		s.setConn(conn)
		s.connected.Store(true)
		metrics.FeedConnected.WithLabelValues(s.Name(), s.symbol).Set(1)
	}
}

func (s *Stream) reconnect(ctx context.Context) *websocket.Conn {
	for attempt := 0; ; attempt++ {
		if err := s.opts.Backoff.Sleep(ctx, attempt); err != nil {
			return nil
		}
		conn, err := s.dial(ctx, s.symbol)
		if err == nil {
			metrics.FeedReconnectsTotal.WithLabelValues(s.Name(), "ok").Inc()
			s.log.Info().Str("symbol", s.symbol).Int("attempt", attempt+1).Msg("feed reconnected")
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		metrics.FeedReconnectsTotal.WithLabelValues(s.Name(), "failed").Inc()
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("reconnect failed")
	}
}

func (s *Stream) read(ctx context.Context, conn *websocket.Conn, ap *Applier) error {
	for ctx.Err() == nil {
		if s.opts.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		u, ok, err := s.proto.Decode(msg, s.symbol)
		switch {
		case err != nil:
			metrics.FeedMessagesTotal.WithLabelValues(s.Name(), "error").Inc()
			s.log.Debug().Err(err).Msg("undecodable message")
			continue
		case !ok:
			metrics.FeedMessagesTotal.WithLabelValues(s.Name(), "control").Inc()
			continue
		}
		metrics.FeedMessagesTotal.WithLabelValues(s.Name(), "update").Inc()
		added, cancelled := ap.Apply(u)
		s.log.Trace().Int("added", added).Int("cancelled", cancelled).Msg("update applied")
	}
	return ctx.Err()
}

func (s *Stream) setConn(c *websocket.Conn) {
	s.connMu.Lock()
	s.conn = c
	s.connMu.Unlock()
}

func (s *Stream) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}
