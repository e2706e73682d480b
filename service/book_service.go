package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/infra/metrics"
	"github.com/arithmax-research/TurboBook/infra/sequence"
)

// TradePublisher receives every trade a book produces.
type TradePublisher interface {
	PublishTrade(ctx context.Context, t orderbook.Trade) error
}

type BookOptions struct {
	Params analyzer.Params
	Trades TradePublisher
	Logger zerolog.Logger
	// Strict enables the book's invariant checks.
	Strict bool
}

type BookService struct {
	book     *orderbook.OrderBook
	seq      *sequence.Sequencer
	analyzer *analyzer.Analyzer
	activity *activity
	trades   TradePublisher
	log      zerolog.Logger
}

func NewBookService(symbol string, opts BookOptions) *BookService {
	s := &BookService{
		seq:    sequence.New(0),
		trades: opts.Trades,
		log:    opts.Logger.With().Str("component", "book").Str("symbol", symbol).Logger(),
	}
	bookOpts := []orderbook.Option{orderbook.WithTradeHandler(s.onTrade)}
	if opts.Strict {
		bookOpts = append(bookOpts, orderbook.WithInvariantChecks())
	}
	s.book = orderbook.New(symbol, bookOpts...)
	s.activity = newActivity(s.book, time.Now)
	s.analyzer = analyzer.New(s.book, analyzer.WithParams(opts.Params), analyzer.WithEventLog(s.activity))
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// AddOrder submits an order that already carries its id.
func (s *BookService) AddOrder(o orderbook.Order) ([]orderbook.Trade, error) {
	start := time.Now()
	trades, err := s.book.AddOrder(o)
	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(s.Symbol(), rejectReason(err)).Inc()
		return nil, err
	}
	metrics.AddLatencySeconds.WithLabelValues(s.Symbol()).Observe(time.Since(start).Seconds())
	metrics.OrdersAddedTotal.WithLabelValues(s.Symbol(), o.Side.String()).Inc()
	s.observe()
	return trades, nil
}

// PlaceOrder assigns the next id from the book's sequencer and submits.
func (s *BookService) PlaceOrder(side orderbook.Side, otype orderbook.OrderType, price orderbook.Price, qty orderbook.Quantity) (uint64, []orderbook.Trade, error) {
	id := s.seq.Next()
	trades, err := s.AddOrder(orderbook.NewOrder(id, side, otype, price, qty, s.Symbol()))
	return id, trades, err
}

func (s *BookService) CancelOrder(id uint64) bool {
	if !s.book.CancelOrder(id) {
		return false
	}
	metrics.OrdersCancelledTotal.WithLabelValues(s.Symbol()).Inc()
	s.observe()
	return true
}

// onTrade runs on the mutating goroutine after the book lock is released.
func (s *BookService) onTrade(t orderbook.Trade) {
	metrics.TradesTotal.WithLabelValues(t.Symbol).Inc()
	metrics.TradedQuantity.WithLabelValues(t.Symbol).Add(t.Quantity.Float64())
	if s.trades == nil {
		return
	}
	if err := s.trades.PublishTrade(context.Background(), t); err != nil {
		metrics.PublishErrorsTotal.WithLabelValues("trades").Inc()
		s.log.Warn().Err(err).Uint64("trade", t.Seq).Msg("trade publish failed")
	}
}

func (s *BookService) observe() {
	s.activity.observe(s.book.Top())
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, orderbook.ErrSymbolMismatch):
		return "symbol"
	case errors.Is(err, orderbook.ErrDuplicateOrderID):
		return "duplicate"
	default:
		return "invalid"
	}
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *BookService) Symbol() string { return s.book.Symbol() }

// Book exposes the underlying book for read access.
func (s *BookService) Book() *orderbook.OrderBook { return s.book }

// Sequencer is the id source shared by every feed attached to this book.
func (s *BookService) Sequencer() *sequence.Sequencer { return s.seq }

func (s *BookService) Snapshot() orderbook.Snapshot { return s.book.Snapshot() }

func (s *BookService) Analyzer() *analyzer.Analyzer { return s.analyzer }

// Report computes the full analytics report and refreshes the book gauges.
func (s *BookService) Report() analyzer.Report {
	r := s.analyzer.Report()
	metrics.BookLevels.WithLabelValues(r.Symbol, "bid").Set(float64(r.BidLevels))
	metrics.BookLevels.WithLabelValues(r.Symbol, "ask").Set(float64(r.AskLevels))
	metrics.SpreadGauge.WithLabelValues(r.Symbol).Set(r.Spread.Absolute)
	metrics.LiquidityScore.WithLabelValues(r.Symbol).Set(r.Liquidity)
	return r
}
