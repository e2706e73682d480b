// Package simulator is a Feed that generates random limit orders.
package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/feed"
	"github.com/arithmax-research/TurboBook/infra/sequence"
)

type Config struct {
	// Prices are uniform in [BasePrice-Spread, BasePrice+Spread], rounded
	// to Tick.
	BasePrice float64
	Spread    float64
	Tick      float64
	// Quantities are uniform in [1, MaxQuantity].
	MaxQuantity   float64
	RatePerSecond float64
	// CancelRatio is the chance that a step cancels one of the simulator's
	// earlier orders instead of placing a new one.
	CancelRatio float64
	Seed        uint64
}

func DefaultConfig() Config {
	return Config{
		BasePrice:     100,
		Spread:        10,
		Tick:          0.01,
		MaxQuantity:   1000,
		RatePerSecond: 10,
	}
}

type Simulator struct {
	cfg Config
	seq *sequence.Sequencer
	log zerolog.Logger

	mu     sync.Mutex
	sink   feed.Sink
	symbol string
	rng    *rand.Rand
	open   openOrders
	cancel context.CancelFunc
	done   chan struct{}

	connected atomic.Bool
	generated atomic.Uint64
}

func New(cfg Config, seq *sequence.Sequencer, log zerolog.Logger) *Simulator {
	d := DefaultConfig()
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = d.BasePrice
	}
	if cfg.Spread <= 0 || cfg.Spread >= cfg.BasePrice {
		cfg.Spread = math.Min(d.Spread, cfg.BasePrice/2)
	}
	if cfg.Tick <= 0 {
		cfg.Tick = d.Tick
	}
	if cfg.MaxQuantity < 1 {
		cfg.MaxQuantity = d.MaxQuantity
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = d.RatePerSecond
	}
	if seq == nil {
		seq = sequence.New(0)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulator{
		cfg: cfg,
		seq: seq,
		log: log.With().Str("feed", "simulator").Logger(),
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) Attach(sink feed.Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Simulator) IsConnected() bool { return s.connected.Load() }

// Generated is the number of steps taken so far.
func (s *Simulator) Generated() uint64 { return s.generated.Load() }

// Connect starts generating orders for symbol at the configured rate.
func (s *Simulator) Connect(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return feed.ErrAlreadyConnected
	}
	if s.sink == nil {
		return feed.ErrNotAttached
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.symbol = symbol
	s.cancel = cancel
	s.done = make(chan struct{})
	s.connected.Store(true)
	go s.run(ctx, s.done)
	s.log.Info().Str("symbol", symbol).Float64("rate", s.cfg.RatePerSecond).Msg("simulator started")
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return feed.ErrNotConnected
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.done, s.cancel = nil, nil
	s.mu.Unlock()
	s.log.Info().Uint64("generated", s.Generated()).Msg("simulator stopped")
	return nil
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.connected.Store(false)
	lim := rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		s.Step()
	}
}

// Step places or cancels one order synchronously.
func (s *Simulator) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		return
	}
	s.generated.Add(1)

	if s.open.Len() > 0 && s.rng.Float64() < s.cfg.CancelRatio {
		id := s.open.ids[s.rng.IntN(s.open.Len())]
		s.sink.CancelOrder(id)
		s.open.remove(id)
		return
	}

	symbol := s.symbol
	if symbol == "" {
		symbol = s.sink.Symbol()
	}
	o := orderbook.NewOrder(s.seq.Next(), s.side(), orderbook.Limit, s.price(), s.quantity(), symbol)
	trades, err := s.sink.AddOrder(o)
	if err != nil {
		s.log.Debug().Err(err).Uint64("id", o.ID).Msg("order rejected")
		return
	}
	s.open.add(o.ID, o.Quantity)
	for _, t := range trades {
		s.open.fill(t.BuyOrderID, t.Quantity)
		s.open.fill(t.SellOrderID, t.Quantity)
	}
	s.open.trim(maxOpen)
}

// Open is the number of the simulator's orders it still considers resting.
func (s *Simulator) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open.Len()
}

// maxOpen bounds the cancel candidates when other writers fill the
// simulator's orders without it seeing the trades.
const maxOpen = 1 << 14

// openOrders tracks remaining quantity per id with O(1) random pick and
// removal.
type openOrders struct {
	ids  []uint64
	pos  map[uint64]int
	left map[uint64]orderbook.Quantity
}

func (o *openOrders) Len() int { return len(o.ids) }

func (o *openOrders) add(id uint64, qty orderbook.Quantity) {
	if o.pos == nil {
		o.pos = make(map[uint64]int)
		o.left = make(map[uint64]orderbook.Quantity)
	}
	o.pos[id] = len(o.ids)
	o.left[id] = qty
	o.ids = append(o.ids, id)
}

func (o *openOrders) fill(id uint64, qty orderbook.Quantity) {
	left, ok := o.left[id]
	if !ok {
		return
	}
	if left -= qty; left > 0 {
		o.left[id] = left
		return
	}
	o.remove(id)
}

func (o *openOrders) remove(id uint64) {
	i, ok := o.pos[id]
	if !ok {
		return
	}
	last := o.ids[len(o.ids)-1]
	o.ids[i] = last
	o.pos[last] = i
	o.ids = o.ids[:len(o.ids)-1]
	delete(o.pos, id)
	delete(o.left, id)
}

// trim drops arbitrary entries beyond n.
func (o *openOrders) trim(n int) {
	for len(o.ids) > n {
		o.remove(o.ids[0])
	}
}

func (s *Simulator) side() orderbook.Side {
	if s.rng.IntN(2) == 0 {
		return orderbook.Buy
	}
	return orderbook.Sell
}

func (s *Simulator) price() orderbook.Price {
	lo := s.cfg.BasePrice - s.cfg.Spread
	p := lo + s.rng.Float64()*2*s.cfg.Spread
	p = math.Max(math.Round(p/s.cfg.Tick)*s.cfg.Tick, s.cfg.Tick)
	return orderbook.PriceFromFloat(p)
}

func (s *Simulator) quantity() orderbook.Quantity {
	q := 1 + s.rng.Float64()*(s.cfg.MaxQuantity-1)
	return orderbook.QuantityFromFloat(math.Round(q*100) / 100)
}
