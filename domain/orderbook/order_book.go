package orderbook

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arithmax-research/TurboBook/infra/memory"
)

// Stats are lifetime counters of one book.
type Stats struct {
	Added          uint64
	Rejected       uint64
	Cancelled      uint64
	Trades         uint64
	TradedQuantity Quantity
}

type Option func(*OrderBook)

// WithInvariantChecks makes every mutation verify the book's structural
// invariants and panic on the first violation.
func WithInvariantChecks() Option {
	return func(b *OrderBook) { b.strict = true }
}

// WithTradeHandler registers fn to receive every trade. Handlers run after
// the book lock is released, in matching order, on the mutating goroutine.
func WithTradeHandler(fn func(Trade)) Option {
	return func(b *OrderBook) { b.handlers = append(b.handlers, fn) }
}

// OrderBook is a price-time priority limit order book for one symbol.
// Every mutation and every read goes through mu; matching runs to
// completion inside the same critical section as the mutation that
// triggered it, so readers never observe a crossed book.
type OrderBook struct {
	mu     sync.RWMutex
	symbol string

	bids  *levelTree
	asks  *levelTree
	index map[uint64]*entry
	pool  *memory.Pool[entry]

	arrivals uint64
	version  uint64
	stats    Stats

	strict   bool
	handlers []func(Trade)
}

func New(symbol string, opts ...Option) *OrderBook {
	b := &OrderBook{
		symbol: symbol,
		bids:   newLevelTree(),
		asks:   newLevelTree(),
		index:  make(map[uint64]*entry),
		pool:   memory.NewPool(func() *entry { return &entry{} }, (*entry).reset),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OrderBook) Symbol() string { return b.symbol }

// ---- commands ----

// AddOrder appends o to the tail of its price level and matches the book
// to a fixed point. Orders for another symbol leave the book untouched and
// return ErrSymbolMismatch.
func (b *OrderBook) AddOrder(o Order) ([]Trade, error) {
	if o.Symbol != b.symbol {
		b.reject()
		return nil, fmt.Errorf("%w: %q != %q", ErrSymbolMismatch, o.Symbol, b.symbol)
	}
	if err := o.Validate(); err != nil {
		b.reject()
		return nil, err
	}

	b.mu.Lock()
	if _, dup := b.index[o.ID]; dup {
		b.stats.Rejected++
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrDuplicateOrderID, o.ID)
	}

	e := b.pool.Get()
	e.Order = o
	b.arrivals++
	e.seq = b.arrivals
	b.tree(o.Side).Upsert(o.Price).enqueue(e)
	b.index[o.ID] = e
	b.stats.Added++
	b.version++

	trades := b.match()
	b.verify()
	b.mu.Unlock()

	b.emit(trades)
	return trades, nil
}

// CancelOrder removes the resting order with the given id from whichever
// side and level hold it. It reports whether an order was removed.
func (b *OrderBook) CancelOrder(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.index[id]
	if !ok {
		return false
	}
	b.release(b.tree(e.Side), e.level, e)
	b.stats.Cancelled++
	b.version++
	b.verify()
	return true
}

// match crosses the head bid against the head ask until the book is no
// longer crossed or one side is empty. Caller holds mu.
func (b *OrderBook) match() []Trade {
	var trades []Trade
	for {
		bid, ask := b.bids.Max(), b.asks.Min()
		if bid == nil || ask == nil || bid.Price < ask.Price {
			return trades
		}

		bo, ao := bid.head, ask.head
		qty := min(bo.Quantity, ao.Quantity)

		// the resting side sets the price
		price := ao.Price
		if bo.seq < ao.seq {
			price = bo.Price
		}

		bid.fill(bo, qty)
		ask.fill(ao, qty)
		b.stats.Trades++
		b.stats.TradedQuantity += qty

		trades = append(trades, Trade{
			Seq:         b.stats.Trades,
			Symbol:      b.symbol,
			BuyOrderID:  bo.ID,
			SellOrderID: ao.ID,
			Price:       price,
			Quantity:    qty,
			Timestamp:   uint64(time.Now().UnixMilli()),
		})

		if bo.Quantity == 0 {
			b.release(b.bids, bid, bo)
		}
		if ao.Quantity == 0 {
			b.release(b.asks, ask, ao)
		}
	}
}

// release unlinks e from lvl, drops the level if it emptied, then
// recycles the node. Caller holds mu.
func (b *OrderBook) release(tree *levelTree, lvl *PriceLevel, e *entry) {
	lvl.remove(e)
	delete(b.index, e.ID)
	if lvl.Empty() {
		tree.Delete(lvl.Price)
	}
	b.pool.Put(e)
}

func (b *OrderBook) tree(side Side) *levelTree {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) reject() {
	b.mu.Lock()
	b.stats.Rejected++
	b.mu.Unlock()
}

func (b *OrderBook) emit(trades []Trade) {
	for _, t := range trades {
		for _, h := range b.handlers {
			h(t)
		}
	}
}

// ---- queries ----

// BestBid returns the highest bid price, or 0 when there are no bids.
func (b *OrderBook) BestBid() Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lvl := b.bids.Max(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// BestAsk returns the lowest ask price, or 0 when there are no asks.
func (b *OrderBook) BestAsk() Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lvl := b.asks.Min(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// Top returns the best bid and ask read under one lock; a missing side is 0.
func (b *OrderBook) Top() (bid, ask Price) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lvl := b.bids.Max(); lvl != nil {
		bid = lvl.Price
	}
	if lvl := b.asks.Min(); lvl != nil {
		ask = lvl.Price
	}
	return bid, ask
}

// Spread returns bestAsk - bestBid, or 0 unless both sides are populated.
func (b *OrderBook) Spread() Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, ask := b.bids.Max(), b.asks.Min()
	if bid == nil || ask == nil {
		return 0
	}
	return ask.Price - bid.Price
}

func (b *OrderBook) MidPrice() float64 {
	return b.Snapshot().MidPrice()
}

// Bids returns every bid level, highest price first.
func (b *OrderBook) Bids() []Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return collect(b.bids, Buy, -1)
}

// Asks returns every ask level, lowest price first.
func (b *OrderBook) Asks() []Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return collect(b.asks, Sell, -1)
}

// Depth returns at most n levels per side.
func (b *OrderBook) Depth(n int) (bids, asks []Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return collect(b.bids, Buy, n), collect(b.asks, Sell, n)
}

// LevelOrders returns the resting orders at price on side in FIFO order.
func (b *OrderBook) LevelOrders(side Side, price Price) []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lvl := b.tree(side).Find(price); lvl != nil {
		return lvl.Orders()
	}
	return nil
}

// Order looks up a resting order by id.
func (b *OrderBook) Order(id uint64) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	return e.Order, true
}

// Len is the number of resting orders.
func (b *OrderBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

func (b *OrderBook) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// Snapshot copies both sides under one read lock.
func (b *OrderBook) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Symbol:  b.symbol,
		Version: b.version,
		TakenAt: time.Now(),
		Bids:    collect(b.bids, Buy, -1),
		Asks:    collect(b.asks, Sell, -1),
	}
}

// collect walks one side in priority order; n < 0 means every level.
func collect(t *levelTree, side Side, n int) []Level {
	size := t.Len()
	if n >= 0 && n < size {
		size = n
	}
	out := make([]Level, 0, size)
	visit := func(lvl *PriceLevel) bool {
		if len(out) == size {
			return false
		}
		out = append(out, lvl.level())
		return true
	}
	if side == Buy {
		t.Descend(visit)
	} else {
		t.Ascend(visit)
	}
	return out
}

func (b *OrderBook) String() string {
	s := b.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Order Book for %s\nBids:\n", s.Symbol)
	for _, l := range s.Bids {
		fmt.Fprintf(&sb, "  %s: %s\n", l.Price, l.Quantity)
	}
	sb.WriteString("Asks:\n")
	for _, l := range s.Asks {
		fmt.Fprintf(&sb, "  %s: %s\n", l.Price, l.Quantity)
	}
	return sb.String()
}

// ---- invariants ----

func (b *OrderBook) verify() {
	if !b.strict {
		return
	}
	if bid, ask := b.bids.Max(), b.asks.Min(); bid != nil && ask != nil && bid.Price >= ask.Price {
		panic(fmt.Sprintf("orderbook %s: crossed at rest (bid %s >= ask %s)", b.symbol, bid.Price, ask.Price))
	}
	resting := b.verifySide(b.bids, Buy) + b.verifySide(b.asks, Sell)
	if resting != len(b.index) {
		panic(fmt.Sprintf("orderbook %s: index holds %d orders, levels hold %d", b.symbol, len(b.index), resting))
	}
}

func (b *OrderBook) verifySide(t *levelTree, side Side) int {
	count := 0
	t.Ascend(func(lvl *PriceLevel) bool {
		if lvl.Empty() {
			panic(fmt.Sprintf("orderbook %s: empty %s level at %s", b.symbol, side, lvl.Price))
		}
		var total Quantity
		n := 0
		for e := lvl.head; e != nil; e = e.next {
			if e.Price != lvl.Price || e.Side != side || e.level != lvl {
				panic(fmt.Sprintf("orderbook %s: order %d misfiled at %s %s", b.symbol, e.ID, side, lvl.Price))
			}
			if e.Quantity <= 0 {
				panic(fmt.Sprintf("orderbook %s: order %d rests with quantity %s", b.symbol, e.ID, e.Quantity))
			}
			if b.index[e.ID] != e {
				panic(fmt.Sprintf("orderbook %s: order %d missing from index", b.symbol, e.ID))
			}
			total += e.Quantity
			n++
		}
		if total != lvl.totalQty || n != lvl.orderCount {
			panic(fmt.Sprintf("orderbook %s: level %s aggregates drifted", b.symbol, lvl.Price))
		}
		count += n
		return true
	})
	return count
}
