package service

import (
	"sync"
	"time"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

// activity counts top-of-book changes and reads cancel counts from the
// book's stats. It answers the analyzer's history questions without
// storing a tape.
type activity struct {
	book *orderbook.OrderBook
	now  func() time.Time

	mu       sync.Mutex
	started  time.Time
	bid, ask orderbook.Price
	since    time.Time
	changes  uint64
	lived    time.Duration
	ended    uint64
}

func newActivity(book *orderbook.OrderBook, now func() time.Time) *activity {
	t := now()
	return &activity{book: book, now: now, started: t, since: t}
}

func (a *activity) observe(bid, ask orderbook.Price) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bid == a.bid && ask == a.ask {
		return
	}
	t := a.now()
	if a.changes > 0 {
		a.lived += t.Sub(a.since)
		a.ended++
	}
	a.bid, a.ask, a.since = bid, ask, t
	a.changes++
}

func (a *activity) QuoteUpdateRate() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	elapsed := a.now().Sub(a.started).Seconds()
	if a.changes == 0 || elapsed <= 0 {
		return 0, false
	}
	return float64(a.changes) / elapsed, true
}

func (a *activity) MeanQuoteLife() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended == 0 {
		return 0, false
	}
	return a.lived / time.Duration(a.ended), true
}

func (a *activity) CancellationRatio() (float64, bool) {
	st := a.book.Stats()
	if st.Added == 0 {
		return 0, false
	}
	return float64(st.Cancelled) / float64(st.Added), true
}
