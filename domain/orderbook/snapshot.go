package orderbook

import "time"

// Level is the aggregate view of one price level.
type Level struct {
	Price    Price
	Quantity Quantity
	Orders   int
}

// Snapshot is an immutable copy of both sides taken under a single read
// lock. Bids are ordered best (highest) first, asks best (lowest) first.
type Snapshot struct {
	Symbol  string
	Version uint64
	TakenAt time.Time
	Bids    []Level
	Asks    []Level
}

// Side returns the levels of one side in priority order.
func (s Snapshot) Side(side Side) []Level {
	if side == Buy {
		return s.Bids
	}
	return s.Asks
}

// BestBid returns 0 when there are no bids.
func (s Snapshot) BestBid() Price {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns 0 when there are no asks.
func (s Snapshot) BestAsk() Price {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// Spread is bestAsk - bestBid, or 0 unless both sides are populated.
func (s Snapshot) Spread() Price {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price - s.Bids[0].Price
}

// MidPrice is 0 unless both sides are populated.
func (s Snapshot) MidPrice() float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return (s.Bids[0].Price.Float64() + s.Asks[0].Price.Float64()) / 2
}

// TotalQuantity sums resting quantity across every level of one side.
func (s Snapshot) TotalQuantity(side Side) Quantity {
	var total Quantity
	for _, l := range s.Side(side) {
		total += l.Quantity
	}
	return total
}

func (s Snapshot) Empty() bool { return len(s.Bids) == 0 && len(s.Asks) == 0 }
