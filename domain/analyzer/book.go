package analyzer

import (
	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

// Imbalance pairs the i-th bid level with the i-th ask level by position.
type Imbalance struct {
	Level     int     `json:"level"`
	Price     float64 `json:"price"`
	BidVolume float64 `json:"bid_volume"`
	AskVolume float64 `json:"ask_volume"`
	Ratio     float64 `json:"ratio"`
	Unbounded bool    `json:"unbounded"`
}

// DetectImbalances emits min(levels, max(bid levels, ask levels)) entries.
// A missing level on one side counts as zero volume. Price is the bid
// price when the bid level exists, otherwise the ask price.
func (v View) DetectImbalances(levels int) []Imbalance {
	n := min(levels, max(len(v.bids), len(v.asks)))
	if n <= 0 {
		return nil
	}
	out := make([]Imbalance, 0, n)
	for i := 0; i < n; i++ {
		im := Imbalance{Level: i}
		if i < len(v.bids) {
			im.Price = v.bids[i].price
			im.BidVolume = v.bids[i].volume
		}
		if i < len(v.asks) {
			if i >= len(v.bids) {
				im.Price = v.asks[i].price
			}
			im.AskVolume = v.asks[i].volume
		}
		r := ratio(im.BidVolume, im.AskVolume)
		im.Ratio, im.Unbounded = r.Value, r.Unbounded
		out = append(out, im)
	}
	return out
}

// VWAP is sum(price*qty)/sum(qty) over the top levels of side, or NoData.
func (v View) VWAP(side orderbook.Side, levels int) float64 {
	var pq, q float64
	for _, p := range top(v.side(side), levels) {
		pq += p.price * p.volume
		q += p.volume
	}
	return safeDiv(pq, q)
}

// OrderFlowImbalance is total bid volume over total ask volume.
func (v View) OrderFlowImbalance() Ratio {
	return ratio(volume(v.bids), volume(v.asks))
}

// DepthLevel holds cumulative volume down to one positional level.
type DepthLevel struct {
	Level     int     `json:"level"`
	CumBid    float64 `json:"cum_bid"`
	CumAsk    float64 `json:"cum_ask"`
	Imbalance float64 `json:"imbalance"`
}

// DepthProfile accumulates both sides positionally. Imbalance is
// (cumBid-cumAsk)/(cumBid+cumAsk), NoData when both are zero.
func (v View) DepthProfile(levels int) []DepthLevel {
	n := min(levels, max(len(v.bids), len(v.asks)))
	if n <= 0 {
		return nil
	}
	out := make([]DepthLevel, 0, n)
	var cb, ca float64
	for i := 0; i < n; i++ {
		if i < len(v.bids) {
			cb += v.bids[i].volume
		}
		if i < len(v.asks) {
			ca += v.asks[i].volume
		}
		out = append(out, DepthLevel{
			Level:     i,
			CumBid:    cb,
			CumAsk:    ca,
			Imbalance: safeDiv(cb-ca, cb+ca),
		})
	}
	return out
}

// BookSlope is the least-squares slope of volume against level index over
// the top levels of side. It needs at least two levels.
func (v View) BookSlope(side orderbook.Side, levels int) float64 {
	return olsSlope(volumes(top(v.side(side), levels)))
}

// SpreadAnalysis reports the spread in absolute and relative terms.
// Effective and Realized need a trade tape; they are approximated by the
// relative and absolute spread respectively.
type SpreadAnalysis struct {
	Absolute  float64 `json:"absolute"`
	Relative  float64 `json:"relative"`
	Effective float64 `json:"effective"`
	Realized  float64 `json:"realized"`
	Mid       float64 `json:"mid"`
}

func (v View) Spread() SpreadAnalysis {
	if !v.twoSided() {
		return SpreadAnalysis{}
	}
	abs := v.asks[0].price - v.bids[0].price
	mid := v.mid()
	rel := safeDiv(abs, mid)
	return SpreadAnalysis{
		Absolute:  abs,
		Relative:  rel,
		Effective: rel,
		Realized:  abs,
		Mid:       mid,
	}
}
