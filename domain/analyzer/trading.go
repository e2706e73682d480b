package analyzer

import (
	"math"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

// Impact estimates what an aggressive order of OrderSize on Side would do
// to the opposing side of the book.
type Impact struct {
	Side           string  `json:"side"`
	OrderSize      float64 `json:"order_size"`
	DepthWalked    float64 `json:"depth_walked"`
	LevelsConsumed int     `json:"levels_consumed"`
	Exhausted      bool    `json:"exhausted"`
	// Factor is min(OrderSize/DepthWalked, 1); Impact is Factor*UnitImpact.
	Factor       float64 `json:"factor"`
	Impact       float64 `json:"impact"`
	AveragePrice float64 `json:"average_price"`
	// Slippage is the distance from the opposing top of book to
	// AveragePrice, positive when the fill is worse.
	Slippage float64 `json:"slippage"`
}

// MarketImpact walks the side opposite to side, accumulating volume until
// orderSize is covered or the side runs out. An empty opposing side gives
// the maximum factor of 1.
func (v View) MarketImpact(orderSize float64, side orderbook.Side) Impact {
	im := Impact{Side: side.String(), OrderSize: orderSize}
	if orderSize <= 0 {
		return im
	}
	levels := v.side(side.Opposite())
	if len(levels) == 0 {
		im.Exhausted = true
		im.Factor = 1
		im.Impact = v.params.UnitImpact
		return im
	}

	var notional, filled float64
	for _, l := range levels {
		if im.DepthWalked >= orderSize {
			break
		}
		take := math.Min(l.volume, orderSize-filled)
		notional += take * l.price
		filled += take
		im.DepthWalked += l.volume
		im.LevelsConsumed++
	}
	im.Exhausted = im.DepthWalked < orderSize
	im.Factor = math.Min(safeDiv(orderSize, im.DepthWalked), 1)
	im.Impact = im.Factor * v.params.UnitImpact
	im.AveragePrice = safeDiv(notional, filled)

	best := levels[0].price
	if side == orderbook.Buy {
		im.Slippage = im.AveragePrice - best
	} else {
		im.Slippage = best - im.AveragePrice
	}
	return im
}

// Quotes are suggested two-sided quotes around the mid.
type Quotes struct {
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	Mid           float64 `json:"mid"`
	HalfSpread    float64 `json:"half_spread"`
	InventorySkew float64 `json:"inventory_skew"`
	Confidence    float64 `json:"confidence"`
}

// OptimalQuotes widens the current spread as riskTolerance falls and skews
// both quotes down by inventory*UnitInventoryAdjustment, so a long position
// quotes lower. riskTolerance is clamped to [0,1]. Empty sides give zero
// quotes.
func (v View) OptimalQuotes(inventory, riskTolerance float64) Quotes {
	if !v.twoSided() {
		return Quotes{}
	}
	rt := clamp01(riskTolerance)
	mid := v.mid()
	base := v.asks[0].price - v.bids[0].price
	half := base/2 + (1-rt)*base*0.5
	skew := inventory * v.params.UnitInventoryAdjustment

	return Quotes{
		Bid:           finite(mid - half - skew),
		Ask:           finite(mid + half - skew),
		Mid:           mid,
		HalfSpread:    half,
		InventorySkew: finite(skew),
		Confidence:    clamp01(safeDiv(math.Min(v.bids[0].volume, v.asks[0].volume), v.params.ConfidenceVolume)),
	}
}

// LiquidityScore averages a volume score, min(total bid, total ask)
// saturating at LiquidityVolume, with a spread score 1-min(relative*100, 1).
// It is 0 when either side is empty.
func (v View) LiquidityScore() float64 {
	if !v.twoSided() {
		return NoData
	}
	volScore := math.Min(safeDiv(math.Min(volume(v.bids), volume(v.asks)), v.params.LiquidityVolume), 1)
	spreadScore := 1 - math.Min(v.Spread().Relative*100, 1)
	return (volScore + spreadScore) / 2
}
