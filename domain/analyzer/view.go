package analyzer

import (
	"math"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

const (
	// NoData is returned where a metric has nothing to measure.
	NoData = 0.0
	// Unbounded stands in for x/0 with x > 0. Results carrying it also set
	// an explicit flag.
	Unbounded = math.MaxFloat64
)

// point is one level converted to float64 at the analytics boundary.
type point struct {
	price  float64
	volume float64
}

// View evaluates metrics against one fixed snapshot.
type View struct {
	snap   orderbook.Snapshot
	params Params
	log    EventLog

	bids []point
	asks []point
}

func newView(s orderbook.Snapshot, p Params, log EventLog) View {
	return View{snap: s, params: p, log: log, bids: points(s.Bids), asks: points(s.Asks)}
}

func points(levels []orderbook.Level) []point {
	out := make([]point, len(levels))
	for i, l := range levels {
		out[i] = point{price: l.Price.Float64(), volume: l.Quantity.Float64()}
	}
	return out
}

func (v View) Snapshot() orderbook.Snapshot { return v.snap }

func (v View) side(s orderbook.Side) []point {
	if s == orderbook.Buy {
		return v.bids
	}
	return v.asks
}

// top returns at most n levels; n <= 0 means none.
func top(pts []point, n int) []point {
	if n <= 0 {
		return nil
	}
	return pts[:min(n, len(pts))]
}

func (v View) twoSided() bool { return len(v.bids) > 0 && len(v.asks) > 0 }

func (v View) mid() float64 {
	if !v.twoSided() {
		return NoData
	}
	return (v.bids[0].price + v.asks[0].price) / 2
}

func volume(pts []point) float64 {
	var sum float64
	for _, p := range pts {
		sum += p.volume
	}
	return sum
}

// Ratio is num/den with the zero-denominator cases spelled out.
type Ratio struct {
	Value     float64 `json:"value"`
	Unbounded bool    `json:"unbounded"`
}

func ratio(num, den float64) Ratio {
	switch {
	case den != 0:
		return Ratio{Value: finite(num / den)}
	case num > 0:
		return Ratio{Value: Unbounded, Unbounded: true}
	default:
		return Ratio{Value: NoData}
	}
}

// safeDiv returns NoData for a zero denominator.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return NoData
	}
	return finite(num / den)
}

func finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return NoData
	case math.IsInf(x, 1):
		return Unbounded
	case math.IsInf(x, -1):
		return -Unbounded
	}
	return x
}

func clamp01(x float64) float64 { return math.Max(0, math.Min(1, x)) }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return NoData
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return NoData
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return finite(math.Sqrt(ss / float64(len(xs))))
}

// olsSlope fits ys against 0, 1, 2, ... and returns the slope.
func olsSlope(ys []float64) float64 {
	n := float64(len(ys))
	if len(ys) < 2 {
		return NoData
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	return safeDiv(n*sxy-sx*sy, n*sxx-sx*sx)
}

func volumes(pts []point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.volume
	}
	return out
}
