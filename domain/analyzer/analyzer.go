package analyzer

import (
	"time"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

// Source is anything that can produce a consistent book snapshot.
// *orderbook.OrderBook satisfies it.
type Source interface {
	Snapshot() orderbook.Snapshot
}

// Params are the model constants of the derived metrics.
type Params struct {
	// Depth is the number of levels used by Report.
	Depth int
	// UnitImpact scales the market impact factor.
	UnitImpact float64
	// UnitInventoryAdjustment is the quote skew per unit of inventory.
	UnitInventoryAdjustment float64
	// ConfidenceVolume is the top-of-book volume at which quote confidence saturates.
	ConfidenceVolume float64
	// LiquidityVolume is the per-side volume at which the liquidity volume score saturates.
	LiquidityVolume float64
	// VelocityWindow is the unit window resting volume is spread over.
	VelocityWindow time.Duration
	MomentumShort  int
	MomentumMedium int
	// ProbeSize and RiskTolerance parameterise the impact and quote
	// sections of Report.
	ProbeSize     float64
	RiskTolerance float64
}

func DefaultParams() Params {
	return Params{
		Depth:                   10,
		UnitImpact:              0.001,
		UnitInventoryAdjustment: 0.01,
		ConfidenceVolume:        100,
		LiquidityVolume:         1000,
		VelocityWindow:          time.Second,
		MomentumShort:           5,
		MomentumMedium:          10,
		ProbeSize:               10,
		RiskTolerance:           0.5,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Depth <= 0 {
		p.Depth = d.Depth
	}
	if p.UnitImpact <= 0 {
		p.UnitImpact = d.UnitImpact
	}
	if p.UnitInventoryAdjustment <= 0 {
		p.UnitInventoryAdjustment = d.UnitInventoryAdjustment
	}
	if p.ConfidenceVolume <= 0 {
		p.ConfidenceVolume = d.ConfidenceVolume
	}
	if p.LiquidityVolume <= 0 {
		p.LiquidityVolume = d.LiquidityVolume
	}
	if p.VelocityWindow <= 0 {
		p.VelocityWindow = d.VelocityWindow
	}
	if p.MomentumShort <= 1 {
		p.MomentumShort = d.MomentumShort
	}
	if p.MomentumMedium <= p.MomentumShort {
		p.MomentumMedium = max(d.MomentumMedium, p.MomentumShort+1)
	}
	if p.ProbeSize <= 0 {
		p.ProbeSize = d.ProbeSize
	}
	if p.RiskTolerance < 0 || p.RiskTolerance > 1 {
		p.RiskTolerance = d.RiskTolerance
	}
	return p
}

type Option func(*Analyzer)

func WithParams(p Params) Option {
	return func(a *Analyzer) { a.params = p.withDefaults() }
}

// WithEventLog attaches the history behind the update-rate, quote-life and
// cancellation metrics.
func WithEventLog(log EventLog) Option {
	return func(a *Analyzer) { a.log = log }
}

// Analyzer is read-only; it keeps no state beyond its source and settings.
type Analyzer struct {
	src    Source
	params Params
	log    EventLog
}

func New(src Source, opts ...Option) *Analyzer {
	a := &Analyzer{src: src, params: DefaultParams()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Params() Params { return a.params }

// Of binds the analyzer's settings to a snapshot the caller already holds.
func (a *Analyzer) Of(s orderbook.Snapshot) View {
	return newView(s, a.params, a.log)
}

// Now takes a fresh snapshot from the source.
func (a *Analyzer) Now() View { return a.Of(a.src.Snapshot()) }

// RequireHistory returns ErrNoHistory when no EventLog is attached.
func (a *Analyzer) RequireHistory() error {
	if a.log == nil {
		return ErrNoHistory
	}
	return nil
}

func (a *Analyzer) DetectImbalances(levels int) []Imbalance {
	return a.Now().DetectImbalances(levels)
}

func (a *Analyzer) VWAP(side orderbook.Side, levels int) float64 {
	return a.Now().VWAP(side, levels)
}

func (a *Analyzer) OrderFlowImbalance() Ratio { return a.Now().OrderFlowImbalance() }

func (a *Analyzer) DepthProfile(levels int) []DepthLevel {
	return a.Now().DepthProfile(levels)
}

func (a *Analyzer) BookSlope(side orderbook.Side, levels int) float64 {
	return a.Now().BookSlope(side, levels)
}

func (a *Analyzer) Spread() SpreadAnalysis          { return a.Now().Spread() }
func (a *Analyzer) QuoteStability() QuoteStability  { return a.Now().QuoteStability() }
func (a *Analyzer) OrderFlowVelocity() FlowVelocity { return a.Now().OrderFlowVelocity() }
func (a *Analyzer) PriceMomentum() Momentum         { return a.Now().PriceMomentum() }
func (a *Analyzer) Volatility() Volatility          { return a.Now().Volatility() }

func (a *Analyzer) MarketImpact(orderSize float64, side orderbook.Side) Impact {
	return a.Now().MarketImpact(orderSize, side)
}

func (a *Analyzer) OptimalQuotes(inventory, riskTolerance float64) Quotes {
	return a.Now().OptimalQuotes(inventory, riskTolerance)
}

func (a *Analyzer) LiquidityScore() float64 { return a.Now().LiquidityScore() }

// Report computes every metric from a single snapshot.
func (a *Analyzer) Report() Report { return a.Now().Report() }
