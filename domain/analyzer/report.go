package analyzer

import (
	"time"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
)

// Report bundles every metric computed from one snapshot.
type Report struct {
	Symbol  string    `json:"symbol"`
	Version uint64    `json:"version"`
	TakenAt time.Time `json:"taken_at"`

	BestBid   float64 `json:"best_bid"`
	BestAsk   float64 `json:"best_ask"`
	Mid       float64 `json:"mid"`
	BidLevels int     `json:"bid_levels"`
	AskLevels int     `json:"ask_levels"`

	Imbalances    []Imbalance    `json:"imbalances"`
	BidVWAP       float64        `json:"bid_vwap"`
	AskVWAP       float64        `json:"ask_vwap"`
	FlowImbalance Ratio          `json:"flow_imbalance"`
	Depth         []DepthLevel   `json:"depth"`
	BidSlope      float64        `json:"bid_slope"`
	AskSlope      float64        `json:"ask_slope"`
	Spread        SpreadAnalysis `json:"spread"`
	Stability     QuoteStability `json:"stability"`
	Velocity      FlowVelocity   `json:"velocity"`
	Momentum      Momentum       `json:"momentum"`
	Volatility    Volatility     `json:"volatility"`
	BuyImpact     Impact         `json:"buy_impact"`
	SellImpact    Impact         `json:"sell_impact"`
	Quotes        Quotes         `json:"quotes"`
	Liquidity     float64        `json:"liquidity"`
}

func (v View) Report() Report {
	p := v.params
	return Report{
		Symbol:    v.snap.Symbol,
		Version:   v.snap.Version,
		TakenAt:   v.snap.TakenAt,
		BestBid:   v.snap.BestBid().Float64(),
		BestAsk:   v.snap.BestAsk().Float64(),
		Mid:       v.mid(),
		BidLevels: len(v.bids),
		AskLevels: len(v.asks),

		Imbalances:    v.DetectImbalances(p.Depth),
		BidVWAP:       v.VWAP(orderbook.Buy, p.Depth),
		AskVWAP:       v.VWAP(orderbook.Sell, p.Depth),
		FlowImbalance: v.OrderFlowImbalance(),
		Depth:         v.DepthProfile(p.Depth),
		BidSlope:      v.BookSlope(orderbook.Buy, p.Depth),
		AskSlope:      v.BookSlope(orderbook.Sell, p.Depth),
		Spread:        v.Spread(),
		Stability:     v.QuoteStability(),
		Velocity:      v.OrderFlowVelocity(),
		Momentum:      v.PriceMomentum(),
		Volatility:    v.Volatility(),
		BuyImpact:     v.MarketImpact(p.ProbeSize, orderbook.Buy),
		SellImpact:    v.MarketImpact(p.ProbeSize, orderbook.Sell),
		Quotes:        v.OptimalQuotes(0, p.RiskTolerance),
		Liquidity:     v.LiquidityScore(),
	}
}
