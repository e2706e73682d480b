package analyzer

// QuoteStability measures how evenly volume rests across levels.
// QuoteLife is in seconds.
type QuoteStability struct {
	BidVolumeStdDev float64  `json:"bid_volume_std_dev"`
	AskVolumeStdDev float64  `json:"ask_volume_std_dev"`
	UpdateRate      Estimate `json:"update_rate"`
	QuoteLife       Estimate `json:"quote_life"`
}

func (v View) QuoteStability() QuoteStability {
	return QuoteStability{
		BidVolumeStdDev: stdDev(volumes(v.bids)),
		AskVolumeStdDev: stdDev(volumes(v.asks)),
		UpdateRate:      v.updateRate(),
		QuoteLife:       v.quoteLife(),
	}
}

// FlowVelocity treats resting volume as if it arrived over one
// VelocityWindow. Without timestamped flow this is an approximation of the
// real arrival rate.
type FlowVelocity struct {
	BidVelocity       float64  `json:"bid_velocity"`
	AskVelocity       float64  `json:"ask_velocity"`
	NetVelocity       float64  `json:"net_velocity"`
	CancellationRatio Estimate `json:"cancellation_ratio"`
}

func (v View) OrderFlowVelocity() FlowVelocity {
	window := v.params.VelocityWindow.Seconds()
	bid := safeDiv(volume(v.bids), window)
	ask := safeDiv(volume(v.asks), window)
	return FlowVelocity{
		BidVelocity:       bid,
		AskVelocity:       ask,
		NetVelocity:       bid - ask,
		CancellationRatio: v.cancellationRatio(),
	}
}

// Momentum compares the best bid with deeper bid levels. HasShort and
// HasMedium tell a flat book apart from one too shallow to measure.
type Momentum struct {
	Short        float64 `json:"short"`
	Medium       float64 `json:"medium"`
	Acceleration float64 `json:"acceleration"`
	HasShort     bool    `json:"has_short"`
	HasMedium    bool    `json:"has_medium"`
}

// PriceMomentum is all zero with fewer than MomentumShort bid levels. With
// fewer than MomentumMedium levels only Short is set.
func (v View) PriceMomentum() Momentum {
	short, medium := v.params.MomentumShort, v.params.MomentumMedium
	if len(v.bids) < short {
		return Momentum{}
	}
	best := v.bids[0].price
	m := Momentum{Short: best - v.bids[short-1].price, HasShort: true}
	if len(v.bids) < medium {
		return m
	}
	m.Medium = best - v.bids[medium-1].price
	m.Acceleration = m.Medium - m.Short
	m.HasMedium = true
	return m
}

// Volatility holds three book-shape proxies. Implied is the relative
// spread scaled by 100.
type Volatility struct {
	Realized  float64 `json:"realized"`
	Implied   float64 `json:"implied"`
	OrderBook float64 `json:"order_book"`
}

func (v View) Volatility() Volatility {
	var diffs []float64
	for i := 1; i < len(v.bids); i++ {
		diffs = append(diffs, v.bids[i].price-v.bids[i-1].price)
	}
	all := append(volumes(v.bids), volumes(v.asks)...)
	return Volatility{
		Realized:  stdDev(diffs),
		Implied:   finite(v.Spread().Relative * 100),
		OrderBook: stdDev(all),
	}
}
