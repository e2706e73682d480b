package analyzer

import (
	"errors"
	"time"
)

// ErrNoHistory means a metric needs an EventLog and none is attached.
var ErrNoHistory = errors.New("analyzer: no event history attached")

// EventLog supplies metrics that a single snapshot cannot answer. Each
// method reports false when it has not observed enough events yet.
type EventLog interface {
	// QuoteUpdateRate is top-of-book changes per second.
	QuoteUpdateRate() (float64, bool)
	// MeanQuoteLife is the mean time a top-of-book quote survived.
	MeanQuoteLife() (time.Duration, bool)
	// CancellationRatio is cancels over accepted orders.
	CancellationRatio() (float64, bool)
}

// Estimate is a metric that may be unavailable.
type Estimate struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

func estimate(v float64, ok bool) Estimate {
	if !ok {
		return Estimate{}
	}
	return Estimate{Value: finite(v), Valid: true}
}

func (v View) updateRate() Estimate {
	if v.log == nil {
		return Estimate{}
	}
	return estimate(v.log.QuoteUpdateRate())
}

func (v View) quoteLife() Estimate {
	if v.log == nil {
		return Estimate{}
	}
	d, ok := v.log.MeanQuoteLife()
	return estimate(d.Seconds(), ok)
}

func (v View) cancellationRatio() Estimate {
	if v.log == nil {
		return Estimate{}
	}
	return estimate(v.log.CancellationRatio())
}
