package broadcaster

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
)

// LogPublisher writes a one-line status per report.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "report").Logger()}
}

func (l *LogPublisher) Name() string { return "log" }

func (l *LogPublisher) Publish(_ context.Context, r analyzer.Report) error {
	l.log.Info().
		Str("symbol", r.Symbol).
		Uint64("version", r.Version).
		Float64("bid", r.BestBid).
		Float64("ask", r.BestAsk).
		Float64("spread", r.Spread.Absolute).
		Float64("flow_imbalance", r.FlowImbalance.Value).
		Float64("liquidity", r.Liquidity).
		Int("bid_levels", r.BidLevels).
		Int("ask_levels", r.AskLevels).
		Msg("book report")
	return nil
}
