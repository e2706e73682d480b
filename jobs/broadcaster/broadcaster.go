// Package broadcaster periodically computes analytics reports for every
// book and fans them out to the configured publishers.
package broadcaster

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
	"github.com/arithmax-research/TurboBook/infra/metrics"
)

// Source produces the current reports. *service.Session satisfies it.
type Source interface {
	Reports() []analyzer.Report
}

// Publisher delivers one report to an external sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r analyzer.Report) error
}

type Broadcaster struct {
	source     Source
	publishers []Publisher
	interval   time.Duration
	log        zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(source Source, interval time.Duration, log zerolog.Logger, publishers ...Publisher) *Broadcaster {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Broadcaster{
		source:     source,
		publishers: publishers,
		interval:   interval,
		log:        log.With().Str("component", "broadcaster").Logger(),
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

func (b *Broadcaster) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.log.Info().Dur("interval", b.interval).Int("publishers", len(b.publishers)).Msg("started")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.BroadcastOnce(ctx)
			}
		}
	}()
}

// BroadcastOnce publishes one round of reports. A failing publisher is
// logged and counted; it does not stop the others.
func (b *Broadcaster) BroadcastOnce(ctx context.Context) int {
	sent := 0
	for _, r := range b.source.Reports() {
		for _, p := range b.publishers {
			if err := p.Publish(ctx, r); err != nil {
				metrics.PublishErrorsTotal.WithLabelValues(p.Name()).Inc()
				b.log.Warn().Err(err).Str("publisher", p.Name()).Str("symbol", r.Symbol).Msg("publish failed")
				continue
			}
			sent++
		}
	}
	return sent
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

// Close stops the loop and waits for an in-flight round to finish.
func (b *Broadcaster) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}
