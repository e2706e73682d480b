package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/arithmax-research/TurboBook/api/grpcserver"
	"github.com/arithmax-research/TurboBook/api/httpapi"
	"github.com/arithmax-research/TurboBook/domain/analyzer"
	"github.com/arithmax-research/TurboBook/feed"
	"github.com/arithmax-research/TurboBook/feed/alpaca"
	"github.com/arithmax-research/TurboBook/feed/binance"
	"github.com/arithmax-research/TurboBook/feed/simulator"
	"github.com/arithmax-research/TurboBook/infra/backoff"
	"github.com/arithmax-research/TurboBook/infra/cache"
	"github.com/arithmax-research/TurboBook/infra/config"
	"github.com/arithmax-research/TurboBook/infra/kafka"
	"github.com/arithmax-research/TurboBook/infra/log"
	"github.com/arithmax-research/TurboBook/infra/metrics"
	"github.com/arithmax-research/TurboBook/infra/sequence"
	"github.com/arithmax-research/TurboBook/jobs/broadcaster"
	"github.com/arithmax-research/TurboBook/service"
)

// run wires the session, sinks and servers, and blocks until SIGINT or
// SIGTERM. Shutdown unwinds in reverse order of construction.
func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger(cfg)
	reg := metrics.Init(logger)

	// ---------------- Sinks ----------------

	var trades service.TradePublisher
	publishers := []broadcaster.Publisher{broadcaster.NewLogPublisher(logger)}
	if cfg.Kafka.Enabled {
		tp := kafka.NewTradeProducer(cfg.Kafka.Brokers, cfg.Kafka.TradesTopic, logger)
		defer tp.Close()
		trades = tp

		kp, err := broadcaster.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ReportsTopic)
		if err != nil {
			return err
		}
		defer kp.Close()
		publishers = append(publishers, kp)
	}
	if cfg.Redis.Enabled {
		rc, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.RedisTTL())
		if err != nil {
			return err
		}
		defer rc.Close()
		publishers = append(publishers, rc)
	}

	// ---------------- Books ----------------

	sess := service.NewSession(logger, cfg.Stagger())
	params := paramsFromConfig(cfg)
	for i, sym := range cfg.Symbols {
		svc := service.NewBookService(sym, service.BookOptions{Params: params, Trades: trades, Logger: logger})
		f, err := newFeed(cfg, svc.Sequencer(), logger, i)
		if err != nil {
			return err
		}
		if err := sess.Add(svc, f); err != nil {
			return err
		}
	}
	logger.Info().Str("session", sess.ID.String()).Strs("symbols", cfg.Symbols).Str("venue", cfg.Feed.Venue).Msg("session created")

	// ---------------- Servers ----------------

	errc := make(chan error, 2)
	if cfg.Server.HTTPAddr != "" {
		hs := httpapi.NewServer(httpapi.Config{
			Addr:         cfg.Server.HTTPAddr,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		}, sess, metrics.Handler(reg), logger)
		go func() { errc <- hs.Start() }()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Shutdown(sctx)
		}()
	}
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs := grpc.NewServer()
		grpcserver.Register(gs, grpcserver.NewServer(sess, logger))
		logger.Info().Str("addr", cfg.Server.GRPCAddr).Msg("grpc server listening")
		go func() { errc <- gs.Serve(lis) }()
		defer gs.GracefulStop()
	}

	// ---------------- Feeds & Jobs ----------------

	if err := sess.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("some feeds failed to start")
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error().Err(err).Msg("session close")
		}
	}()

	bc := broadcaster.New(sess, cfg.ReportInterval(), logger, publishers...)
	bc.Start(ctx)
	defer bc.Close()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		bc.BroadcastOnce(context.Background())
		return nil
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func paramsFromConfig(cfg config.Config) analyzer.Params {
	a := cfg.Analyzer
	return analyzer.Params{
		Depth:                   a.Levels,
		UnitImpact:              a.UnitImpact,
		UnitInventoryAdjustment: a.UnitInventoryAdjustment,
		ConfidenceVolume:        a.ConfidenceVolume,
		LiquidityVolume:         a.LiquidityVolume,
		VelocityWindow:          time.Duration(a.VelocityWindowMs) * time.Millisecond,
		ProbeSize:               a.ProbeSize,
		RiskTolerance:           a.RiskTolerance,
	}
}

// newFeed builds the feed for the i-th symbol. Simulators get distinct
// seeds so books do not mirror each other.
func newFeed(cfg config.Config, seq *sequence.Sequencer, logger zerolog.Logger, i int) (feed.Feed, error) {
	opts := feed.Options{
		HandshakeTimeout: cfg.HandshakeTimeout(),
		ReadTimeout:      cfg.ReadTimeout(),
		Backoff:          backoff.Policy{Base: cfg.ReconnectBase(), Max: cfg.ReconnectMax(), Jitter: 0.2},
		BreakerFailures:  uint32(cfg.Feed.BreakerFailures),
		BreakerCooldown:  cfg.BreakerCooldown(),
		Sequencer:        seq,
		Logger:           logger,
	}
	switch strings.ToLower(cfg.Feed.Venue) {
	case config.VenueBinance:
		return binance.New(cfg.Feed.BinanceURL, opts), nil
	case config.VenueAlpaca:
		return alpaca.New(cfg.Feed.AlpacaURL, cfg.Feed.AlpacaKey, cfg.Feed.AlpacaSecret, opts), nil
	case config.VenueSimulator:
		s := cfg.Simulator
		seed := s.Seed
		if seed != 0 {
			seed += uint64(i)
		}
		return simulator.New(simulator.Config{
			BasePrice:     s.BasePrice,
			Spread:        s.Spread,
			MaxQuantity:   s.MaxQuantity,
			RatePerSecond: s.RatePerSecond,
			CancelRatio:   s.CancelRatio,
			Seed:          seed,
		}, seq, logger), nil
	}
	return nil, fmt.Errorf("unknown venue %q", cfg.Feed.Venue)
}
