package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	VenueBinance   = "binance"
	VenueAlpaca    = "alpaca"
	VenueSimulator = "simulator"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Symbols []string `yaml:"symbols"`
	Feed    struct {
		Venue                  string `yaml:"venue"`
		BinanceURL             string `yaml:"binance_url"`
		AlpacaURL              string `yaml:"alpaca_url"`
		AlpacaKey              string `yaml:"-"`
		AlpacaSecret           string `yaml:"-"`
		HandshakeTimeoutMs     int    `yaml:"handshake_timeout_ms"`
		ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
		ReconnectBaseMs        int    `yaml:"reconnect_base_ms"`
		ReconnectMaxMs         int    `yaml:"reconnect_max_ms"`
		BreakerFailures        int    `yaml:"breaker_failures"`
		BreakerCooldownSeconds int    `yaml:"breaker_cooldown_seconds"`
		StaggerMs              int    `yaml:"stagger_ms"`
	} `yaml:"feed"`
	Simulator struct {
		BasePrice     float64 `yaml:"base_price"`
		Spread        float64 `yaml:"spread"`
		MaxQuantity   float64 `yaml:"max_quantity"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		CancelRatio   float64 `yaml:"cancel_ratio"`
		Seed          uint64  `yaml:"seed"`
	} `yaml:"simulator"`
	Analyzer struct {
		Levels                  int     `yaml:"levels"`
		UnitImpact              float64 `yaml:"unit_impact"`
		UnitInventoryAdjustment float64 `yaml:"unit_inventory_adjustment"`
		ConfidenceVolume        float64 `yaml:"confidence_volume"`
		LiquidityVolume         float64 `yaml:"liquidity_volume"`
		VelocityWindowMs        int     `yaml:"velocity_window_ms"`
		ProbeSize               float64 `yaml:"probe_size"`
		RiskTolerance           float64 `yaml:"risk_tolerance"`
	} `yaml:"analyzer"`
	Report struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"report"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TradesTopic  string   `yaml:"trades_topic"`
		ReportsTopic string   `yaml:"reports_topic"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled    bool   `yaml:"enabled"`
		Addr       string `yaml:"addr"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`
	Server struct {
		HTTPAddr            string `yaml:"http_addr"`
		GRPCAddr            string `yaml:"grpc_addr"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`
}

func Default() Config {
	var c Config
	c.Logging.Level = "info"
	c.Symbols = []string{"BTCUSDT"}
	c.Feed.Venue = VenueBinance
	c.Feed.BinanceURL = "wss://stream.binance.com:9443/ws"
	c.Feed.AlpacaURL = "wss://stream.data.alpaca.markets/v2/iex"
	c.Feed.HandshakeTimeoutMs = 10_000
	c.Feed.ReadTimeoutSeconds = 30
	c.Feed.ReconnectBaseMs = 2_000
	c.Feed.ReconnectMaxMs = 60_000
	c.Feed.BreakerFailures = 5
	c.Feed.BreakerCooldownSeconds = 30
	c.Feed.StaggerMs = 100
	c.Simulator.BasePrice = 100
	c.Simulator.Spread = 10
	c.Simulator.MaxQuantity = 1000
	c.Simulator.RatePerSecond = 10
	c.Simulator.CancelRatio = 0.1
	c.Analyzer.Levels = 10
	c.Analyzer.UnitImpact = 0.001
	c.Analyzer.UnitInventoryAdjustment = 0.01
	c.Analyzer.ConfidenceVolume = 100
	c.Analyzer.LiquidityVolume = 1000
	c.Analyzer.VelocityWindowMs = 1000
	c.Analyzer.ProbeSize = 10
	c.Analyzer.RiskTolerance = 0.5
	c.Report.IntervalSeconds = 5
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.TradesTopic = "turbobook.trades"
	c.Kafka.ReportsTopic = "turbobook.reports"
	c.Redis.Addr = "localhost:6379"
	c.Redis.TTLSeconds = 60
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	return c
}

// Load layers the YAML file at path (if any), then TURBOBOOK_CONFIG when
// path is empty, then environment overrides over Default().
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		path = os.Getenv("TURBOBOOK_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&c)
	c.Symbols = NormalizeSymbols(c.Symbols)
	return c, c.Validate()
}

func applyEnv(c *Config) {
	if v := os.Getenv("TURBOBOOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TURBOBOOK_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("TURBOBOOK_SYMBOLS"); v != "" {
		c.Symbols = splitCSV(v)
	}
	if v := os.Getenv("TURBOBOOK_VENUE"); v != "" {
		c.Feed.Venue = strings.ToLower(v)
	}
	if v := os.Getenv("TURBOBOOK_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("TURBOBOOK_GRPC_ADDR"); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := os.Getenv("TURBOBOOK_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCSV(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("TURBOBOOK_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("TURBOBOOK_REPORT_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Report.IntervalSeconds = n
		}
	}
	// credentials only from env
	c.Feed.AlpacaKey = os.Getenv("ALPACA_API_KEY")
	c.Feed.AlpacaSecret = os.Getenv("ALPACA_API_SECRET")
}

func (c Config) Validate() error {
	var errs []error
	switch c.Feed.Venue {
	case VenueBinance, VenueAlpaca, VenueSimulator:
	default:
		errs = append(errs, fmt.Errorf("unknown venue %q", c.Feed.Venue))
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("no symbols configured"))
	}
	if c.Report.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("report.interval_seconds must be positive"))
	}
	if c.Feed.ReconnectBaseMs <= 0 || c.Feed.ReconnectMaxMs < c.Feed.ReconnectBaseMs {
		errs = append(errs, errors.New("feed reconnect delays must satisfy 0 < base <= max"))
	}
	if c.Simulator.RatePerSecond <= 0 {
		errs = append(errs, errors.New("simulator.rate_per_second must be positive"))
	}
	if c.Simulator.CancelRatio < 0 || c.Simulator.CancelRatio >= 1 {
		errs = append(errs, errors.New("simulator.cancel_ratio must be in [0, 1)"))
	}
	if c.Analyzer.Levels <= 0 {
		errs = append(errs, errors.New("analyzer.levels must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled without brokers"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.Report.IntervalSeconds) * time.Second
}

func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Feed.HandshakeTimeoutMs) * time.Millisecond
}

func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.Feed.ReadTimeoutSeconds) * time.Second
}

func (c Config) ReconnectBase() time.Duration {
	return time.Duration(c.Feed.ReconnectBaseMs) * time.Millisecond
}

func (c Config) ReconnectMax() time.Duration {
	return time.Duration(c.Feed.ReconnectMaxMs) * time.Millisecond
}

func (c Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Feed.BreakerCooldownSeconds) * time.Second
}

func (c Config) Stagger() time.Duration {
	return time.Duration(c.Feed.StaggerMs) * time.Millisecond
}

func (c Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// NormalizeSymbols upper-cases and trims symbols, dropping blanks and
// repeats. Books are keyed by the result.
func NormalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
