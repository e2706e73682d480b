package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arithmax-research/TurboBook/infra/config"
)

var (
	configPath string
	httpAddr   string
	grpcAddr   string
	symbols    []string
	duration   time.Duration
)

// rootCmd is the base command for the TurboBook CLI
var rootCmd = &cobra.Command{
	Use:   "turbobook",
	Short: "Limit order books with live market analytics",
	Long: `TurboBook maintains one price-time priority order book per symbol,
fed from a venue websocket or a local simulator, and publishes
microstructure analytics for every book on a fixed interval.`,
	SilenceUsage: true,
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Feed the books from the configured venue (binance or alpaca)",
	Long: `Connect one websocket per symbol to the venue named in feed.venue.

Example usage:
  turbobook stream --config turbobook.yaml
  TURBOBOOK_VENUE=alpaca turbobook stream --symbols AAPL,MSFT`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Feed.Venue == config.VenueSimulator {
			return fmt.Errorf("venue %q is not a live venue; use the simulate command", cfg.Feed.Venue)
		}
		return run(cmd.Context(), cfg)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Feed the books from the random order simulator",
	Long: `Run simulated books, optionally for a fixed duration. A final report
for every book is logged on exit.

Example usage:
  turbobook simulate --symbols SIM1,SIM2 --duration 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Feed.Venue = config.VenueSimulator
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}
		return run(ctx, cfg)
	},
}

func init() {
	bindFlags(rootCmd.PersistentFlags())
	simulateCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(streamCmd, simulateCmd)
}

func bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, "config", "", "Path to YAML configuration (default $TURBOBOOK_CONFIG)")
	fs.StringVar(&httpAddr, "http", "", "HTTP listen address, overrides server.http_addr")
	fs.StringVar(&grpcAddr, "grpc", "", "gRPC listen address, overrides server.grpc_addr")
	fs.StringSliceVar(&symbols, "symbols", nil, "Symbols to book, overrides symbols")
}

// loadConfig layers command-line flags over the file and environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if grpcAddr != "" {
		cfg.Server.GRPCAddr = grpcAddr
	}
	if len(symbols) > 0 {
		cfg.Symbols = config.NormalizeSymbols(symbols)
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
