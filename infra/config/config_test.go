package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TURBOBOOK_CONFIG", "")
	t.Setenv("TURBOBOOK_LOG_LEVEL", "")
	t.Setenv("TURBOBOOK_SYMBOLS", "")
	t.Setenv("TURBOBOOK_VENUE", "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, VenueBinance, c.Feed.Venue)
	assert.Equal(t, []string{"BTCUSDT"}, c.Symbols)
	assert.Equal(t, 5*time.Second, c.ReportInterval())
	assert.Equal(t, 2*time.Second, c.ReconnectBase())
	assert.False(t, c.Kafka.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TURBOBOOK_CONFIG", "")
	t.Setenv("TURBOBOOK_LOG_LEVEL", "debug")
	t.Setenv("TURBOBOOK_SYMBOLS", "btcusdt, ethusdt,,")
	t.Setenv("TURBOBOOK_VENUE", "ALPACA")
	t.Setenv("TURBOBOOK_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_API_SECRET", "secret")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, c.Symbols)
	assert.Equal(t, VenueAlpaca, c.Feed.Venue)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "key", c.Feed.AlpacaKey)
	assert.Equal(t, "secret", c.Feed.AlpacaSecret)
}

func TestYAMLFileLayersOverDefaults(t *testing.T) {
	t.Setenv("TURBOBOOK_VENUE", "")
	t.Setenv("TURBOBOOK_SYMBOLS", "")
	path := filepath.Join(t.TempDir(), "turbobook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbols: [aapl, MSFT, msft]
simulator:
  cancel_ratio: 0.25
feed:
  venue: alpaca
  reconnect_base_ms: 3000
  # credentials are never read from the file
  alpaca_key: ignored
report:
  interval_seconds: 2
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Symbols)
	assert.Equal(t, 3*time.Second, c.ReconnectBase())
	assert.Equal(t, 2*time.Second, c.ReportInterval())
	assert.Equal(t, 10, c.Analyzer.Levels)
	assert.Equal(t, 0.25, c.Simulator.CancelRatio)
}

func TestNormalizeSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, NormalizeSymbols([]string{" btcusdt", "ETHUSDT", "", "BtcUsdt"}))
	assert.Empty(t, NormalizeSymbols(nil))
}

func TestValidateRejectsBadConfig(t *testing.T) {
	c := Default()
	c.Feed.Venue = "nasdaq"
	c.Symbols = nil
	c.Simulator.CancelRatio = 1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown venue")
	assert.Contains(t, err.Error(), "no symbols")
	assert.Contains(t, err.Error(), "cancel_ratio")
}

func TestMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
