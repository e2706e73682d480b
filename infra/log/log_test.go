package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arithmax-research/TurboBook/infra/config"
)

func TestJSONOutputRespectsLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "warn"
	var buf bytes.Buffer
	l := newLogger(cfg, &buf, false)

	l.Info().Msg("hidden")
	l.Warn().Str("symbol", "BTCUSDT").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "BTCUSDT", line["symbol"])
	assert.Contains(t, line, "time")
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "loud"
	var buf bytes.Buffer
	l := newLogger(cfg, &buf, false)
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	l.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestPrettyOutputIsNotJSON(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Pretty = true
	var buf bytes.Buffer
	l := newLogger(cfg, &buf, false)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
