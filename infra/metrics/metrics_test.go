package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestInitRegistersAndServes(t *testing.T) {
	reg := Init(zerolog.Nop())
	TradesTotal.WithLabelValues("BTCUSDT").Add(3)

	var m dto.Metric
	require.NoError(t, TradesTotal.WithLabelValues("BTCUSDT").Write(&m))
	assert.GreaterOrEqual(t, m.GetCounter().GetValue(), 3.0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["turbobook_trades_total"])

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `turbobook_trades_total{symbol="BTCUSDT"}`)
}
