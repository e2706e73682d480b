package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
	"github.com/arithmax-research/TurboBook/infra/config"
	"github.com/arithmax-research/TurboBook/infra/metrics"
	"github.com/arithmax-research/TurboBook/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.BookService) {
	t.Helper()
	sess := service.NewSession(zerolog.Nop(), time.Millisecond)
	svc := service.NewBookService("BTCUSDT", service.BookOptions{Logger: zerolog.Nop(), Strict: true})
	require.NoError(t, sess.Add(svc, nil))

	reg := metrics.Init(zerolog.Nop())
	s := NewServer(Config{Addr: ":0"}, sess, metrics.Handler(reg), zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	resp = do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlaceMatchAndCancel(t *testing.T) {
	ts, svc := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/books/btcusdt/orders", `{"side":"buy","price":"100","quantity":"2"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var placed orderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&placed))
	assert.Empty(t, placed.Trades)

	resp = do(t, http.MethodPost, ts.URL+"/books/BTCUSDT/orders", `{"side":"sell","price":"100","quantity":"0.5"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var crossed orderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&crossed))
	require.Len(t, crossed.Trades, 1)
	assert.Equal(t, placed.ID, crossed.Trades[0].BuyOrderID)
	assert.Equal(t, "0.5", crossed.Trades[0].Quantity)

	resp = do(t, http.MethodGet, ts.URL+"/books/BTCUSDT?depth=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var book bookJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	require.Len(t, book.Bids, 1)
	assert.Equal(t, "1.5", book.Bids[0].Quantity)
	assert.Empty(t, book.Asks)

	url := ts.URL + "/books/BTCUSDT/orders/" + jsonNumber(placed.ID)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, url, "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, url, "").StatusCode)
	assert.Zero(t, svc.Book().Len())
}

func TestBadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		name, method, path, body string
		status                   int
	}{
		{"unknown symbol", http.MethodGet, "/books/DOGE", "", http.StatusNotFound},
		{"bad depth", http.MethodGet, "/books/BTCUSDT?depth=x", "", http.StatusBadRequest},
		{"bad side", http.MethodPost, "/books/BTCUSDT/orders", `{"side":"up","price":"1","quantity":"1"}`, http.StatusBadRequest},
		{"bad price", http.MethodPost, "/books/BTCUSDT/orders", `{"side":"buy","price":"abc","quantity":"1"}`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/books/BTCUSDT/orders", `{"side":"buy","price":"1","quantity":"0"}`, http.StatusUnprocessableEntity},
		{"malformed", http.MethodPost, "/books/BTCUSDT/orders", `{`, http.StatusBadRequest},
		{"no route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, tc.method, ts.URL+tc.path, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestReport(t *testing.T) {
	ts, svc := newTestServer(t)
	for _, o := range []struct {
		side  string
		price string
	}{{"buy", "99"}, {"buy", "98"}, {"sell", "101"}} {
		resp := do(t, http.MethodPost, ts.URL+"/books/BTCUSDT/orders", `{"side":"`+o.side+`","price":"`+o.price+`","quantity":"3"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := do(t, http.MethodGet, ts.URL+"/books/BTCUSDT/report", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var r analyzer.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	assert.Equal(t, svc.Symbol(), r.Symbol)
	assert.Equal(t, 2, r.BidLevels)
	assert.Equal(t, 1, r.AskLevels)
	assert.InDelta(t, 100.0, r.Mid, 1e-9)
	assert.InDelta(t, 2.0, r.Spread.Absolute, 1e-9)
}

func TestLowercaseConfiguredSymbolIsReachable(t *testing.T) {
	t.Setenv("TURBOBOOK_CONFIG", "")
	t.Setenv("TURBOBOOK_VENUE", "")
	t.Setenv("TURBOBOOK_SYMBOLS", "btcusdt")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)

	sess := service.NewSession(zerolog.Nop(), time.Millisecond)
	require.NoError(t, sess.Add(service.NewBookService(cfg.Symbols[0], service.BookOptions{Logger: zerolog.Nop()}), nil))
	s := NewServer(Config{Addr: ":0"}, sess, http.NotFoundHandler(), zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	for _, sym := range []string{"btcusdt", "BTCUSDT", "BtcUsdt"} {
		resp := do(t, http.MethodGet, ts.URL+"/books/"+sym, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, sym)
	}
}

func jsonNumber(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
