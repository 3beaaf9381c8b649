package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/marketdata"
	"prop-trading-engine/internal/upstream"
)

// scriptedSource serves canned bars per ticker; missing tickers fail.
type scriptedSource struct {
	bars map[string]*upstream.Bar
}

func (s *scriptedSource) Snapshot(ctx context.Context, ticker string) (*upstream.Bar, error) {
	if bar, ok := s.bars[ticker]; ok {
		return bar, nil
	}
	return nil, upstream.ErrUnavailable
}

func newTestServer(t *testing.T, source marketdata.Source) *Server {
	t.Helper()
	registry, err := instruments.Load([]string{"EURUSD", "USDJPY", "BTCUSD"}, "")
	require.NoError(t, err)

	quotes := marketdata.NewService(registry, source, marketdata.NewCache(), nil, zerolog.Nop())
	cfg := ServerConfig{Port: 8888, Host: "127.0.0.1", CacheTTL: 5 * time.Second, ProductionMode: true}
	return NewServer(cfg, registry, quotes, zerolog.Nop())
}

func doRequest(srv *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedSource{})

	w := doRequest(srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestSinglePrice(t *testing.T) {
	source := &scriptedSource{bars: map[string]*upstream.Bar{
		"EURUSD=X": {Close: 1.09400, DayHigh: 1.09800, DayLow: 1.09100, Volume: 1500},
	}}
	srv := newTestServer(t, source)

	w := doRequest(srv, http.MethodGet, "/api/prices/EURUSD", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body priceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "EURUSD", body.Symbol)
	assert.Equal(t, 1.09390, body.Bid)
	assert.Equal(t, 1.09410, body.Ask)
	assert.Equal(t, int64(1500), body.Volume)
	assert.NotEmpty(t, body.Timestamp)
}

func TestUnknownSymbolReturns404(t *testing.T) {
	srv := newTestServer(t, &scriptedSource{})

	w := doRequest(srv, http.MethodGet, "/api/prices/FOOBAR", map[string]string{"Origin": "http://example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "FOOBAR")
	assert.NotEmpty(t, body["timestamp"])

	// CORS headers present on error responses
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisteredSymbolWithoutQuoteReturns404(t *testing.T) {
	srv := newTestServer(t, &scriptedSource{}) // upstream down, cold cache

	w := doRequest(srv, http.MethodGet, "/api/prices/BTCUSD", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "no quote available")
}

func TestPricesOmitsSymbolsWithoutQuotes(t *testing.T) {
	source := &scriptedSource{bars: map[string]*upstream.Bar{
		"EURUSD=X": {Close: 1.094, DayHigh: 1.098, DayLow: 1.091, Volume: 100},
		"USDJPY=X": {Close: 148.90, DayHigh: 149.10, DayLow: 148.50, Volume: 200},
		// BTC-USD missing: upstream outage for that ticker
	}}
	srv := newTestServer(t, source)

	w := doRequest(srv, http.MethodGet, "/api/prices", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Prices    map[string]priceView `json:"prices"`
		Timestamp string               `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Len(t, body.Prices, 2)
	assert.Contains(t, body.Prices, "EURUSD")
	assert.Contains(t, body.Prices, "USDJPY")
	assert.NotContains(t, body.Prices, "BTCUSD")
	assert.NotEmpty(t, body.Timestamp)
}

func TestStaleCacheServedDuringOutage(t *testing.T) {
	source := &scriptedSource{bars: map[string]*upstream.Bar{
		"BTC-USD": {Close: 42025, DayHigh: 42500, DayLow: 41500, Volume: 10},
	}}

	registry, err := instruments.Load([]string{"BTCUSD"}, "")
	require.NoError(t, err)
	quotes := marketdata.NewService(registry, source, marketdata.NewCache(), nil, zerolog.Nop())
	srv := NewServer(ServerConfig{Port: 8888, CacheTTL: time.Millisecond, ProductionMode: true}, registry, quotes, zerolog.Nop())

	w := doRequest(srv, http.MethodGet, "/api/prices/BTCUSD", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var first priceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 42000.0, first.Bid)

	// Upstream goes dark; freshness long expired
	delete(source.bars, "BTC-USD")
	time.Sleep(5 * time.Millisecond)

	w = doRequest(srv, http.MethodGet, "/api/prices/BTCUSD", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stale priceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stale))
	assert.Equal(t, first, stale)

	// Health is unaffected by the outage
	w = doRequest(srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionsReturns200(t *testing.T) {
	srv := newTestServer(t, &scriptedSource{})

	w := doRequest(srv, http.MethodOptions, "/api/prices", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(srv, http.MethodOptions, "/api/prices/EURUSD", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedSource{})

	w := doRequest(srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
