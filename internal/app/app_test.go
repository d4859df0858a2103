package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"signalbot/internal/config"
	"signalbot/internal/gateway/exchange"
	"signalbot/internal/lifecycle"
	"signalbot/internal/requirement"
	"signalbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quietGateway struct {
	exchange.Gateway
}

func (quietGateway) Name() string { return "BINANCE" }

func (quietGateway) OpenedPosition(context.Context, string) (*exchange.Position, error) {
	return nil, nil
}

func (quietGateway) MarkPrice(context.Context, string) (float64, error) {
	return 0, errors.New("offline")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App:  config.AppConfig{Env: "test", LogLevel: "error"},
		HTTP: config.HTTPConfig{Addr: "127.0.0.1:0", AllowIPs: []string{"127.0.0.1"}, RestrictMode: "allow"},
		Trading: config.TradingConfig{
			StopLossPct:       0.2,
			TakeProfitPct:     0.1,
			MaxMADeviation:    0.03,
			PricePrecision:    2,
			QuantityPrecision: 3,
			BalanceFraction:   0.1,
			ConfirmFrames:     []string{"1h", "2h"},
		},
		Trend: config.TrendConfig{Journal: "file", JournalPath: filepath.Join(dir, "alerts.journal"), Replay: true},
		Store: config.StoreConfig{EventsPath: filepath.Join(dir, "events.db")},
	}
}

func TestBuildReplaysJournal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Trend.JournalPath, []byte("BINANCE:BTCUSDT:1d:TR -1 1700000000000\n"), 0o644))

	app, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Summary)
	assert.Equal(t, 1, app.Summary.Replayed)
	assert.Empty(t, app.Summary.Exchanges)

	rec := httptest.NewRecorder()
	app.HTTP().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trend", nil))
	assert.Contains(t, rec.Body.String(), `"BINANCE:BTCUSDT:1d:TR"`)
}

func TestTrendAlertIsJournaled(t *testing.T) {
	cfg := testConfig(t)
	app, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/signal", strings.NewReader("BINANCE ETHUSDT 4h MA 2500.5"))
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	app.HTTP().Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, app.Close())

	raw, err := os.ReadFile(cfg.Trend.JournalPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "BINANCE:ETHUSDT:4h:MA 2500.5 "))
}

func TestEntryWithoutPriceIsRejected(t *testing.T) {
	cfg := testConfig(t)
	app, err := NewAppBuilder(cfg, WithGateways(func(*config.Config) ([]VenueGateway, error) {
		return []VenueGateway{{Gateway: quietGateway{}}}, nil
	})).Build(context.Background())
	require.NoError(t, err)
	defer app.Close()

	out := app.Engine().Handle(context.Background(), signal.Signal{
		Exchange: "BINANCE", Pair: "BTCUSDT", Frame: signal.Frame1h,
		Indicator: signal.IndicatorSI, Kind: signal.KindEntry, Side: signal.Buy,
	})
	require.NotNil(t, out.Result)
	assert.Equal(t, lifecycle.ActionRejected, out.Result.Action)
	require.NotNil(t, out.Result.Verdict)
	assert.Equal(t, requirement.ReasonPriceUnavailable, out.Result.Verdict.Reason)
	assert.Equal(t, []string{"BINANCE"}, app.Summary.Exchanges)
}

func TestUnknownJournalFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trend.Journal = "redis"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	assert.ErrorContains(t, err, "unknown trend journal")
}

func TestControllerOptionsFromTrading(t *testing.T) {
	opts := controllerOptions(config.TradingConfig{
		StopLossPct: 0.2, TakeProfitPct: 0.1, PricePrecision: 4, QuantityPrecision: 1,
		BaseNotional: 50, GatewayTimeoutSeconds: 7,
	})
	assert.Equal(t, int32(4), opts.Bracket.PricePrecision)
	assert.Equal(t, exchange.Precision{Price: 4, Quantity: 1}, opts.FallbackPrecision)
	assert.Equal(t, 50.0, opts.BaseNotional)
	assert.Equal(t, "7s", opts.Timeout.String())
	assert.Equal(t, exchange.MarginIsolated, opts.Margin)
}

func TestSummaryWrite(t *testing.T) {
	var b strings.Builder
	s := &StartupSummary{HTTPAddr: ":8080", Exchanges: []string{"BINANCE"}, MaxDeviation: 0.03, Journal: "file"}
	_, err := s.WriteTo(&b)
	require.NoError(t, err)
	assert.Contains(t, b.String(), "BINANCE")
	assert.Contains(t, b.String(), "3.00%")
	assert.Contains(t, b.String(), "telegram: off")
}
