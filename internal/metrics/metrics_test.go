package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"signalbot/internal/gateway/exchange"
	"signalbot/internal/lifecycle"
	"signalbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	exchange.Gateway
}

func (fakeGateway) Name() string { return "FAKE" }

func (fakeGateway) MarkPrice(context.Context, string) (float64, error) { return 42, nil }

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCountersExposed(t *testing.T) {
	m := New()
	m.Alert(signal.Signal{Indicator: signal.IndicatorMA})
	m.Alert(signal.Signal{Indicator: signal.IndicatorMA})
	m.MalformedAlert()
	m.Observe(lifecycle.Event{Result: lifecycle.Result{Action: lifecycle.ActionOpened}})
	m.Observe(lifecycle.Event{Result: lifecycle.Result{
		Action: lifecycle.ActionFailed,
		Err:    &lifecycle.Failure{Category: lifecycle.CategoryLeverage},
	}})
	m.Observe(lifecycle.Event{Result: lifecycle.Result{Action: lifecycle.ActionObserved}})

	body := scrape(t, m)
	assert.Contains(t, body, `signalbot_alerts_total{indicator="MA"} 2`)
	assert.Contains(t, body, `signalbot_decisions_total{action="opened"} 1`)
	assert.Contains(t, body, `signalbot_decisions_total{action="failed"} 1`)
	assert.NotContains(t, body, `action="observed"`)
	assert.Contains(t, body, `signalbot_gateway_failures_total{category="leverage-failure"} 1`)
	assert.Contains(t, body, `signalbot_malformed_alerts_total 1`)
}

func TestInstrumentedGatewayRecordsLatency(t *testing.T) {
	m := New()
	gw := m.Instrument(fakeGateway{})

	price, err := gw.MarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 42.0, price)
	assert.Equal(t, "FAKE", gw.Name())

	assert.Contains(t, scrape(t, m), `signalbot_gateway_call_seconds_count{op="mark_price"} 1`)
}
