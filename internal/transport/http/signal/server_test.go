package signalhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"signalbot/internal/lifecycle"
	"signalbot/internal/signal"
	"signalbot/internal/store/events"
	"signalbot/internal/trend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	sigs []signal.Signal
}

func (r *recordingSubmitter) Submit(_ context.Context, sig signal.Signal) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = append(r.sigs, sig)
	return "trace-1"
}

type staticPhases map[string]lifecycle.Phase

func (s staticPhases) Phases() map[string]lifecycle.Phase { return s }

type staticEvents []events.TradeEventModel

func (s staticEvents) List(context.Context, events.Query) ([]events.TradeEventModel, error) {
	return s, nil
}

// proxyAddr is the socket peer of every test request.
const proxyAddr = "203.0.113.9"

func newTestServer(t *testing.T, access *AccessList, trusted ...string) (*Server, *recordingSubmitter, *trend.Store, *int) {
	t.Helper()
	sub := &recordingSubmitter{}
	store := trend.NewStore()
	malformed := 0
	srv, err := NewServer(ServerConfig{
		Router: &Router{
			Submitter:   sub,
			Trend:       store,
			Phases:      []PhaseReader{staticPhases{"BINANCE:BTCUSDT": lifecycle.PhaseOpen}},
			Events:      staticEvents{{ID: 1, Pair: "BTCUSDT", Kind: "alert"}},
			OnMalformed: func() { malformed++ },
		},
		Access:         access,
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok_metric 1\n")) }),
		TrustedProxies: trusted,
	})
	require.NoError(t, err)
	return srv, sub, store, &malformed
}

func post(srv *Server, body, realIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/signal", strings.NewReader(body))
	req.RemoteAddr = proxyAddr + ":5555"
	if realIP != "" {
		req.Header.Set("X-Real-IP", realIP)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSignalAcceptedFromAllowedIP(t *testing.T) {
	srv, sub, _, _ := newTestServer(t, NewAccessList([]string{"52.89.214.238"}, false), proxyAddr)

	rec := post(srv, "BINANCE BTCUSDT 1h SI BUY", "52.89.214.238")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "trace-1", resp["trace_id"])
	require.Len(t, sub.sigs, 1)
	assert.Equal(t, signal.Buy, sub.sigs[0].Side)
}

func TestSignalForbiddenOutsideAllowList(t *testing.T) {
	srv, sub, _, _ := newTestServer(t, NewAccessList([]string{"52.89.214.238"}, false))

	rec := post(srv, "BINANCE BTCUSDT 1h SI BUY", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access Forbidden", rec.Body.String())
	assert.Empty(t, sub.sigs)
}

func TestRealIPIgnoredFromUntrustedPeer(t *testing.T) {
	srv, sub, _, _ := newTestServer(t, NewAccessList([]string{"52.89.214.238"}, false))

	rec := post(srv, "BINANCE BTCUSDT 1h SI BUY", "52.89.214.238")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, sub.sigs)
}

func TestRealIPHonoredFromTrustedCIDR(t *testing.T) {
	srv, _, _, _ := newTestServer(t, NewAccessList([]string{"52.89.214.238"}, false), "203.0.113.0/24")
	assert.Equal(t, http.StatusOK, post(srv, "BINANCE BTCUSDT 1h MA 100", "52.89.214.238").Code)
	// The proxy itself is not on the list.
	assert.Equal(t, http.StatusForbidden, post(srv, "BINANCE BTCUSDT 1h MA 100", "").Code)
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewServer(ServerConfig{
		Router:         &Router{Submitter: &recordingSubmitter{}},
		TrustedProxies: []string{"not-an-ip"},
	})
	assert.Error(t, err)
}

func TestSignalFallsBackToSocketAddress(t *testing.T) {
	srv, _, _, _ := newTestServer(t, NewAccessList([]string{"203.0.113.9"}, false))
	assert.Equal(t, http.StatusOK, post(srv, "BINANCE BTCUSDT 1h MA 100", "").Code)
}

func TestDenyModeAndHotReload(t *testing.T) {
	access := NewAccessList([]string{"198.51.100.7"}, true)
	srv, _, _, _ := newTestServer(t, access, proxyAddr)

	assert.Equal(t, http.StatusForbidden, post(srv, "BINANCE BTCUSDT 1h MA 100", "198.51.100.7").Code)
	assert.Equal(t, http.StatusOK, post(srv, "BINANCE BTCUSDT 1h MA 100", "198.51.100.8").Code)

	access.Update([]string{"198.51.100.8"}, false)
	assert.Equal(t, http.StatusOK, post(srv, "BINANCE BTCUSDT 1h MA 100", "198.51.100.8").Code)
	assert.Equal(t, http.StatusForbidden, post(srv, "BINANCE BTCUSDT 1h MA 100", "198.51.100.7").Code)
}

func TestMalformedAlertIs400(t *testing.T) {
	srv, sub, _, malformed := newTestServer(t, nil)

	rec := post(srv, "BINANCE BTCUSDT 5m SI BUY", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
	assert.Empty(t, sub.sigs)
	assert.Equal(t, 1, *malformed)
}

func TestJSONBody(t *testing.T) {
	srv, sub, _, _ := newTestServer(t, nil)

	rec := post(srv, `{"data":"BINANCE ETHUSDT 4h TR -1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sub.sigs, 1)
	assert.Equal(t, "ETHUSDT", sub.sigs[0].Pair)
	assert.Equal(t, -1.0, sub.sigs[0].Value)
}

func TestAlertLine(t *testing.T) {
	assert.Equal(t, "A B C D E", alertLine([]byte("  A B C D E\n")))
	assert.Equal(t, "A B C D E", alertLine([]byte(`{"message":" A B C D E "}`)))
	assert.Equal(t, "A B C D E", alertLine([]byte(`"A B C D E"`)))
	assert.Equal(t, "", alertLine([]byte(`{"other":1}`)))
}

func TestStatusRoutes(t *testing.T) {
	srv, _, store, _ := newTestServer(t, nil)
	store.Set(signal.TrendKey{Exchange: "BINANCE", Pair: "BTCUSDT", Frame: signal.Frame1h, Indicator: signal.IndicatorMA}, 100)
	store.Set(signal.TrendKey{Exchange: "BINANCE", Pair: "ETHUSDT", Frame: signal.Frame1h, Indicator: signal.IndicatorMA}, 2000)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.JSONEq(t, `{"status":"ok"}`, get("/healthz").Body.String())
	assert.JSONEq(t, `{"entries":[{"key":"BINANCE:ETHUSDT:1h:MA","value":2000}]}`, get("/api/trend?prefix=binance:eth").Body.String())
	assert.JSONEq(t, `{"lanes":[{"lane":"BINANCE:BTCUSDT","phase":"open"}]}`, get("/api/lifecycle").Body.String())
	assert.Contains(t, get("/api/events").Body.String(), `"pair":"BTCUSDT"`)
	assert.Equal(t, "ok_metric 1\n", get("/metrics").Body.String())
}

func TestStatusRoutesFollowAccessList(t *testing.T) {
	srv, _, _, _ := newTestServer(t, NewAccessList([]string{"52.89.214.238"}, false))

	get := func(path, peer string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = peer + ":4444"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	for _, path := range []string{"/api/trend", "/api/lifecycle", "/api/events", "/metrics"} {
		assert.Equal(t, http.StatusForbidden, get(path, "198.51.100.20"), path)
		assert.Equal(t, http.StatusOK, get(path, "52.89.214.238"), path)
	}
	assert.Equal(t, http.StatusOK, get("/healthz", "198.51.100.20"))
}

func TestNormalizeIP(t *testing.T) {
	assert.Equal(t, "127.0.0.1", normalizeIP("::ffff:127.0.0.1"))
	assert.Equal(t, "::1", normalizeIP(" ::1 "))
	assert.Equal(t, "", normalizeIP(""))
}

func TestNewServerRequiresSubmitter(t *testing.T) {
	_, err := NewServer(ServerConfig{Router: &Router{}})
	assert.Error(t, err)
}
