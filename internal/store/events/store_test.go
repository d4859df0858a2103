package events

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"signalbot/internal/lifecycle"
	"signalbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("gorm sqlite driver needs cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, &TradeEventModel{TraceID: "a", Exchange: "BINANCE", Pair: "BTCUSDT", Kind: "alert", Action: "entry"}, map[string]any{"side": "BUY"}))
	require.NoError(t, s.Record(ctx, &TradeEventModel{TraceID: "a", Exchange: "BINANCE", Pair: "BTCUSDT", Kind: "decision", Action: "opened"}, nil))
	require.NoError(t, s.Record(ctx, &TradeEventModel{TraceID: "b", Exchange: "BINANCE", Pair: "ETHUSDT", Kind: "alert", Action: "trend"}, nil))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ETHUSDT", all[0].Pair)

	byTrace, err := s.List(ctx, Query{TraceID: "a", Kind: "alert"})
	require.NoError(t, err)
	require.Len(t, byTrace, 1)
	var details map[string]string
	require.NoError(t, json.Unmarshal(byTrace[0].Details, &details))
	assert.Equal(t, "BUY", details["side"])
}

func TestRecorderObserve(t *testing.T) {
	s := openTemp(t)
	r := NewRecorder(s)
	sig := signal.Signal{Exchange: "BINANCE", Pair: "BTCUSDT", Frame: signal.Frame1h, Indicator: signal.IndicatorSI, Kind: signal.KindEntry, Side: signal.Buy}

	r.Alert("t1", sig)
	r.Observe(lifecycle.Event{TraceID: "t1", Lane: "BINANCE:BTCUSDT", Signal: &sig, Result: lifecycle.Result{
		Action: lifecycle.ActionFailed,
		Phase:  lifecycle.PhaseFlat,
		Err:    &lifecycle.Failure{Category: lifecycle.CategoryLeverage, Op: "set leverage"},
	}})
	r.Observe(lifecycle.Event{Lane: "BINANCE:BTCUSDT", Result: lifecycle.Result{Action: lifecycle.ActionObserved}})

	got, err := s.List(context.Background(), Query{Pair: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "decision", got[0].Kind)
	assert.Equal(t, "leverage-failure", got[0].Category)
	assert.Equal(t, "BINANCE", got[0].Exchange)
}

func TestSplitLane(t *testing.T) {
	ex, pair := splitLane("BINANCE:BTCUSDT")
	assert.Equal(t, "BINANCE", ex)
	assert.Equal(t, "BTCUSDT", pair)
	ex, pair = splitLane("BTCUSDT")
	assert.Empty(t, ex)
	assert.Equal(t, "BTCUSDT", pair)
}
