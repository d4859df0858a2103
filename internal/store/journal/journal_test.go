package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signalbot/internal/signal"
	"signalbot/internal/trend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(frame signal.Timeframe, ind signal.Indicator) signal.TrendKey {
	return signal.TrendKey{Exchange: "BINANCE", Pair: "ETHUSDT", Frame: frame, Indicator: ind}
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "trend.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendReplayHydrate(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_123)

	require.NoError(t, s.Append(ctx, trend.Record{Key: key(signal.Frame1h, signal.IndicatorMA), Value: 2000, At: at}))
	require.NoError(t, s.Append(ctx, trend.Record{Key: key(signal.Frame1d, signal.IndicatorTR), Value: -3, At: at}))
	require.NoError(t, s.Append(ctx, trend.Record{Key: key(signal.Frame1h, signal.IndicatorMA), Value: 2010.5, At: at}))

	var seen []trend.Record
	require.NoError(t, s.Replay(ctx, func(r trend.Record) { seen = append(seen, r) }))
	require.Len(t, seen, 3)
	assert.Equal(t, at.UnixMilli(), seen[0].At.UnixMilli())

	store := trend.NewStore()
	n, err := trend.Hydrate(ctx, store, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	v, ok := store.Get(key(signal.Frame1h, signal.IndicatorMA))
	assert.True(t, ok)
	assert.Equal(t, 2010.5, v)
}

func TestLatestAndCompact(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, trend.Record{Key: key(signal.Frame2h, signal.IndicatorTR), Value: float64(i)}))
	}
	require.NoError(t, s.Append(ctx, trend.Record{Key: key(signal.Frame4h, signal.IndicatorTR), Value: 9}))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, 2.0, latest[0].Value)
	assert.Equal(t, 9.0, latest[1].Value)

	removed, err := s.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count := 0
	require.NoError(t, s.Replay(ctx, func(trend.Record) { count++ }))
	assert.Equal(t, 2, count)
}

func TestReopenKeepsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trend.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), trend.Record{Key: key(signal.Frame1h, signal.IndicatorMA), Value: 1}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
