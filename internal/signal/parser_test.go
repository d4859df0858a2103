package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrendSignal(t *testing.T) {
	sig, err := Parse("binance btc/usdt 4H ma 64250.5")
	require.NoError(t, err)

	assert.Equal(t, KindTrend, sig.Kind)
	assert.Equal(t, "BINANCE", sig.Exchange)
	assert.Equal(t, "BTCUSDT", sig.Pair)
	assert.Equal(t, Frame4h, sig.Frame)
	assert.Equal(t, IndicatorMA, sig.Indicator)
	assert.Equal(t, 64250.5, sig.Value)
	assert.Empty(t, sig.Side)
	assert.Equal(t, "BINANCE:BTCUSDT:4h:MA", sig.Key().String())
}

func TestParseEntrySignal(t *testing.T) {
	sig, err := Parse("  BINANCE   ETHUSDT  1h  SI  sell ")
	require.NoError(t, err)

	assert.Equal(t, KindEntry, sig.Kind)
	assert.Equal(t, Sell, sig.Side)
	assert.Zero(t, sig.Value)
	assert.Equal(t, "BINANCE:ETHUSDT", sig.Lane())
}

func TestParseNegativeTrend(t *testing.T) {
	sig, err := Parse("BINANCE BTCUSDT 1d TR -1")
	require.NoError(t, err)
	assert.Equal(t, -1.0, sig.Value)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"too few tokens":   "BINANCE BTCUSDT 1h MA",
		"too many tokens":  "BINANCE BTCUSDT 1h MA 1 2",
		"unknown frame":    "BINANCE BTCUSDT 15m MA 100",
		"unknown kind":     "BINANCE BTCUSDT 1h RSI 40",
		"entry not a side": "BINANCE BTCUSDT 1h SI HOLD",
		"trend not number": "BINANCE BTCUSDT 1h TR up",
		"trend NaN":        "BINANCE BTCUSDT 1h TR NaN",
		"empty":            "",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedAlert))
			var mal *MalformedAlertError
			assert.True(t, errors.As(err, &mal))
		})
	}
}

func TestTimeframeRank(t *testing.T) {
	assert.Equal(t, 0, Frame1h.Rank())
	assert.Equal(t, 5, Frame1d.Rank())
	assert.Equal(t, -1, Timeframe("15m").Rank())
	assert.Len(t, Frames(), 6)
}

func TestParseTrendKeyRoundTrip(t *testing.T) {
	key := TrendKey{Exchange: "BINANCE", Pair: "BTCUSDT", Frame: Frame6h, Indicator: IndicatorTR}
	parsed, err := ParseTrendKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseTrendKey("BINANCE:BTCUSDT:1h")
	assert.Error(t, err)
	_, err = ParseTrendKey("BINANCE:BTCUSDT:5m:MA")
	assert.Error(t, err)
}

func TestParseTrendKeyNormalizesPair(t *testing.T) {
	alert, err := Parse("binance BTC/USDT 1h MA 100")
	require.NoError(t, err)

	for _, raw := range []string{"binance:btc/usdt:1h:MA", "BINANCE:BTC-USDT:1h:MA", "BINANCE:btc_usdt:1h:MA"} {
		key, err := ParseTrendKey(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "BTCUSDT", key.Pair, raw)
		assert.Equal(t, alert.Key(), key, raw)
	}

	_, err = ParseTrendKey("BINANCE: :1h:MA")
	assert.Error(t, err)
}
