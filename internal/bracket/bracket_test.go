package bracket

import (
	"testing"

	"signalbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeverageTable(t *testing.T) {
	cases := map[signal.Timeframe]int{
		signal.Frame1h: 10,
		signal.Frame2h: 9,
		signal.Frame3h: 7,
		signal.Frame4h: 5,
		signal.Frame6h: 1,
		signal.Frame1d: 1,
		"15m":          1,
	}
	for frame, want := range cases {
		assert.Equal(t, want, Leverage(frame), string(frame))
	}
}

func TestPricesBuy(t *testing.T) {
	set, err := Prices(100, 10, signal.Buy, Params{PricePrecision: 2})
	require.NoError(t, err)
	assert.Equal(t, "98.00", set.StopLossString())
	assert.Equal(t, "101.00", set.TakeProfitString())
	assert.Equal(t, "100.00", set.EntryPriceString())
}

func TestPricesSell(t *testing.T) {
	set, err := Prices(100, 10, signal.Sell, Params{PricePrecision: 2})
	require.NoError(t, err)
	assert.Equal(t, "102.00", set.StopLossString())
	assert.Equal(t, "99.00", set.TakeProfitString())
}

func TestPricesRoundsHalfAwayFromZero(t *testing.T) {
	// offset = 0.1 * 12.345 / 1 = 1.2345 -> tp 13.5795 -> 13.58
	set, err := Prices(12.345, 1, signal.Buy, Params{PricePrecision: 2})
	require.NoError(t, err)
	assert.Equal(t, "13.58", set.TakeProfitString())
	assert.Equal(t, "9.88", set.StopLossString())
}

func TestPricesCustomPercentages(t *testing.T) {
	set, err := Prices(200, 5, signal.Buy, Params{StopLossPct: 0.5, TakeProfitPct: 0.25, PricePrecision: 1})
	require.NoError(t, err)
	assert.Equal(t, "180.0", set.StopLossString())
	assert.Equal(t, "210.0", set.TakeProfitString())
}

func TestPricesInvalidInput(t *testing.T) {
	_, err := Prices(0, 10, signal.Buy, Params{})
	assert.ErrorIs(t, err, ErrInvalidMarkPrice)
	_, err = Prices(100, 0, signal.Buy, Params{})
	assert.ErrorIs(t, err, ErrInvalidLeverage)
	_, err = Prices(100, 1, signal.Side("HOLD"), Params{})
	assert.Error(t, err)
}

func TestQuantity(t *testing.T) {
	q, err := Quantity(100, 30000, 3)
	require.NoError(t, err)
	assert.Equal(t, "0.003", q.StringFixed(3))

	q, err = Quantity(10, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "3.33", q.StringFixed(2))
}

func TestQuantityNeverZero(t *testing.T) {
	q, err := Quantity(1, 60000, 3)
	require.NoError(t, err)
	assert.Equal(t, "0.001", q.String())

	q, err = Quantity(1, 60000, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", q.String())
}

func TestBuild(t *testing.T) {
	set, err := Build(100, Leverage(signal.Frame1h), signal.Buy, 50, 3, Params{PricePrecision: 2})
	require.NoError(t, err)
	assert.Equal(t, "0.5", set.Quantity.String())
	assert.Equal(t, "98.00", set.StopLossString())
	assert.Contains(t, set.String(), "tp=101.00")
}
