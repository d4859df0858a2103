package exchange

import (
	"errors"
	"testing"

	"signalbot/internal/signal"

	"github.com/stretchr/testify/assert"
)

func TestPositionDirection(t *testing.T) {
	long := Position{Symbol: "BTCUSDT", PositionSide: PositionSideBoth, Amount: 0.5}
	short := Position{Symbol: "BTCUSDT", PositionSide: PositionSideBoth, Amount: -0.5}

	assert.True(t, long.IsLong())
	assert.False(t, long.IsShort())
	assert.True(t, long.Opposes(signal.Sell))
	assert.False(t, long.Opposes(signal.Buy))
	assert.Equal(t, signal.Buy, long.Side())

	assert.True(t, short.IsShort())
	assert.True(t, short.Opposes(signal.Buy))
	assert.False(t, short.Opposes(signal.Sell))
	assert.Equal(t, signal.Sell, short.Side())

	assert.True(t, Position{}.IsFlat())
}

func TestHedgeModeShortSide(t *testing.T) {
	p := Position{PositionSide: PositionSideShort, Amount: 1}
	assert.True(t, p.IsShort())
	assert.False(t, p.IsLong())
}

func TestBatchResult(t *testing.T) {
	res := BatchResult{Orders: []OrderResult{
		{Role: RoleEntry, OrderID: 1},
		{Role: RoleTakeProfit, OrderID: 2},
		{Role: RoleStopLoss, Err: errors.New("would trigger immediately")},
	}}
	assert.True(t, res.EntryAccepted())
	assert.False(t, res.Protected())
	assert.Len(t, res.Rejected(), 1)
	assert.Equal(t, RoleStopLoss, res.Rejected()[0].Role)
}

func TestOrderUpdateClosesBracket(t *testing.T) {
	assert.True(t, OrderUpdate{OrderType: OrderTypeStopMarket, Status: StatusFilled}.ClosesBracket())
	assert.True(t, OrderUpdate{OrderType: OrderTypeTakeProfitMarket, Status: StatusFilled}.ClosesBracket())
	assert.False(t, OrderUpdate{OrderType: OrderTypeMarket, Status: StatusFilled}.ClosesBracket())
	assert.False(t, OrderUpdate{OrderType: OrderTypeStopMarket, Status: StatusCanceled}.ClosesBracket())
}
