// Package exchange defines the futures exchange contract consumed by the
// lifecycle controller, independent of any vendor SDK.
package exchange

import (
	"fmt"
	"time"

	"signalbot/internal/signal"
)

const (
	PositionSideBoth  = "BOTH"
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
)

// Position is a snapshot; it is never cached across decisions.
type Position struct {
	Symbol       string
	PositionSide string
	Amount       float64 // signed: >0 long, <0 short
	RawAmount    string
}

func (p Position) IsLong() bool {
	if p.PositionSide == PositionSideShort {
		return false
	}
	return p.Amount > 0
}

func (p Position) IsShort() bool {
	if p.PositionSide == PositionSideLong {
		return false
	}
	return p.Amount < 0 || (p.PositionSide == PositionSideShort && p.Amount != 0)
}

func (p Position) IsFlat() bool { return p.Amount == 0 }

// Opposes reports whether an entry on side would reverse this position.
func (p Position) Opposes(side signal.Side) bool {
	switch side {
	case signal.Buy:
		return p.IsShort()
	case signal.Sell:
		return p.IsLong()
	default:
		return false
	}
}

// Side is the direction of the open exposure.
func (p Position) Side() signal.Side {
	if p.IsShort() {
		return signal.Sell
	}
	return signal.Buy
}

func (p Position) String() string {
	return fmt.Sprintf("%s %s amt=%g", p.Symbol, p.PositionSide, p.Amount)
}

type MarginType string

const (
	MarginIsolated MarginType = "ISOLATED"
	MarginCrossed  MarginType = "CROSSED"
)

type MarginStatus string

const (
	MarginChanged    MarginStatus = "changed"
	MarginAlreadySet MarginStatus = "already-set"
)

// BracketOrder is one entry plus take-profit and stop-loss, submitted as a
// single batch. Prices and quantity are pre-formatted at exchange precision.
type BracketOrder struct {
	Pair       string
	Side       signal.Side
	Quantity   string
	TakeProfit string
	StopLoss   string
	Leverage   int
}

type OrderRole string

const (
	RoleEntry      OrderRole = "entry"
	RoleTakeProfit OrderRole = "take-profit"
	RoleStopLoss   OrderRole = "stop-loss"
)

// OrderResult is the outcome of one order in a batch.
type OrderResult struct {
	Role    OrderRole
	OrderID int64
	Err     error
}

type BatchResult struct {
	Orders []OrderResult
}

func (r BatchResult) find(role OrderRole) (OrderResult, bool) {
	for _, o := range r.Orders {
		if o.Role == role {
			return o, true
		}
	}
	return OrderResult{}, false
}

// EntryAccepted reports whether the market entry was placed.
func (r BatchResult) EntryAccepted() bool {
	o, ok := r.find(RoleEntry)
	return ok && o.Err == nil
}

// Rejected lists the orders that failed.
func (r BatchResult) Rejected() []OrderResult {
	var out []OrderResult
	for _, o := range r.Orders {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Protected reports whether both protective orders were placed.
func (r BatchResult) Protected() bool {
	tp, okTP := r.find(RoleTakeProfit)
	sl, okSL := r.find(RoleStopLoss)
	return okTP && okSL && tp.Err == nil && sl.Err == nil
}

// Precision is the number of decimals the exchange accepts for a symbol.
type Precision struct {
	Price    int32
	Quantity int32
}

const (
	OrderTypeMarket           = "MARKET"
	OrderTypeStopMarket       = "STOP_MARKET"
	OrderTypeTakeProfitMarket = "TAKE_PROFIT_MARKET"

	StatusNew      = "NEW"
	StatusFilled   = "FILLED"
	StatusCanceled = "CANCELED"
	StatusExpired  = "EXPIRED"
)

// OrderUpdate is one execution report from the user data stream.
type OrderUpdate struct {
	Symbol        string
	OrderID       int64
	OrderType     string
	ExecutionType string
	Status        string
	Time          time.Time
}

// ClosesBracket reports whether this fill ends a bracketed position.
func (u OrderUpdate) ClosesBracket() bool {
	if u.Status != StatusFilled {
		return false
	}
	return u.OrderType == OrderTypeStopMarket || u.OrderType == OrderTypeTakeProfitMarket
}
