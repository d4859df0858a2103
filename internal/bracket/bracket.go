// Package bracket derives entry, take-profit and stop-loss orders from a mark
// price.
package bracket

import (
	"errors"
	"fmt"

	"signalbot/internal/signal"

	"github.com/shopspring/decimal"
)

const (
	DefaultStopLossPct   = 0.2
	DefaultTakeProfitPct = 0.1
	FallbackPrecision    = 2
)

var (
	ErrInvalidMarkPrice = errors.New("bracket: mark price must be positive")
	ErrInvalidLeverage  = errors.New("bracket: leverage must be positive")
)

// Leverage maps a signal timeframe to its fixed leverage.
func Leverage(frame signal.Timeframe) int {
	switch frame {
	case signal.Frame1h:
		return 10
	case signal.Frame2h:
		return 9
	case signal.Frame3h:
		return 7
	case signal.Frame4h:
		return 5
	default:
		return 1
	}
}

type Params struct {
	StopLossPct    float64
	TakeProfitPct  float64
	PricePrecision int32
}

func (p Params) withDefaults() Params {
	if p.StopLossPct <= 0 {
		p.StopLossPct = DefaultStopLossPct
	}
	if p.TakeProfitPct <= 0 {
		p.TakeProfitPct = DefaultTakeProfitPct
	}
	if p.PricePrecision < 0 {
		p.PricePrecision = FallbackPrecision
	}
	return p
}

// Set is one entry with its protective orders.
type Set struct {
	Side       signal.Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Precision  int32
}

func (s Set) TakeProfitString() string { return s.TakeProfit.StringFixed(s.Precision) }
func (s Set) StopLossString() string   { return s.StopLoss.StringFixed(s.Precision) }
func (s Set) EntryPriceString() string { return s.EntryPrice.StringFixed(s.Precision) }

func (s Set) String() string {
	return fmt.Sprintf("%s qty=%s entry=%s tp=%s sl=%s",
		s.Side, s.Quantity.String(), s.EntryPriceString(), s.TakeProfitString(), s.StopLossString())
}

// Offset is pct * mark / leverage.
func Offset(mark decimal.Decimal, leverage int, pct float64) decimal.Decimal {
	return decimal.NewFromFloat(pct).Mul(mark).Div(decimal.NewFromInt(int64(leverage)))
}

// Prices computes the bracket around mark. Quantity is left zero; see Quantity.
func Prices(mark float64, leverage int, side signal.Side, p Params) (Set, error) {
	if mark <= 0 {
		return Set{}, ErrInvalidMarkPrice
	}
	if leverage <= 0 {
		return Set{}, ErrInvalidLeverage
	}
	p = p.withDefaults()
	m := decimal.NewFromFloat(mark)
	sl := Offset(m, leverage, p.StopLossPct)
	tp := Offset(m, leverage, p.TakeProfitPct)

	set := Set{Side: side, EntryPrice: m.Round(p.PricePrecision), Precision: p.PricePrecision}
	switch side {
	case signal.Buy:
		set.StopLoss = m.Sub(sl).Round(p.PricePrecision)
		set.TakeProfit = m.Add(tp).Round(p.PricePrecision)
	case signal.Sell:
		set.StopLoss = m.Add(sl).Round(p.PricePrecision)
		set.TakeProfit = m.Sub(tp).Round(p.PricePrecision)
	default:
		return Set{}, fmt.Errorf("bracket: unknown side %q", side)
	}
	return set, nil
}

// Quantity is notional/mark floored to precision. A result that floors to
// zero becomes the smallest unit at that precision.
func Quantity(notional, mark float64, precision int32) (decimal.Decimal, error) {
	if mark <= 0 {
		return decimal.Zero, ErrInvalidMarkPrice
	}
	if precision < 0 {
		precision = 0
	}
	q := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(mark)).Truncate(precision)
	if q.Sign() <= 0 {
		q = decimal.New(1, -precision)
	}
	return q, nil
}

// Build combines Prices and Quantity.
func Build(mark float64, leverage int, side signal.Side, notional float64, qtyPrecision int32, p Params) (Set, error) {
	set, err := Prices(mark, leverage, side, p)
	if err != nil {
		return Set{}, err
	}
	qty, err := Quantity(notional, mark, qtyPrecision)
	if err != nil {
		return Set{}, err
	}
	set.Quantity = qty
	return set, nil
}
