// Package signal models the alerts pushed by the charting source.
package signal

import (
	"fmt"
	"strings"

	"signalbot/internal/pkg/symbol"
)

// Timeframe is one of the fixed chart intervals, ordered by duration.
type Timeframe string

const (
	Frame1h Timeframe = "1h"
	Frame2h Timeframe = "2h"
	Frame3h Timeframe = "3h"
	Frame4h Timeframe = "4h"
	Frame6h Timeframe = "6h"
	Frame1d Timeframe = "1d"
)

var frameOrder = []Timeframe{Frame1h, Frame2h, Frame3h, Frame4h, Frame6h, Frame1d}

// Frames returns every supported timeframe, shortest first.
func Frames() []Timeframe {
	return append([]Timeframe(nil), frameOrder...)
}

// Rank is the position of the frame in the ordered set, or -1 when unknown.
func (f Timeframe) Rank() int {
	for i, v := range frameOrder {
		if v == f {
			return i
		}
	}
	return -1
}

func (f Timeframe) Valid() bool { return f.Rank() >= 0 }

func ParseTimeframe(s string) (Timeframe, bool) {
	f := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	return f, f.Valid()
}

// Indicator names what an alert reports.
type Indicator string

const (
	IndicatorMA Indicator = "MA" // moving average sample
	IndicatorTR Indicator = "TR" // trend sign
	IndicatorSI Indicator = "SI" // entry/exit signal
)

func ParseIndicator(s string) (Indicator, bool) {
	switch ind := Indicator(strings.ToUpper(strings.TrimSpace(s))); ind {
	case IndicatorMA, IndicatorTR, IndicatorSI:
		return ind, true
	default:
		return "", false
	}
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, bool) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case Buy, Sell:
		return side, true
	default:
		return "", false
	}
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Kind discriminates the two payload shapes a Signal can carry.
type Kind int

const (
	KindTrend Kind = iota + 1
	KindEntry
)

func (k Kind) String() string {
	switch k {
	case KindTrend:
		return "trend"
	case KindEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// Signal is one parsed alert. Trend signals (MA, TR) carry Value; entry
// signals (SI) carry Side. The other payload field is always zero.
type Signal struct {
	Exchange  string
	Pair      string
	Frame     Timeframe
	Indicator Indicator
	Kind      Kind
	Value     float64
	Side      Side
}

// Key is the trend store key this signal writes to.
func (s Signal) Key() TrendKey {
	return TrendKey{Exchange: s.Exchange, Pair: s.Pair, Frame: s.Frame, Indicator: s.Indicator}
}

// Lane identifies the exchange/pair the signal acts on.
func (s Signal) Lane() string {
	return s.Exchange + ":" + s.Pair
}

func (s Signal) String() string {
	if s.Kind == KindEntry {
		return fmt.Sprintf("%s %s %s %s %s", s.Exchange, s.Pair, s.Frame, s.Indicator, s.Side)
	}
	return fmt.Sprintf("%s %s %s %s %g", s.Exchange, s.Pair, s.Frame, s.Indicator, s.Value)
}

// TrendKey is the composite store key exchange:pair:frame:indicator.
type TrendKey struct {
	Exchange  string
	Pair      string
	Frame     Timeframe
	Indicator Indicator
}

func (k TrendKey) String() string {
	return k.Exchange + ":" + k.Pair + ":" + string(k.Frame) + ":" + string(k.Indicator)
}

// ParseTrendKey reverses TrendKey.String.
func ParseTrendKey(raw string) (TrendKey, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 4 {
		return TrendKey{}, fmt.Errorf("trend key %q: want 4 segments, got %d", raw, len(parts))
	}
	frame, ok := ParseTimeframe(parts[2])
	if !ok {
		return TrendKey{}, fmt.Errorf("trend key %q: unknown frame %q", raw, parts[2])
	}
	ind, ok := ParseIndicator(parts[3])
	if !ok {
		return TrendKey{}, fmt.Errorf("trend key %q: unknown indicator %q", raw, parts[3])
	}
	exchange := strings.ToUpper(strings.TrimSpace(parts[0]))
	pair := symbol.Normalize(parts[1])
	if exchange == "" || pair == "" {
		return TrendKey{}, fmt.Errorf("trend key %q: empty exchange or pair", raw)
	}
	return TrendKey{Exchange: exchange, Pair: pair, Frame: frame, Indicator: ind}, nil
}
