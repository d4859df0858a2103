// Package requirement decides whether an entry signal may open a position,
// based on the stored moving averages and trend signs.
package requirement

import (
	"context"
	"math"

	"signalbot/internal/signal"
	"signalbot/internal/trend"
)

const DefaultMaxDeviation = 0.03

// DefaultConfirmFrames is the intraday ladder checked from the signal's frame
// upward.
var DefaultConfirmFrames = []signal.Timeframe{
	signal.Frame1h, signal.Frame2h, signal.Frame3h, signal.Frame4h, signal.Frame6h,
}

type Reason string

const (
	ReasonApproved            Reason = "approved"
	ReasonNotEntry            Reason = "not-entry"
	ReasonPriceUnavailable    Reason = "price-unavailable"
	ReasonMAMissing           Reason = "ma-missing"
	ReasonPriceDeviation      Reason = "price-deviation"
	ReasonDailyTrendMissing   Reason = "daily-trend-missing"
	ReasonDailyTrendAgrees    Reason = "daily-trend-agrees"
	ReasonLocalTrendMissing   Reason = "local-trend-missing"
	ReasonLocalTrendDisagrees Reason = "local-trend-disagrees"
)

// Verdict is the evaluator's answer. Frame is set for local-trend rejections.
type Verdict struct {
	Approved  bool             `json:"approved"`
	Reason    Reason           `json:"reason"`
	MarkPrice float64          `json:"mark_price,omitempty"`
	MA        float64          `json:"ma,omitempty"`
	Deviation float64          `json:"deviation,omitempty"`
	Frame     signal.Timeframe `json:"frame,omitempty"`
}

// PriceSource supplies the current mark price.
type PriceSource interface {
	MarkPrice(ctx context.Context, pair string) (float64, error)
}

type Evaluator struct {
	Store         *trend.Store
	Prices        PriceSource
	MaxDeviation  float64
	ConfirmFrames []signal.Timeframe
}

func New(store *trend.Store, prices PriceSource) *Evaluator {
	return &Evaluator{
		Store:         store,
		Prices:        prices,
		MaxDeviation:  DefaultMaxDeviation,
		ConfirmFrames: DefaultConfirmFrames,
	}
}

// Evaluate is fail-closed: any missing sample or failed price fetch denies.
func (e *Evaluator) Evaluate(ctx context.Context, sig signal.Signal) Verdict {
	if sig.Kind != signal.KindEntry {
		return deny(ReasonNotEntry)
	}

	mark, err := e.Prices.MarkPrice(ctx, sig.Pair)
	if err != nil || mark <= 0 || math.IsNaN(mark) {
		return deny(ReasonPriceUnavailable)
	}
	v := Verdict{MarkPrice: mark}

	ma, ok := e.Store.Get(e.key(sig, sig.Frame, signal.IndicatorMA))
	if !ok {
		v.Reason = ReasonMAMissing
		return v
	}
	v.MA = ma
	v.Deviation = math.Abs(mark-ma) / mark
	if v.Deviation > e.maxDeviation() {
		v.Reason = ReasonPriceDeviation
		return v
	}

	daily, ok := e.Store.Get(e.key(sig, signal.Frame1d, signal.IndicatorTR))
	if !ok {
		v.Reason = ReasonDailyTrendMissing
		return v
	}
	if agrees(sig.Side, daily) {
		v.Reason = ReasonDailyTrendAgrees
		v.Frame = signal.Frame1d
		return v
	}

	for _, frame := range e.ladder(sig.Frame) {
		local, ok := e.Store.Get(e.key(sig, frame, signal.IndicatorTR))
		if !ok {
			v.Reason = ReasonLocalTrendMissing
			v.Frame = frame
			return v
		}
		if disagrees(sig.Side, local) {
			v.Reason = ReasonLocalTrendDisagrees
			v.Frame = frame
			return v
		}
	}

	v.Approved = true
	v.Reason = ReasonApproved
	return v
}

// ladder returns the confirm frames ranked at or above from. A 1d signal
// has no intraday frames to confirm.
func (e *Evaluator) ladder(from signal.Timeframe) []signal.Timeframe {
	frames := e.ConfirmFrames
	if len(frames) == 0 {
		frames = DefaultConfirmFrames
	}
	rank := from.Rank()
	out := make([]signal.Timeframe, 0, len(frames))
	for _, f := range frames {
		if f == signal.Frame1d {
			continue
		}
		if f.Rank() >= rank {
			out = append(out, f)
		}
	}
	return out
}

func (e *Evaluator) maxDeviation() float64 {
	if e.MaxDeviation <= 0 {
		return DefaultMaxDeviation
	}
	return e.MaxDeviation
}

func (e *Evaluator) key(sig signal.Signal, frame signal.Timeframe, ind signal.Indicator) signal.TrendKey {
	return signal.TrendKey{Exchange: sig.Exchange, Pair: sig.Pair, Frame: frame, Indicator: ind}
}

func agrees(side signal.Side, tr float64) bool {
	return (side == signal.Buy && tr > 0) || (side == signal.Sell && tr < 0)
}

func disagrees(side signal.Side, tr float64) bool {
	return (side == signal.Buy && tr < 0) || (side == signal.Sell && tr > 0)
}

func deny(r Reason) Verdict { return Verdict{Reason: r} }

// ParseFrames converts configured frame names, dropping unknown ones.
func ParseFrames(names []string) []signal.Timeframe {
	out := make([]signal.Timeframe, 0, len(names))
	for _, n := range names {
		if f, ok := signal.ParseTimeframe(n); ok && f != signal.Frame1d {
			out = append(out, f)
		}
	}
	return out
}
