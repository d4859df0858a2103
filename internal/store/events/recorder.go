package events

import (
	"context"
	"time"

	"signalbot/internal/lifecycle"
	"signalbot/internal/logger"
	"signalbot/internal/signal"
)

const recordTimeout = 3 * time.Second

// Recorder writes alerts and lifecycle events into the store.
type Recorder struct {
	store *Store
}

var _ lifecycle.Observer = (*Recorder)(nil)

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Alert(traceID string, sig signal.Signal) {
	details := map[string]any{
		"frame":     string(sig.Frame),
		"indicator": string(sig.Indicator),
	}
	if sig.Kind == signal.KindEntry {
		details["side"] = string(sig.Side)
	} else {
		details["value"] = sig.Value
	}
	r.write(&TradeEventModel{
		TraceID:  traceID,
		Exchange: sig.Exchange,
		Pair:     sig.Pair,
		Kind:     "alert",
		Action:   sig.Kind.String(),
	}, details)
}

func (r *Recorder) Observe(ev lifecycle.Event) {
	if ev.Result.Action == lifecycle.ActionObserved || ev.Result.Action == lifecycle.ActionIgnored {
		return
	}
	m := &TradeEventModel{
		TraceID: ev.TraceID,
		Kind:    "decision",
		Action:  string(ev.Result.Action),
	}
	m.Exchange, m.Pair = splitLane(ev.Lane)
	switch {
	case ev.Update != nil:
		m.Kind = "fill"
	case ev.Signal == nil:
		m.Kind = "reconcile"
	}
	details := map[string]any{"phase": string(ev.Result.Phase)}
	if ev.Result.Err != nil {
		m.Category = string(ev.Result.Err.Category)
		details["error"] = ev.Result.Err.Error()
	}
	if v := ev.Result.Verdict; v != nil {
		details["reason"] = string(v.Reason)
		details["mark_price"] = v.MarkPrice
	}
	if b := ev.Result.Bracket; b != nil {
		details["quantity"] = b.Quantity.String()
		details["take_profit"] = b.TakeProfitString()
		details["stop_loss"] = b.StopLossString()
	}
	if p := ev.Result.Position; p != nil {
		details["position_amt"] = p.Amount
	}
	if u := ev.Update; u != nil {
		details["order_id"] = u.OrderID
		details["order_type"] = u.OrderType
		details["status"] = u.Status
	}
	r.write(m, details)
}

func (r *Recorder) write(m *TradeEventModel, details any) {
	if r == nil || r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.Record(ctx, m, details); err != nil {
		logger.Warnf("events: record %s/%s failed: %v", m.Kind, m.Action, err)
	}
}

func splitLane(lane string) (string, string) {
	for i := 0; i < len(lane); i++ {
		if lane[i] == ':' {
			return lane[:i], lane[i+1:]
		}
	}
	return "", lane
}
