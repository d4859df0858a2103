// Package engine routes parsed alerts to the trend store or the lifecycle
// controller of their exchange, and feeds order fills back into it.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"signalbot/internal/gateway/exchange"
	"signalbot/internal/lifecycle"
	"signalbot/internal/logger"
	"signalbot/internal/signal"
	"signalbot/internal/trend"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AlertSink is told about every accepted alert.
type AlertSink interface {
	Alert(traceID string, sig signal.Signal)
}

type AlertSinkFunc func(traceID string, sig signal.Signal)

func (f AlertSinkFunc) Alert(traceID string, sig signal.Signal) { f(traceID, sig) }

// Venue is one exchange: its controller and, optionally, its fill stream.
type Venue struct {
	Controller *lifecycle.Controller
	Stream     exchange.FillStream
}

type Engine struct {
	store   *trend.Store
	journal trend.Journal
	venues  map[string]Venue
	sinks   []AlertSink

	wg  sync.WaitGroup
	now func() time.Time
}

func New(store *trend.Store, journal trend.Journal, venues []Venue, sinks ...AlertSink) *Engine {
	if journal == nil {
		journal = trend.NopJournal{}
	}
	e := &Engine{
		store:   store,
		journal: journal,
		venues:  make(map[string]Venue, len(venues)),
		sinks:   sinks,
		now:     time.Now,
	}
	for _, v := range venues {
		if v.Controller == nil {
			continue
		}
		e.venues[strings.ToUpper(v.Controller.Exchange())] = v
	}
	return e
}

// Outcome describes what Handle did with one alert.
type Outcome struct {
	TraceID string
	Signal  signal.Signal
	Stored  bool
	Ignored bool
	Result  *lifecycle.Result
}

// Handle applies sig synchronously.
func (e *Engine) Handle(ctx context.Context, sig signal.Signal) Outcome {
	traceID := lifecycle.TraceID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = lifecycle.WithTraceID(ctx, traceID)
	}
	out := Outcome{TraceID: traceID, Signal: sig}
	e.announce(traceID, sig)

	switch sig.Kind {
	case signal.KindTrend:
		e.storeTrend(ctx, sig)
		out.Stored = true
	case signal.KindEntry:
		venue, ok := e.venues[strings.ToUpper(sig.Exchange)]
		if !ok {
			logger.Warnf("engine: no exchange %q configured, ignoring %s", sig.Exchange, sig)
			out.Ignored = true
			return out
		}
		res := venue.Controller.HandleEntry(ctx, sig)
		out.Result = &res
	default:
		out.Ignored = true
	}
	return out
}

// Submit stores trend alerts immediately and hands entry alerts to a
// background goroutine so the caller never waits on the exchange. The
// returned trace ID identifies the alert in logs and the event store.
func (e *Engine) Submit(ctx context.Context, sig signal.Signal) string {
	traceID := uuid.NewString()
	ctx = lifecycle.WithTraceID(ctx, traceID)
	if sig.Kind != signal.KindEntry {
		e.Handle(ctx, sig)
		return traceID
	}
	detached := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Handle(detached, sig)
	}()
	return traceID
}

// Wait blocks until every submitted entry has been handled. Reconcile passes
// belong to RunOrderStream.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) announce(traceID string, sig signal.Signal) {
	logger.Channelf(logger.ChannelAlert, "alert",
		"trace_id", traceID, "exchange", sig.Exchange, "pair", sig.Pair,
		"frame", string(sig.Frame), "indicator", string(sig.Indicator), "payload", payload(sig))
	for _, s := range e.sinks {
		s.Alert(traceID, sig)
	}
}

func payload(sig signal.Signal) string {
	if sig.Kind == signal.KindEntry {
		return string(sig.Side)
	}
	return fmt.Sprintf("%g", sig.Value)
}

func (e *Engine) storeTrend(ctx context.Context, sig signal.Signal) {
	key := sig.Key()
	e.store.Set(key, sig.Value)
	if err := e.journal.Append(ctx, trend.Record{Key: key, Value: sig.Value, At: e.now()}); err != nil {
		logger.Warnf("engine: journal append %s failed: %v", key, err)
	}
}

// RunOrderStream consumes every venue's fill stream until ctx is done. Each
// (re)connect triggers a reconcile pass on that venue; passes still running
// when a stream ends are waited for before RunOrderStream returns.
func (e *Engine) RunOrderStream(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, venue := range e.venues {
		if venue.Stream == nil {
			continue
		}
		name, venue := name, venue
		g.Go(func() error {
			return e.consume(ctx, name, venue)
		})
	}
	return g.Wait()
}

func (e *Engine) consume(ctx context.Context, name string, venue Venue) error {
	reconciles := &reconcileGroup{}
	defer reconciles.Close()
	updates, err := venue.Stream.SubscribeOrderUpdates(ctx, exchange.StreamOptions{
		OnConnect: func() {
			if ctx.Err() != nil {
				return
			}
			reconciles.Go(func() {
				venue.Controller.Reconcile(lifecycle.WithTraceID(ctx, uuid.NewString()))
			})
		},
		OnDisconnect: func(err error) {
			logger.Warnf("engine: %s order stream disconnected: %v", name, err)
		},
	})
	if err != nil {
		return fmt.Errorf("%s order stream: %w", name, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			venue.Controller.HandleOrderUpdate(lifecycle.WithTraceID(ctx, uuid.NewString()), upd)
		}
	}
}

// reconcileGroup tracks reconcile passes started from stream callbacks. Go
// after Close is a no-op, so Close can wait without racing late callbacks.
type reconcileGroup struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (r *reconcileGroup) Go(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
	return true
}

// Close refuses new passes and waits for running ones.
func (r *reconcileGroup) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
