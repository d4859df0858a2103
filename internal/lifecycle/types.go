package lifecycle

import (
	"context"
	"fmt"

	"signalbot/internal/bracket"
	"signalbot/internal/gateway/exchange"
	"signalbot/internal/requirement"
	"signalbot/internal/signal"
)

// Phase is the last observed lifecycle state of a lane. It is informational:
// every decision re-reads the exchange position.
type Phase string

const (
	PhaseFlat    Phase = "flat"
	PhaseOpening Phase = "opening"
	PhaseOpen    Phase = "open"
	PhaseClosing Phase = "closing"
)

type Action string

const (
	ActionClosed            Action = "closed"
	ActionOpened            Action = "opened"
	ActionNoopPositioned    Action = "noop-positioned"
	ActionRejected          Action = "rejected"
	ActionFailed            Action = "failed"
	ActionIgnored           Action = "ignored"
	ActionSiblingsCancelled Action = "siblings-cancelled"
	ActionObserved          Action = "observed"
	ActionReconciled        Action = "reconciled"
)

type Category string

const (
	CategoryOpen          Category = "open-failure"
	CategoryClose         Category = "close-failure"
	CategoryMargin        Category = "margin-failure"
	CategoryLeverage      Category = "leverage-failure"
	CategoryPositionQuery Category = "position-query-failure"
	CategoryPrice         Category = "price-failure"
	CategoryBalance       Category = "balance-failure"
	CategoryCancel        Category = "cancel-failure"
	CategoryStuckPosition Category = "stuck-position"
)

// Failure is a gateway-facing step that did not complete.
type Failure struct {
	Category Category
	Op       string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Category, f.Op)
	}
	return fmt.Sprintf("%s: %s: %v", f.Category, f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(cat Category, op string, err error) *Failure {
	return &Failure{Category: cat, Op: op, Err: err}
}

// Result is what one alert or fill did to its lane.
type Result struct {
	Action   Action
	Phase    Phase
	Position *exchange.Position
	Verdict  *requirement.Verdict
	Bracket  *bracket.Set
	Err      *Failure
}

// Event is handed to observers after every handled alert, fill and
// reconcile step.
type Event struct {
	TraceID string
	Lane    string
	Signal  *signal.Signal
	Update  *exchange.OrderUpdate
	Result  Result
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

type traceKey struct{}

// WithTraceID tags ctx so observers can correlate an event with its alert.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
