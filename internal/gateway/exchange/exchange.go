package exchange

import (
	"context"
	"errors"
)

// ErrCircuitOpen is returned when a binding refuses calls after repeated
// failures.
var ErrCircuitOpen = errors.New("exchange circuit open")

// ErrCancelAfterClose marks a ClosePosition whose reduce-only order went
// through but whose follow-up cancel of open orders failed. The position is
// flat when this is returned.
var ErrCancelAfterClose = errors.New("position closed, cancel open orders failed")

// Gateway is the capability set the lifecycle controller needs from a futures
// exchange. Every call may fail; bindings never retry on their own.
type Gateway interface {
	Name() string

	MarkPrice(ctx context.Context, pair string) (float64, error)

	// OpenedPosition returns nil when the pair is flat.
	OpenedPosition(ctx context.Context, pair string) (*Position, error)

	// ClosePosition sends a reduce-only market order for |Amount| on the
	// opposite side, then cancels the symbol's open orders. A failure of the
	// cancel step alone wraps ErrCancelAfterClose.
	ClosePosition(ctx context.Context, pos Position) error

	CancelOpenOrders(ctx context.Context, pair string) error

	CreateOrderWithTpSl(ctx context.Context, order BracketOrder) (BatchResult, error)

	SetLeverage(ctx context.Context, pair string, leverage int) error

	SetMarginType(ctx context.Context, pair string, margin MarginType) (MarginStatus, error)

	// AmountIn is the quote notional for one entry.
	AmountIn(ctx context.Context) (float64, error)

	Precision(ctx context.Context, pair string) (Precision, error)
}

// FillStream delivers order execution reports.
type FillStream interface {
	SubscribeOrderUpdates(ctx context.Context, opts StreamOptions) (<-chan OrderUpdate, error)
}

type StreamOptions struct {
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}
