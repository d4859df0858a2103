// Package lifecycle serializes entry and exit decisions per exchange pair and
// drives the exchange gateway through open, close and bracket cleanup.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"signalbot/internal/bracket"
	"signalbot/internal/gateway/exchange"
	"signalbot/internal/logger"
	"signalbot/internal/requirement"
	"signalbot/internal/signal"
)

const defaultTimeout = 10 * time.Second

// Approver decides whether a flat lane may open on an entry signal.
type Approver interface {
	Evaluate(ctx context.Context, sig signal.Signal) requirement.Verdict
}

type Options struct {
	Bracket bracket.Params
	// FallbackPrecision is used when the exchange cannot report one.
	FallbackPrecision exchange.Precision
	// BaseNotional overrides the gateway's balance-derived amount when > 0.
	BaseNotional float64
	Timeout      time.Duration
	Margin       exchange.MarginType
}

type Controller struct {
	gw        exchange.Gateway
	approver  Approver
	opts      Options
	observers []Observer

	lanesMu sync.Mutex
	lanes   map[string]*sync.Mutex

	phaseMu sync.RWMutex
	phases  map[string]Phase

	fills *idSet
}

func NewController(gw exchange.Gateway, approver Approver, opts Options, observers ...Observer) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Margin == "" {
		opts.Margin = exchange.MarginIsolated
	}
	return &Controller{
		gw:        gw,
		approver:  approver,
		opts:      opts,
		observers: observers,
		lanes:     make(map[string]*sync.Mutex),
		phases:    make(map[string]Phase),
		fills:     newIDSet(4096),
	}
}

func (c *Controller) Exchange() string { return c.gw.Name() }

// AddObserver must be called before the controller handles traffic.
func (c *Controller) AddObserver(o Observer) {
	if o != nil {
		c.observers = append(c.observers, o)
	}
}

func (c *Controller) laneKey(pair string) string { return c.gw.Name() + ":" + pair }

func (c *Controller) lock(pair string) func() {
	key := c.laneKey(pair)
	c.lanesMu.Lock()
	mu, ok := c.lanes[key]
	if !ok {
		mu = &sync.Mutex{}
		c.lanes[key] = mu
	}
	c.lanesMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (c *Controller) setPhase(pair string, p Phase) {
	c.phaseMu.Lock()
	c.phases[c.laneKey(pair)] = p
	c.phaseMu.Unlock()
}

func (c *Controller) phase(pair string) Phase {
	c.phaseMu.RLock()
	defer c.phaseMu.RUnlock()
	if p, ok := c.phases[c.laneKey(pair)]; ok {
		return p
	}
	return PhaseFlat
}

// Phases returns a copy of the last observed phase per lane.
func (c *Controller) Phases() map[string]Phase {
	c.phaseMu.RLock()
	defer c.phaseMu.RUnlock()
	out := make(map[string]Phase, len(c.phases))
	for k, v := range c.phases {
		out[k] = v
	}
	return out
}

func (c *Controller) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.Timeout)
}

func (c *Controller) emit(ev Event) {
	for _, o := range c.observers {
		o.Observe(ev)
	}
}

// HandleEntry applies one entry signal: close an opposing position, ignore a
// same-direction one, or open a bracketed position when the lane is flat and
// the approver agrees. Gateway failures come back in Result.Err.
func (c *Controller) HandleEntry(ctx context.Context, sig signal.Signal) Result {
	res := c.handleEntry(ctx, sig)
	c.emit(Event{TraceID: TraceID(ctx), Lane: c.laneKey(sig.Pair), Signal: &sig, Result: res})
	return res
}

func (c *Controller) handleEntry(ctx context.Context, sig signal.Signal) Result {
	if sig.Kind != signal.KindEntry {
		return Result{Action: ActionIgnored, Phase: c.phase(sig.Pair)}
	}
	unlock := c.lock(sig.Pair)
	defer unlock()

	pos, err := c.openedPosition(ctx, sig.Pair)
	if err != nil {
		return Result{Action: ActionFailed, Phase: c.phase(sig.Pair), Err: fail(CategoryPositionQuery, "opened position", err)}
	}

	if pos != nil {
		if pos.Opposes(sig.Side) {
			return c.close(ctx, sig.Pair, *pos)
		}
		c.setPhase(sig.Pair, PhaseOpen)
		return Result{Action: ActionNoopPositioned, Phase: PhaseOpen, Position: pos}
	}

	verdictCtx, cancel := c.bounded(ctx)
	verdict := c.approver.Evaluate(verdictCtx, sig)
	cancel()
	if !verdict.Approved {
		c.setPhase(sig.Pair, PhaseFlat)
		return Result{Action: ActionRejected, Phase: PhaseFlat, Verdict: &verdict}
	}

	c.setPhase(sig.Pair, PhaseOpening)
	res := c.open(ctx, sig)
	res.Verdict = &verdict
	c.setPhase(sig.Pair, res.Phase)
	return res
}

func (c *Controller) openedPosition(ctx context.Context, pair string) (*exchange.Position, error) {
	callCtx, cancel := c.bounded(ctx)
	defer cancel()
	pos, err := c.gw.OpenedPosition(callCtx, pair)
	if err != nil {
		return nil, err
	}
	if pos != nil && pos.IsFlat() {
		return nil, nil
	}
	return pos, nil
}

func (c *Controller) close(ctx context.Context, pair string, pos exchange.Position) Result {
	c.setPhase(pair, PhaseClosing)
	callCtx, cancel := c.bounded(ctx)
	defer cancel()
	err := c.gw.ClosePosition(callCtx, pos)
	switch {
	case errors.Is(err, exchange.ErrCancelAfterClose):
		// The reduce-only order filled; only the cleanup of open orders failed.
		c.setPhase(pair, PhaseFlat)
		return Result{Action: ActionClosed, Phase: PhaseFlat, Position: &pos, Err: fail(CategoryCancel, "cancel after close", err)}
	case err != nil:
		c.setPhase(pair, PhaseOpen)
		return Result{Action: ActionFailed, Phase: PhaseOpen, Position: &pos, Err: fail(CategoryClose, "close position", err)}
	}
	c.setPhase(pair, PhaseFlat)
	return Result{Action: ActionClosed, Phase: PhaseFlat, Position: &pos}
}

func (c *Controller) open(ctx context.Context, sig signal.Signal) Result {
	failed := func(cat Category, op string, err error) Result {
		return Result{Action: ActionFailed, Phase: PhaseFlat, Err: fail(cat, op, err)}
	}

	callCtx, cancel := c.bounded(ctx)
	_, err := c.gw.SetMarginType(callCtx, sig.Pair, c.opts.Margin)
	cancel()
	if err != nil {
		return failed(CategoryMargin, "set margin type", err)
	}

	leverage := bracket.Leverage(sig.Frame)
	callCtx, cancel = c.bounded(ctx)
	err = c.gw.SetLeverage(callCtx, sig.Pair, leverage)
	cancel()
	if err != nil {
		return failed(CategoryLeverage, "set leverage", err)
	}

	callCtx, cancel = c.bounded(ctx)
	mark, err := c.gw.MarkPrice(callCtx, sig.Pair)
	cancel()
	if err != nil {
		return failed(CategoryPrice, "mark price", err)
	}

	notional, err := c.notional(ctx)
	if err != nil {
		return failed(CategoryBalance, "amount in", err)
	}

	prec := c.precision(ctx, sig.Pair)
	params := c.opts.Bracket
	params.PricePrecision = prec.Price
	set, err := bracket.Build(mark, leverage, sig.Side, notional, prec.Quantity, params)
	if err != nil {
		return failed(CategoryOpen, "bracket prices", err)
	}

	order := exchange.BracketOrder{
		Pair:       sig.Pair,
		Side:       sig.Side,
		Quantity:   set.Quantity.String(),
		TakeProfit: set.TakeProfitString(),
		StopLoss:   set.StopLossString(),
		Leverage:   leverage,
	}
	callCtx, cancel = c.bounded(ctx)
	batch, err := c.gw.CreateOrderWithTpSl(callCtx, order)
	cancel()
	if err != nil {
		res := failed(CategoryOpen, "create order with tp/sl", err)
		res.Bracket = &set
		return res
	}

	if !batch.EntryAccepted() {
		c.cancelStrays(ctx, sig.Pair, batch)
		res := failed(CategoryOpen, "entry order", firstError(batch))
		res.Bracket = &set
		return res
	}

	res := Result{Action: ActionOpened, Phase: PhaseOpen, Bracket: &set}
	if !batch.Protected() {
		// The entry is already filled; leave it and flag it for manual attention.
		res.Err = fail(CategoryStuckPosition, "protective orders", firstError(batch))
	}
	return res
}

func (c *Controller) notional(ctx context.Context) (float64, error) {
	if c.opts.BaseNotional > 0 {
		return c.opts.BaseNotional, nil
	}
	callCtx, cancel := c.bounded(ctx)
	defer cancel()
	amount, err := c.gw.AmountIn(callCtx)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, errors.New("no available balance")
	}
	return amount, nil
}

func (c *Controller) precision(ctx context.Context, pair string) exchange.Precision {
	callCtx, cancel := c.bounded(ctx)
	defer cancel()
	p, err := c.gw.Precision(callCtx, pair)
	if err != nil {
		logger.Warnf("lifecycle: precision for %s unavailable, using fallback: %v", pair, err)
		return c.opts.FallbackPrecision
	}
	return p
}

// cancelStrays removes protective orders that were placed without an entry.
func (c *Controller) cancelStrays(ctx context.Context, pair string, batch exchange.BatchResult) {
	if len(batch.Rejected()) == len(batch.Orders) {
		return
	}
	callCtx, cancel := c.bounded(ctx)
	defer cancel()
	if err := c.gw.CancelOpenOrders(callCtx, pair); err != nil {
		logger.Failure(string(CategoryCancel), "lifecycle: cancel stray orders for %s: %v", pair, err)
	}
}

func firstError(batch exchange.BatchResult) error {
	rejected := batch.Rejected()
	if len(rejected) == 0 {
		return nil
	}
	return fmt.Errorf("%s order rejected: %w", rejected[0].Role, rejected[0].Err)
}

// HandleOrderUpdate cancels the remaining open orders once a take-profit or
// stop-loss fill closes the position. Each order ID is acted on once.
func (c *Controller) HandleOrderUpdate(ctx context.Context, upd exchange.OrderUpdate) Result {
	res := c.handleOrderUpdate(ctx, upd)
	c.emit(Event{TraceID: TraceID(ctx), Lane: c.laneKey(upd.Symbol), Update: &upd, Result: res})
	return res
}

func (c *Controller) handleOrderUpdate(ctx context.Context, upd exchange.OrderUpdate) Result {
	if !upd.ClosesBracket() {
		return Result{Action: ActionObserved, Phase: c.phase(upd.Symbol)}
	}
	if !c.fills.add(upd.OrderID) {
		return Result{Action: ActionIgnored, Phase: c.phase(upd.Symbol)}
	}

	unlock := c.lock(upd.Symbol)
	defer unlock()

	callCtx, cancel := c.bounded(ctx)
	err := c.gw.CancelOpenOrders(callCtx, upd.Symbol)
	cancel()
	c.setPhase(upd.Symbol, PhaseFlat)
	if err != nil {
		return Result{Action: ActionFailed, Phase: PhaseFlat, Err: fail(CategoryCancel, "cancel sibling orders", err)}
	}
	return Result{Action: ActionSiblingsCancelled, Phase: PhaseFlat}
}

// Reconcile re-reads every lane that was not flat. A lane whose position is
// gone gets its leftover orders cancelled, which covers fills missed while
// the order stream was down.
func (c *Controller) Reconcile(ctx context.Context) []Result {
	pairs := c.activePairs()
	out := make([]Result, 0, len(pairs))
	for _, pair := range pairs {
		res := c.reconcile(ctx, pair)
		c.emit(Event{TraceID: TraceID(ctx), Lane: c.laneKey(pair), Result: res})
		out = append(out, res)
	}
	return out
}

func (c *Controller) reconcile(ctx context.Context, pair string) Result {
	unlock := c.lock(pair)
	defer unlock()

	pos, err := c.openedPosition(ctx, pair)
	if err != nil {
		return Result{Action: ActionFailed, Phase: c.phase(pair), Err: fail(CategoryPositionQuery, "reconcile position", err)}
	}
	if pos != nil {
		c.setPhase(pair, PhaseOpen)
		return Result{Action: ActionReconciled, Phase: PhaseOpen, Position: pos}
	}
	callCtx, cancel := c.bounded(ctx)
	err = c.gw.CancelOpenOrders(callCtx, pair)
	cancel()
	c.setPhase(pair, PhaseFlat)
	if err != nil {
		return Result{Action: ActionFailed, Phase: PhaseFlat, Err: fail(CategoryCancel, "reconcile cancel", err)}
	}
	return Result{Action: ActionReconciled, Phase: PhaseFlat}
}

func (c *Controller) activePairs() []string {
	prefix := c.gw.Name() + ":"
	c.phaseMu.RLock()
	defer c.phaseMu.RUnlock()
	var out []string
	for lane, p := range c.phases {
		if p == PhaseFlat || len(lane) <= len(prefix) {
			continue
		}
		out = append(out, lane[len(prefix):])
	}
	sort.Strings(out)
	return out
}
