package metrics

import (
	"context"
	"time"

	"signalbot/internal/gateway/exchange"
)

// Gateway times every call of the wrapped exchange.Gateway.
type Gateway struct {
	exchange.Gateway
	m *Metrics
}

func (m *Metrics) Instrument(gw exchange.Gateway) *Gateway {
	return &Gateway{Gateway: gw, m: m}
}

func (g *Gateway) observe(op string, start time.Time) {
	g.m.gatewayCalls.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (g *Gateway) MarkPrice(ctx context.Context, pair string) (float64, error) {
	defer g.observe("mark_price", time.Now())
	return g.Gateway.MarkPrice(ctx, pair)
}

func (g *Gateway) OpenedPosition(ctx context.Context, pair string) (*exchange.Position, error) {
	defer g.observe("opened_position", time.Now())
	return g.Gateway.OpenedPosition(ctx, pair)
}

func (g *Gateway) ClosePosition(ctx context.Context, pos exchange.Position) error {
	defer g.observe("close_position", time.Now())
	return g.Gateway.ClosePosition(ctx, pos)
}

func (g *Gateway) CancelOpenOrders(ctx context.Context, pair string) error {
	defer g.observe("cancel_open_orders", time.Now())
	return g.Gateway.CancelOpenOrders(ctx, pair)
}

func (g *Gateway) CreateOrderWithTpSl(ctx context.Context, order exchange.BracketOrder) (exchange.BatchResult, error) {
	defer g.observe("create_order_with_tp_sl", time.Now())
	return g.Gateway.CreateOrderWithTpSl(ctx, order)
}

func (g *Gateway) SetLeverage(ctx context.Context, pair string, leverage int) error {
	defer g.observe("set_leverage", time.Now())
	return g.Gateway.SetLeverage(ctx, pair, leverage)
}

func (g *Gateway) SetMarginType(ctx context.Context, pair string, margin exchange.MarginType) (exchange.MarginStatus, error) {
	defer g.observe("set_margin_type", time.Now())
	return g.Gateway.SetMarginType(ctx, pair, margin)
}

func (g *Gateway) AmountIn(ctx context.Context) (float64, error) {
	defer g.observe("amount_in", time.Now())
	return g.Gateway.AmountIn(ctx)
}

func (g *Gateway) Precision(ctx context.Context, pair string) (exchange.Precision, error) {
	defer g.observe("precision", time.Now())
	return g.Gateway.Precision(ctx, pair)
}
