package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"signalbot/internal/gateway/exchange"
	"signalbot/internal/logger"
	"signalbot/internal/pkg/circuit"
	symbolpkg "signalbot/internal/pkg/symbol"
	"signalbot/internal/signal"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const Name = "BINANCE"

// codeMarginTypeUnchanged is "No need to change margin type."
const codeMarginTypeUnchanged = -4046

var testnetOnce sync.Once

// Gateway implements exchange.Gateway and exchange.FillStream on USDⓈ-M
// futures.
type Gateway struct {
	cfg     Config
	client  *futures.Client
	breaker *circuit.Breaker
	prec    *precisionCache

	statsMu sync.Mutex
	stats   StreamStats
}

var (
	_ exchange.Gateway    = (*Gateway)(nil)
	_ exchange.FillStream = (*Gateway)(nil)
)

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	if final.Testnet {
		// The SDK reads this flag when resolving REST and websocket endpoints.
		testnetOnce.Do(func() { futures.UseTestnet = true })
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = restBaseURL(final)
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	if final.ProxyEnabled {
		wsProxy := final.WSProxyURL
		if wsProxy == "" {
			wsProxy = final.RESTProxyURL
		}
		if wsProxy != "" {
			futures.SetWsProxyUrl(wsProxy)
		}
	}

	breaker := circuit.New("binance", final.BreakerThreshold, final.BreakerCooldown)
	breaker.CountOnly(isTransportFailure)

	g := &Gateway{cfg: final, client: client, breaker: breaker}
	g.prec = newPrecisionCache(final.PrecisionTTL, g.loadPrecisions)
	return g, nil
}

// restBaseURL honors an explicit override, otherwise follows Testnet.
func restBaseURL(cfg Config) string {
	switch {
	case cfg.RESTBaseURL != "":
		return cfg.RESTBaseURL
	case cfg.Testnet:
		return futures.BaseApiTestnetUrl
	default:
		return futures.BaseApiMainUrl
	}
}

func (g *Gateway) Name() string { return Name }

// call runs fn behind the circuit breaker.
func (g *Gateway) call(op string, fn func() error) error {
	err := g.breaker.Do(fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, circuit.ErrOpen) {
		return fmt.Errorf("%s: %w", op, exchange.ErrCircuitOpen)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (g *Gateway) MarkPrice(ctx context.Context, pair string) (float64, error) {
	sym := symbolpkg.Normalize(pair)
	var price float64
	err := g.call("mark price", func() error {
		res, err := g.client.NewPremiumIndexService().Symbol(sym).Do(ctx)
		if err != nil {
			return err
		}
		for _, p := range res {
			if p != nil && strings.EqualFold(p.Symbol, sym) {
				price = parseFloat(p.MarkPrice)
				break
			}
		}
		if price <= 0 {
			return fmt.Errorf("no mark price for %s", sym)
		}
		return nil
	})
	return price, err
}

func (g *Gateway) OpenedPosition(ctx context.Context, pair string) (*exchange.Position, error) {
	sym := symbolpkg.Normalize(pair)
	var risks []*futures.PositionRisk
	err := g.call("position risk", func() error {
		var err error
		risks, err = g.client.NewGetPositionRiskService().Symbol(sym).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pickPosition(sym, risks), nil
}

// pickPosition returns the first non-zero position for sym, or nil.
func pickPosition(sym string, risks []*futures.PositionRisk) *exchange.Position {
	for _, r := range risks {
		if r == nil || !strings.EqualFold(r.Symbol, sym) {
			continue
		}
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := strings.ToUpper(strings.TrimSpace(r.PositionSide))
		if side == "" {
			side = exchange.PositionSideBoth
		}
		return &exchange.Position{
			Symbol:       strings.ToUpper(r.Symbol),
			PositionSide: side,
			Amount:       amt,
			RawAmount:    r.PositionAmt,
		}
	}
	return nil
}

func (g *Gateway) ClosePosition(ctx context.Context, pos exchange.Position) error {
	if pos.IsFlat() {
		return nil
	}
	qty := strings.TrimPrefix(strings.TrimSpace(pos.RawAmount), "-")
	if qty == "" {
		qty = strconv.FormatFloat(absFloat(pos.Amount), 'f', -1, 64)
	}
	side := futures.SideTypeSell
	if pos.IsShort() {
		side = futures.SideTypeBuy
	}
	err := g.call("close position", func() error {
		svc := g.client.NewCreateOrderService().
			Symbol(pos.Symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(qty).
			ReduceOnly(true)
		if pos.PositionSide == exchange.PositionSideLong || pos.PositionSide == exchange.PositionSideShort {
			svc = svc.PositionSide(futures.PositionSideType(pos.PositionSide))
		}
		_, err := svc.Do(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if err := g.CancelOpenOrders(ctx, pos.Symbol); err != nil {
		return fmt.Errorf("%w: %w", exchange.ErrCancelAfterClose, err)
	}
	return nil
}

func (g *Gateway) CancelOpenOrders(ctx context.Context, pair string) error {
	sym := symbolpkg.Normalize(pair)
	return g.call("cancel open orders", func() error {
		return g.client.NewCancelAllOpenOrdersService().Symbol(sym).Do(ctx)
	})
}

func (g *Gateway) CreateOrderWithTpSl(ctx context.Context, order exchange.BracketOrder) (exchange.BatchResult, error) {
	sym := symbolpkg.Normalize(order.Pair)
	entrySide, exitSide := futures.SideTypeBuy, futures.SideTypeSell
	if order.Side == signal.Sell {
		entrySide, exitSide = futures.SideTypeSell, futures.SideTypeBuy
	}
	entry := g.client.NewCreateOrderService().
		Symbol(sym).
		Side(entrySide).
		Type(futures.OrderTypeMarket).
		Quantity(order.Quantity)
	takeProfit := g.client.NewCreateOrderService().
		Symbol(sym).
		Side(exitSide).
		Type(futures.OrderTypeTakeProfitMarket).
		StopPrice(order.TakeProfit).
		WorkingType(futures.WorkingTypeMarkPrice).
		PriceProtect(true).
		ClosePosition(true)
	stopLoss := g.client.NewCreateOrderService().
		Symbol(sym).
		Side(exitSide).
		Type(futures.OrderTypeStopMarket).
		StopPrice(order.StopLoss).
		WorkingType(futures.WorkingTypeMarkPrice).
		PriceProtect(true).
		ClosePosition(true)

	roles := []exchange.OrderRole{exchange.RoleEntry, exchange.RoleTakeProfit, exchange.RoleStopLoss}
	var resp *futures.CreateBatchOrdersResponse
	err := g.call("batch orders", func() error {
		var err error
		resp, err = g.client.NewCreateBatchOrdersService().
			OrderList([]*futures.CreateOrderService{entry, takeProfit, stopLoss}).
			Do(ctx)
		return err
	})
	if err != nil {
		return exchange.BatchResult{}, err
	}
	return batchResult(roles, resp), nil
}

// batchResult maps batch responses onto bracket roles. Errors is indexed by
// request position; Orders holds only the accepted ones, in request order.
func batchResult(roles []exchange.OrderRole, resp *futures.CreateBatchOrdersResponse) exchange.BatchResult {
	out := exchange.BatchResult{Orders: make([]exchange.OrderResult, 0, len(roles))}
	next := 0
	for i, role := range roles {
		res := exchange.OrderResult{Role: role}
		switch {
		case resp == nil:
			res.Err = fmt.Errorf("empty batch response")
		case i < len(resp.Errors) && resp.Errors[i] != nil:
			res.Err = resp.Errors[i]
		case next < len(resp.Orders) && resp.Orders[next] != nil:
			res.OrderID = resp.Orders[next].OrderID
			next++
		default:
			res.Err = fmt.Errorf("no response for %s order", role)
		}
		out.Orders = append(out.Orders, res)
	}
	return out
}

func (g *Gateway) SetLeverage(ctx context.Context, pair string, leverage int) error {
	sym := symbolpkg.Normalize(pair)
	return g.call("change leverage", func() error {
		_, err := g.client.NewChangeLeverageService().Symbol(sym).Leverage(leverage).Do(ctx)
		return err
	})
}

func (g *Gateway) SetMarginType(ctx context.Context, pair string, margin exchange.MarginType) (exchange.MarginStatus, error) {
	sym := symbolpkg.Normalize(pair)
	mt := futures.MarginTypeIsolated
	if margin == exchange.MarginCrossed {
		mt = futures.MarginTypeCrossed
	}
	status := exchange.MarginChanged
	err := g.call("change margin type", func() error {
		err := g.client.NewChangeMarginTypeService().Symbol(sym).MarginType(mt).Do(ctx)
		if isMarginAlreadySet(err) {
			status = exchange.MarginAlreadySet
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (g *Gateway) AmountIn(ctx context.Context) (float64, error) {
	var balances []*futures.Balance
	err := g.call("balance", func() error {
		var err error
		balances, err = g.client.NewGetBalanceService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	avail, ok := availableBalance(balances, g.cfg.QuoteAsset)
	if !ok {
		return 0, fmt.Errorf("balance: no %s asset", g.cfg.QuoteAsset)
	}
	return avail * g.cfg.BalanceFraction, nil
}

func availableBalance(balances []*futures.Balance, asset string) (float64, bool) {
	for _, b := range balances {
		if b != nil && strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.AvailableBalance), true
		}
	}
	return 0, false
}

func (g *Gateway) Precision(ctx context.Context, pair string) (exchange.Precision, error) {
	return g.prec.get(ctx, symbolpkg.Normalize(pair))
}

func (g *Gateway) loadPrecisions(ctx context.Context) (map[string]exchange.Precision, error) {
	var info *futures.ExchangeInfo
	err := g.call("exchange info", func() error {
		var err error
		info, err = g.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]exchange.Precision, len(info.Symbols))
	for _, s := range info.Symbols {
		out[strings.ToUpper(s.Symbol)] = exchange.Precision{
			Price:    int32(s.PricePrecision),
			Quantity: int32(s.QuantityPrecision),
		}
	}
	logger.Debugf("[binance] loaded precision for %d symbols", len(out))
	return out, nil
}

func isMarginAlreadySet(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeMarginTypeUnchanged
}

// isTransportFailure keeps exchange-side rejections out of the breaker count.
func isTransportFailure(err error) bool {
	var apiErr *common.APIError
	return !errors.As(err, &apiErr)
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
