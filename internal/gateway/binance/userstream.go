package binance

import (
	"context"
	"strings"
	"sync"
	"time"

	"signalbot/internal/gateway/exchange"
	"signalbot/internal/logger"

	"github.com/adshao/go-binance/v2/futures"
)

const eventOrderTradeUpdate = "ORDER_TRADE_UPDATE"

// StreamStats counts user-data stream health.
type StreamStats struct {
	Reconnects      int
	SubscribeErrors int
	KeepaliveErrors int
	LastError       string
}

// SubscribeOrderUpdates opens the user data stream and delivers order
// execution reports until ctx is done. The stream reconnects with a fresh
// listen key after every disconnect.
func (g *Gateway) SubscribeOrderUpdates(ctx context.Context, opts exchange.StreamOptions) (<-chan exchange.OrderUpdate, error) {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	out := make(chan exchange.OrderUpdate, buffer)
	go func() {
		defer close(out)
		g.runUserStream(ctx, out, opts)
	}()
	return out, nil
}

func (g *Gateway) runUserStream(ctx context.Context, out chan<- exchange.OrderUpdate, opts exchange.StreamOptions) {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		listenKey, err := g.client.NewStartUserStreamService().Do(ctx)
		if err != nil {
			g.recordSubscribeError(err)
			if opts.OnDisconnect != nil {
				opts.OnDisconnect(err)
			}
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		var errMu sync.Mutex
		var lastErr error
		handler := func(event *futures.WsUserDataEvent) {
			upd, ok := convertOrderUpdate(event)
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
			case out <- upd:
			}
		}
		errHandler := func(err error) {
			if err == nil {
				return
			}
			errMu.Lock()
			lastErr = err
			errMu.Unlock()
		}
		doneC, stopC, err := futures.WsUserDataServe(listenKey, handler, errHandler)
		if err != nil {
			g.recordSubscribeError(err)
			g.closeListenKey(listenKey)
			if opts.OnDisconnect != nil {
				opts.OnDisconnect(err)
			}
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		logger.Infof("[binance] user data stream connected")
		if opts.OnConnect != nil {
			opts.OnConnect()
		}

		keepCtx, stopKeepalive := context.WithCancel(ctx)
		go g.keepalive(keepCtx, listenKey)

		select {
		case <-ctx.Done():
			stopKeepalive()
			close(stopC)
			<-doneC
			g.closeListenKey(listenKey)
			return
		case <-doneC:
		}
		stopKeepalive()
		close(stopC)
		g.closeListenKey(listenKey)
		errMu.Lock()
		errCopy := lastErr
		errMu.Unlock()
		g.recordReconnect(errCopy)
		logger.Warnf("[binance] user data stream disconnected: %v", errCopy)
		if opts.OnDisconnect != nil {
			opts.OnDisconnect(errCopy)
		}
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

func (g *Gateway) keepalive(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(g.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				g.statsMu.Lock()
				g.stats.KeepaliveErrors++
				g.stats.LastError = err.Error()
				g.statsMu.Unlock()
				logger.Warnf("[binance] listen key keepalive failed: %v", err)
			}
		}
	}
}

func (g *Gateway) closeListenKey(listenKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.client.NewCloseUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
		logger.Debugf("[binance] close listen key: %v", err)
	}
}

func convertOrderUpdate(ev *futures.WsUserDataEvent) (exchange.OrderUpdate, bool) {
	if ev == nil || string(ev.Event) != eventOrderTradeUpdate {
		return exchange.OrderUpdate{}, false
	}
	o := ev.OrderTradeUpdate
	symbol := strings.ToUpper(strings.TrimSpace(o.Symbol))
	if symbol == "" {
		return exchange.OrderUpdate{}, false
	}
	orderType := strings.ToUpper(string(o.OriginalType))
	if orderType == "" {
		orderType = strings.ToUpper(string(o.Type))
	}
	ts := ev.Time
	if ts == 0 {
		ts = ev.TransactionTime
	}
	return exchange.OrderUpdate{
		Symbol:        symbol,
		OrderID:       o.ID,
		OrderType:     orderType,
		ExecutionType: strings.ToUpper(string(o.ExecutionType)),
		Status:        strings.ToUpper(string(o.Status)),
		Time:          time.UnixMilli(ts),
	}, true
}

func (g *Gateway) Stats() StreamStats {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	return g.stats
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}

func (g *Gateway) recordSubscribeError(err error) {
	if err == nil {
		return
	}
	g.statsMu.Lock()
	g.stats.SubscribeErrors++
	g.stats.LastError = err.Error()
	g.statsMu.Unlock()
	logger.Warnf("[binance] user data stream subscribe failed: %v", err)
}

func (g *Gateway) recordReconnect(err error) {
	g.statsMu.Lock()
	g.stats.Reconnects++
	if err != nil && err.Error() != "" {
		g.stats.LastError = err.Error()
	}
	g.statsMu.Unlock()
}
