package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signalbot/internal/bracket"
	"signalbot/internal/config"
	"signalbot/internal/engine"
	"signalbot/internal/gateway/binance"
	"signalbot/internal/gateway/exchange"
	"signalbot/internal/gateway/notifier"
	"signalbot/internal/lifecycle"
	"signalbot/internal/logger"
	"signalbot/internal/metrics"
	"signalbot/internal/requirement"
	"signalbot/internal/signal"
	"signalbot/internal/store/events"
	"signalbot/internal/store/journal"
	signalhttp "signalbot/internal/transport/http/signal"
	"signalbot/internal/trend"
)

// VenueGateway is one exchange gateway and, optionally, its fill stream.
type VenueGateway struct {
	Gateway exchange.Gateway
	Stream  exchange.FillStream
}

type AppBuilder struct {
	cfg     *config.Config
	cfgPath string

	journalFn  func(config.TrendConfig) (trend.Journal, error)
	eventsFn   func(config.StoreConfig) (*events.Store, error)
	gatewaysFn func(*config.Config) ([]VenueGateway, error)
	notifierFn func(config.TelegramConfig) (notifier.TextNotifier, error)
}

type AppBuilderOption func(*AppBuilder)

func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.cfgPath = strings.TrimSpace(path) }
}

// WithGateways replaces the configured exchanges (tests, paper harnesses).
func WithGateways(fn func(*config.Config) ([]VenueGateway, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.gatewaysFn = fn
		}
	}
}

func WithNotifier(fn func(config.TelegramConfig) (notifier.TextNotifier, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.notifierFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		journalFn:  buildTrendJournal,
		eventsFn:   buildEventStore,
		gatewaysFn: buildGateways,
		notifierFn: buildTelegram,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	app := &App{cfg: cfg, cfgPath: b.cfgPath}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	store := trend.NewStore()
	tj, err := b.journalFn(cfg.Trend)
	if err != nil {
		return fail(fmt.Errorf("open trend journal: %w", err))
	}
	app.closers = append(app.closers, tj.Close)
	replayed := 0
	if cfg.Trend.Replay {
		if replayed, err = trend.Hydrate(ctx, store, tj); err != nil {
			return fail(fmt.Errorf("replay trend journal: %w", err))
		}
		logger.Infof("trend store warmed with %d journal records", replayed)
	}

	m := metrics.New()
	observers := []lifecycle.Observer{lifecycle.LogObserver{}, m}
	sinks := []engine.AlertSink{engine.AlertSinkFunc(func(_ string, sig signal.Signal) { m.Alert(sig) })}

	var eventStore *events.Store
	if cfg.Store.EventsEnabled {
		if eventStore, err = b.eventsFn(cfg.Store); err != nil {
			return fail(fmt.Errorf("open event store: %w", err))
		}
		app.closers = append(app.closers, eventStore.Close)
		rec := events.NewRecorder(eventStore)
		observers = append(observers, rec)
		sinks = append(sinks, rec)
	}

	if cfg.Notify.Telegram.Enabled {
		sender, err := b.notifierFn(cfg.Notify.Telegram)
		if err != nil {
			return fail(fmt.Errorf("init telegram notifier: %w", err))
		}
		app.notifier = notifier.NewObserver(sender, 64)
		observers = append(observers, app.notifier)
	}

	gateways, err := b.gatewaysFn(cfg)
	if err != nil {
		return fail(err)
	}
	venues := make([]engine.Venue, 0, len(gateways))
	phaseReaders := make([]signalhttp.PhaseReader, 0, len(gateways))
	names := make([]string, 0, len(gateways))
	for _, g := range gateways {
		instrumented := m.Instrument(g.Gateway)
		eval := requirement.New(store, instrumented)
		eval.MaxDeviation = cfg.Trading.MaxMADeviation
		if frames := requirement.ParseFrames(cfg.Trading.ConfirmFrames); len(frames) > 0 {
			eval.ConfirmFrames = frames
		}
		ctrl := lifecycle.NewController(instrumented, eval, controllerOptions(cfg.Trading), observers...)
		venues = append(venues, engine.Venue{Controller: ctrl, Stream: g.Stream})
		phaseReaders = append(phaseReaders, ctrl)
		names = append(names, g.Gateway.Name())
	}

	app.engine = engine.New(store, tj, venues, sinks...)

	access := signalhttp.NewAccessList(cfg.HTTP.AllowIPs, cfg.HTTP.DenyMode())
	router := &signalhttp.Router{
		Submitter:   app.engine,
		Trend:       store,
		Phases:      phaseReaders,
		OnMalformed: m.MalformedAlert,
	}
	if eventStore != nil {
		router.Events = eventStore
	}
	srv, err := signalhttp.NewServer(signalhttp.ServerConfig{
		Addr:           cfg.HTTP.Addr,
		Router:         router,
		Access:         access,
		Metrics:        m.Handler(),
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return fail(err)
	}
	app.http = srv

	app.Summary = &StartupSummary{
		Env:           cfg.App.Env,
		HTTPAddr:      cfg.HTTP.Addr,
		RestrictMode:  cfg.HTTP.RestrictMode,
		AllowIPs:      cfg.HTTP.AllowIPs,
		Exchanges:     names,
		ConfirmFrames: cfg.Trading.ConfirmFrames,
		MaxDeviation:  cfg.Trading.MaxMADeviation,
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		Journal:       cfg.Trend.Journal,
		Replayed:      replayed,
		EventsEnabled: eventStore != nil,
		Telegram:      app.notifier != nil,
	}
	return app, nil
}

func controllerOptions(t config.TradingConfig) lifecycle.Options {
	return lifecycle.Options{
		Bracket: bracket.Params{
			StopLossPct:    t.StopLossPct,
			TakeProfitPct:  t.TakeProfitPct,
			PricePrecision: int32(t.PricePrecision),
		},
		FallbackPrecision: exchange.Precision{
			Price:    int32(t.PricePrecision),
			Quantity: int32(t.QuantityPrecision),
		},
		BaseNotional: t.BaseNotional,
		Timeout:      t.GatewayTimeout(),
		Margin:       exchange.MarginIsolated,
	}
}

func buildTrendJournal(cfg config.TrendConfig) (trend.Journal, error) {
	switch cfg.Journal {
	case "", "none":
		return trend.NopJournal{}, nil
	case "file":
		return trend.OpenFileJournal(cfg.JournalPath)
	case "sqlite":
		return journal.Open(cfg.JournalPath)
	default:
		return nil, fmt.Errorf("unknown trend journal %q", cfg.Journal)
	}
}

func buildEventStore(cfg config.StoreConfig) (*events.Store, error) {
	return events.Open(cfg.EventsPath)
}

func buildGateways(cfg *config.Config) ([]VenueGateway, error) {
	if !cfg.Binance.Enabled {
		logger.Warnf("no exchange enabled: entry alerts will be ignored")
		return nil, nil
	}
	gw, err := binance.New(binanceConfig(cfg.Binance, cfg.Trading))
	if err != nil {
		return nil, fmt.Errorf("init binance gateway: %w", err)
	}
	return []VenueGateway{{Gateway: gw, Stream: gw}}, nil
}

func binanceConfig(b config.BinanceConfig, t config.TradingConfig) binance.Config {
	return binance.Config{
		APIKey:          b.APIKey,
		APISecret:       b.APISecret,
		Testnet:         b.Testnet,
		RESTBaseURL:     b.RESTBaseURL,
		HTTPTimeout:     time.Duration(b.HTTPTimeoutSeconds) * time.Second,
		QuoteAsset:      b.QuoteAsset,
		BalanceFraction: t.BalanceFraction,
		ProxyEnabled:    b.Proxy.Enabled,
		RESTProxyURL:    b.Proxy.RESTURL,
		WSProxyURL:      b.Proxy.WSURL,
	}
}

func buildTelegram(cfg config.TelegramConfig) (notifier.TextNotifier, error) {
	return notifier.NewTelegram(cfg.BotToken, cfg.ChatID)
}
