package config

import "strings"

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppLogPath        = "logs/signalbot.log"
	defaultChannelLogDir     = "logs"
	defaultHTTPAddr          = ":8080"
	defaultRestrictMode      = "allow"
	defaultBinanceTimeout    = 15
	defaultQuoteAsset        = "USDT"
	defaultStopLossPct       = 0.2
	defaultTakeProfitPct     = 0.1
	defaultMaxMADeviation    = 0.03
	defaultPricePrecision    = 2
	defaultQuantityPrecision = 3
	defaultBalanceFraction   = 0.1
	defaultGatewayTimeout    = 10
	defaultTrendJournal      = "file"
	defaultTrendJournalPath  = "logs/alerts.journal"
	defaultEventsPath        = "data/trade_events.db"
)

// defaultAllowIPs are the published webhook source addresses of the charting
// service plus loopback.
var defaultAllowIPs = []string{
	"::1",
	"127.0.0.1",
	"52.89.214.238",
	"34.212.75.30",
	"54.218.53.128",
	"52.32.178.7",
}

var defaultConfirmFrames = []string{"1h", "2h", "3h", "4h", "6h"}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Trend.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		valueDefault("app.env", &a.Env, defaultAppEnv, blank),
		valueDefault("app.log_level", &a.LogLevel, defaultAppLogLevel, blank),
		valueDefault("app.log_format", &a.LogFormat, defaultAppLogFormat, blank),
		valueDefault("app.log_path", &a.LogPath, defaultAppLogPath, blank),
		valueDefault("app.channel_log_dir", &a.ChannelLogDir, defaultChannelLogDir, blank),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		valueDefault("http.addr", &h.Addr, defaultHTTPAddr, blank),
		valueDefault("http.restrict_mode", &h.RestrictMode, defaultRestrictMode, blank),
		fieldDefault{
			key:   "http.allow_ips",
			need:  func() bool { return len(h.AllowIPs) == 0 },
			apply: func() { h.AllowIPs = append([]string(nil), defaultAllowIPs...) },
		},
	)
	h.AllowIPs = normalizeList(h.AllowIPs)
	h.TrustedProxies = normalizeList(h.TrustedProxies)
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		valueDefault("binance.enabled", &b.Enabled, true, nil),
		valueDefault("binance.testnet", &b.Testnet, true, nil),
		valueDefault("binance.quote_asset", &b.QuoteAsset, defaultQuoteAsset, blank),
		valueDefault("binance.http_timeout_seconds", &b.HTTPTimeoutSeconds, defaultBinanceTimeout, nonPositive[int]),
	)
	b.QuoteAsset = strings.ToUpper(strings.TrimSpace(b.QuoteAsset))
	b.RESTBaseURL = strings.TrimSpace(b.RESTBaseURL)
	b.Proxy.normalize()
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		valueDefault("trading.stop_loss_pct", &t.StopLossPct, defaultStopLossPct, nonPositive[float64]),
		valueDefault("trading.take_profit_pct", &t.TakeProfitPct, defaultTakeProfitPct, nonPositive[float64]),
		valueDefault("trading.max_ma_deviation", &t.MaxMADeviation, defaultMaxMADeviation, nonPositive[float64]),
		valueDefault("trading.balance_fraction", &t.BalanceFraction, defaultBalanceFraction, nonPositive[float64]),
		valueDefault("trading.gateway_timeout_seconds", &t.GatewayTimeoutSeconds, defaultGatewayTimeout, nonPositive[int]),
		valueDefault("trading.price_precision", &t.PricePrecision, defaultPricePrecision, nil),
		valueDefault("trading.quantity_precision", &t.QuantityPrecision, defaultQuantityPrecision, nil),
		fieldDefault{
			key:   "trading.confirm_frames",
			need:  func() bool { return len(t.ConfirmFrames) == 0 },
			apply: func() { t.ConfirmFrames = append([]string(nil), defaultConfirmFrames...) },
		},
	)
	t.ConfirmFrames = normalizeList(t.ConfirmFrames)
}

func (t *TrendConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		valueDefault("trend.journal", &t.Journal, defaultTrendJournal, blank),
		valueDefault("trend.journal_path", &t.JournalPath, defaultTrendJournalPath, blank),
		valueDefault("trend.replay", &t.Replay, true, nil),
	)
	t.Journal = strings.ToLower(strings.TrimSpace(t.Journal))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		valueDefault("store.events_path", &s.EventsPath, defaultEventsPath, blank),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

// valueDefault assigns def when the key is unset and empty reports the
// current value as missing. A nil empty always assigns.
func valueDefault[T any](key string, target *T, def T, empty func(T) bool) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return empty == nil || empty(*target) },
		apply: func() { *target = def },
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func nonPositive[T int | float64](v T) bool { return v <= 0 }

func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
