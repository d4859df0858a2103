package config

import (
	"strings"
	"time"
)

// Config is the root configuration of signalbot.
type Config struct {
	App     AppConfig     `toml:"app"`
	HTTP    HTTPConfig    `toml:"http"`
	Binance BinanceConfig `toml:"binance"`
	Trading TradingConfig `toml:"trading"`
	Trend   TrendConfig   `toml:"trend"`
	Store   StoreConfig   `toml:"store"`
	Notify  NotifyConfig  `toml:"notify"`
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"` // "text" | "json"
	LogPath       string `toml:"log_path"`
	ChannelLogDir string `toml:"channel_log_dir"`
}

// HTTPConfig controls the inbound alert endpoint.
type HTTPConfig struct {
	Addr         string   `toml:"addr"`
	AllowIPs     []string `toml:"allow_ips"`
	RestrictMode string   `toml:"restrict_mode"` // "allow" | "deny"
	WatchConfig  bool     `toml:"watch_config"`
	// TrustedProxies lists peers (IPs or CIDRs) whose X-Real-IP header is
	// believed. Empty trusts no one and uses the socket address.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// DenyMode reports whether the IP list is a deny-list instead of an allow-list.
func (h HTTPConfig) DenyMode() bool {
	return strings.EqualFold(strings.TrimSpace(h.RestrictMode), "deny")
}

type BinanceConfig struct {
	Enabled            bool        `toml:"enabled"`
	APIKey             string      `toml:"api_key"`
	APISecret          string      `toml:"api_secret"`
	Testnet            bool        `toml:"testnet"`
	RESTBaseURL        string      `toml:"rest_base_url"` // empty follows testnet
	HTTPTimeoutSeconds int         `toml:"http_timeout_seconds"`
	QuoteAsset         string      `toml:"quote_asset"`
	Proxy              ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
	WSURL   string `toml:"ws_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
	p.WSURL = strings.TrimSpace(p.WSURL)
}

// TradingConfig carries the fixed constants of the decision engine.
type TradingConfig struct {
	StopLossPct           float64  `toml:"stop_loss_pct"`
	TakeProfitPct         float64  `toml:"take_profit_pct"`
	MaxMADeviation        float64  `toml:"max_ma_deviation"`
	PricePrecision        int      `toml:"price_precision"`    // fallback when exchange info is unavailable
	QuantityPrecision     int      `toml:"quantity_precision"` // fallback when exchange info is unavailable
	BaseNotional          float64  `toml:"base_notional"`      // if >0, used instead of the balance fraction
	BalanceFraction       float64  `toml:"balance_fraction"`
	ConfirmFrames         []string `toml:"confirm_frames"`
	GatewayTimeoutSeconds int      `toml:"gateway_timeout_seconds"`
}

func (t TradingConfig) GatewayTimeout() time.Duration {
	return time.Duration(t.GatewayTimeoutSeconds) * time.Second
}

// TrendConfig selects the durable journal used to warm-start the trend store.
type TrendConfig struct {
	Journal     string `toml:"journal"` // "file" | "sqlite" | "none"
	JournalPath string `toml:"journal_path"`
	Replay      bool   `toml:"replay"`
}

type StoreConfig struct {
	EventsEnabled bool   `toml:"events_enabled"`
	EventsPath    string `toml:"events_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   int64  `toml:"chat_id"`
}

// keySet tracks field paths explicitly set in config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how a single field receives its default.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
