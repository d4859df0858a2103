package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	Testnet     bool
	RESTBaseURL string
	HTTPTimeout time.Duration

	QuoteAsset      string
	BalanceFraction float64

	ProxyEnabled bool
	RESTProxyURL string
	WSProxyURL   string

	PrecisionTTL      time.Duration
	KeepaliveInterval time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.QuoteAsset = strings.ToUpper(strings.TrimSpace(out.QuoteAsset))
	if out.QuoteAsset == "" {
		out.QuoteAsset = "USDT"
	}
	if out.BalanceFraction <= 0 || out.BalanceFraction > 1 {
		out.BalanceFraction = 0.1
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	out.WSProxyURL = strings.TrimSpace(out.WSProxyURL)
	if out.PrecisionTTL <= 0 {
		out.PrecisionTTL = time.Hour
	}
	if out.KeepaliveInterval <= 0 {
		out.KeepaliveInterval = 30 * time.Minute
	}
	if out.BreakerThreshold <= 0 {
		out.BreakerThreshold = 5
	}
	if out.BreakerCooldown <= 0 {
		out.BreakerCooldown = 30 * time.Second
	}
	return out
}
