package config

import (
	"fmt"
	"strings"
)

var validFrames = map[string]bool{"1h": true, "2h": true, "3h": true, "4h": true, "6h": true, "1d": true}

func validate(c *Config) error {
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	if err := c.Binance.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Trend.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	if strings.TrimSpace(h.Addr) == "" {
		return fmt.Errorf("http.addr cannot be empty")
	}
	switch strings.ToLower(strings.TrimSpace(h.RestrictMode)) {
	case "allow", "deny":
	default:
		return fmt.Errorf("http.restrict_mode must be allow or deny, got %q", h.RestrictMode)
	}
	return nil
}

func (b *BinanceConfig) validate() error {
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.APIKey) == "" || strings.TrimSpace(b.APISecret) == "" {
		return fmt.Errorf("binance enabled but missing api_key or api_secret")
	}
	if b.Proxy.Enabled && b.Proxy.RESTURL == "" && b.Proxy.WSURL == "" {
		return fmt.Errorf("binance proxy enabled but no rest_url or ws_url")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.StopLossPct <= 0 || t.StopLossPct >= 1 {
		return fmt.Errorf("trading.stop_loss_pct must be in (0,1)")
	}
	if t.TakeProfitPct <= 0 || t.TakeProfitPct >= 1 {
		return fmt.Errorf("trading.take_profit_pct must be in (0,1)")
	}
	if t.MaxMADeviation <= 0 {
		return fmt.Errorf("trading.max_ma_deviation must be > 0")
	}
	if t.BalanceFraction <= 0 || t.BalanceFraction > 1 {
		return fmt.Errorf("trading.balance_fraction must be in (0,1]")
	}
	if t.BaseNotional < 0 {
		return fmt.Errorf("trading.base_notional must be >= 0")
	}
	if t.PricePrecision > 12 || t.QuantityPrecision > 12 {
		return fmt.Errorf("trading precision must be <= 12")
	}
	for _, f := range t.ConfirmFrames {
		if !validFrames[strings.ToLower(f)] || strings.EqualFold(f, "1d") {
			return fmt.Errorf("trading.confirm_frames contains unsupported frame %q", f)
		}
	}
	return nil
}

func (t *TrendConfig) validate() error {
	switch t.Journal {
	case "none":
		return nil
	case "file", "sqlite":
		if strings.TrimSpace(t.JournalPath) == "" {
			return fmt.Errorf("trend.journal_path cannot be empty for %s journal", t.Journal)
		}
		return nil
	default:
		return fmt.Errorf("trend.journal must be file, sqlite or none, got %q", t.Journal)
	}
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
