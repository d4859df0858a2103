package config

import (
	"fmt"
	"strings"

	"signalbot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchHTTP reloads the whole configuration whenever the root file changes and
// hands the refreshed HTTP section to onChange. Invalid edits are logged and
// the previous settings stay in effect.
func WatchHTTP(path string, onChange func(HTTPConfig)) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config watch requires path")
	}
	if onChange == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config for watch failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("config reloaded (%s): %d http ips", evt.Name, len(cfg.HTTP.AllowIPs))
		onChange(cfg.HTTP)
	})
	v.WatchConfig()
	return nil
}
