package app

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type StartupSummary struct {
	Env           string
	HTTPAddr      string
	RestrictMode  string
	AllowIPs      []string
	Exchanges     []string
	ConfirmFrames []string
	MaxDeviation  float64
	StopLossPct   float64
	TakeProfitPct float64
	Journal       string
	Replayed      int
	EventsEnabled bool
	Telegram      bool
}

func (s *StartupSummary) Print() {
	_, _ = s.WriteTo(os.Stdout)
}

func (s *StartupSummary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	title := "STARTUP SUMMARY"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[HTTP]\n")
	fmt.Fprintf(&b, "  addr:     %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "  mode:     %s\n", s.RestrictMode)
	fmt.Fprintf(&b, "  ips:      %s\n", formatList(s.AllowIPs))
	b.WriteString("\n")

	b.WriteString("[TRADING]\n")
	fmt.Fprintf(&b, "  env:       %s\n", s.Env)
	fmt.Fprintf(&b, "  exchanges: %s\n", formatList(s.Exchanges))
	fmt.Fprintf(&b, "  confirm:   %s\n", formatList(s.ConfirmFrames))
	fmt.Fprintf(&b, "  max dev:   %.2f%%\n", s.MaxDeviation*100)
	fmt.Fprintf(&b, "  sl / tp:   %.2f / %.2f\n", s.StopLossPct, s.TakeProfitPct)
	b.WriteString("\n")

	b.WriteString("[STORAGE]\n")
	fmt.Fprintf(&b, "  journal:  %s (%d replayed)\n", s.Journal, s.Replayed)
	fmt.Fprintf(&b, "  events:   %s\n", onOff(s.EventsEnabled))
	fmt.Fprintf(&b, "  telegram: %s\n", onOff(s.Telegram))
	b.WriteString(strings.Repeat("=", 80) + "\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
