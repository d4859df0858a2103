package logger

import (
	"fmt"
	"io"
	"log/slog"
)

// Channel names a business log stream that can be mirrored into its own file.
type Channel string

const (
	ChannelAlert Channel = "alert"
	ChannelOpen  Channel = "open"
	ChannelClose Channel = "close"
	ChannelError Channel = "error"
)

// Channels lists every known channel in a stable order.
func Channels() []Channel {
	return []Channel{ChannelAlert, ChannelOpen, ChannelClose, ChannelError}
}

// SetChannelOutput mirrors a channel into w as JSON lines. A nil writer
// detaches the mirror.
func SetChannelOutput(ch Channel, w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if w == nil {
		delete(channels, ch)
		return
	}
	channels[ch] = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func channelLogger(ch Channel) *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return channels[ch]
}

// Channelf logs an info record tagged with the channel, and mirrors it when
// a channel output is configured. attrs are slog key/value pairs.
func Channelf(ch Channel, msg string, attrs ...any) {
	args := append([]any{"channel", string(ch)}, attrs...)
	activeLogger().Info(msg, args...)
	if mirror := channelLogger(ch); mirror != nil {
		mirror.Info(msg, attrs...)
	}
}

// Failure logs at error level with a category attribute and mirrors the
// record into the error channel.
func Failure(category string, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	activeLogger().Error(msg, "category", category)
	if mirror := channelLogger(ChannelError); mirror != nil {
		mirror.Error(msg, "category", category)
	}
}
