package notifier

// TextNotifier delivers one rendered message. Implementations may block.
type TextNotifier interface {
	SendText(text string) error
}
