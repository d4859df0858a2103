package notifier

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramAttempts = 3

// botSender is the slice of *tgbotapi.BotAPI the notifier uses.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram pushes lifecycle notifications to one chat.
type Telegram struct {
	bot    botSender
	chatID int64
	sleep  func(time.Duration)
}

var _ TextNotifier = (*Telegram)(nil)

func NewTelegram(botToken string, chatID int64) (*Telegram, error) {
	if strings.TrimSpace(botToken) == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram config incomplete")
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, sleep: time.Sleep}, nil
}

// SendText sends text as Markdown with linear backoff between attempts. A
// markup rejection is not retried; the text is resent once without parse
// mode instead.
func (t *Telegram) SendText(text string) error {
	var lastErr error
	for attempt := 1; attempt <= telegramAttempts; attempt++ {
		err := t.send(text, tgbotapi.ModeMarkdown)
		if err == nil {
			return nil
		}
		if isMarkupError(err) {
			return t.send(text, "")
		}
		lastErr = err
		if attempt < telegramAttempts {
			t.sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("telegram send after %d attempts: %w", telegramAttempts, lastErr)
}

func (t *Telegram) send(text, mode string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = mode
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func isMarkupError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}
