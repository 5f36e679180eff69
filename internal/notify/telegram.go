package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	name   string
	base   string
	token  string
	chatID string
	poster *httpPoster
}

type telegramPayload struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification bool   `json:"disable_notification"`
}

// NewTelegramNotifier creates a Telegram notifier. base overrides the API
// endpoint and may be empty.
func NewTelegramNotifier(name, base, token, chatID string) (*TelegramNotifier, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram token and chatId required")
	}
	if base == "" {
		base = telegramAPI
	}
	if name == "" {
		name = "telegram"
	}
	return &TelegramNotifier{
		name:   name,
		base:   strings.TrimRight(base, "/"),
		token:  token,
		chatID: chatID,
		poster: newHTTPPoster(name),
	}, nil
}

// Name returns the notifier identifier.
func (t *TelegramNotifier) Name() string { return t.name }

// Send posts the notification; unimportant ones are delivered silently.
func (t *TelegramNotifier) Send(ctx context.Context, n types.Notification) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	if err := t.poster.postJSON(ctx, url, telegramPayload{
		ChatID:              t.chatID,
		Text:                n.Subject + "\n\n" + n.Body,
		DisableNotification: !n.Important,
	}); err != nil {
		// the URL carries the bot token; keep it out of the error
		return fmt.Errorf("telegram send to chat %s failed", t.chatID)
	}
	return nil
}
