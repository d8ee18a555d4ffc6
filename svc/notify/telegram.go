package notify

import (
	"context"

	"github.com/go-telegram/bot"
)

// TelegramMessenger delivers messages through the Telegram Bot API.
type TelegramMessenger struct {
	bot *bot.Bot
}

// NewTelegramMessenger creates a messenger from a bot token.
func NewTelegramMessenger(token string, opts ...bot.Option) (*TelegramMessenger, error) {
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	return &TelegramMessenger{bot: b}, nil
}

func (m *TelegramMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := m.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}
