package services

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cookbook/internal/logging"
)

// ChatMirror дублирует события в чат редакции.
type ChatMirror interface {
	Post(ctx context.Context, text string) error
}

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    botSender
	chatID int64
	log    logging.Logger
}

// NewTelegramNotifier проверяет токен через getMe.
func NewTelegramNotifier(token string, chatID int64, log logging.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}, nil
}

func (t *TelegramNotifier) Post(ctx context.Context, text string) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn(ctx, "[tg][send] failed", "chat_id", t.chatID, "err", err)
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug(ctx, "[tg][send] ok", "chat_id", t.chatID)
	return nil
}
