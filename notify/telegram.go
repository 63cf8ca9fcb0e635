package notify

import (
	"context"
	"fmt"

	"sublet-scraper/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// messageSender is the part of tgbotapi.BotAPI the notifier needs.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts each new listing URL to a single chat.
type TelegramNotifier struct {
	api    messageSender
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Telegram notifier ready", zap.String("bot", api.Self.UserName), zap.Int64("chat_id", chatID))
	return &TelegramNotifier{api: api, chatID: chatID, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return &NotifyError{Notifier: config.NotifierTelegram, URL: url, Err: err}
	}

	msg := tgbotapi.NewMessage(n.chatID, "New listing: "+url)
	if _, err := n.api.Send(msg); err != nil {
		return &NotifyError{Notifier: config.NotifierTelegram, URL: url, Err: err}
	}
	n.logger.Debug("Telegram message sent", zap.Int64("chat_id", n.chatID), zap.String("url", url))
	return nil
}
