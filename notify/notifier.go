package notify

import (
	"context"
	"fmt"

	"sublet-scraper/config"

	"go.uber.org/zap"
)

// Notifier tells the operator about one newly discovered listing URL.
type Notifier interface {
	Notify(ctx context.Context, url string) error
}

// NotifyError is a failed notification. The URL it names was not recorded.
type NotifyError struct {
	Notifier string
	URL      string
	Err      error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("%s notifier failed for %s: %v", e.Notifier, e.URL, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// New builds the notifier selected in cfg.
func New(cfg *config.Config, logger *zap.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierBrowser:
		return NewBrowserNotifier(logger), nil
	case config.NotifierLog:
		return NewLogNotifier(logger), nil
	case config.NotifierTelegram:
		return NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// LogNotifier only logs the URL.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return &NotifyError{Notifier: config.NotifierLog, URL: url, Err: err}
	}
	n.logger.Info("New listing", zap.String("url", url))
	return nil
}
