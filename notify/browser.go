package notify

import (
	"context"

	"sublet-scraper/config"

	"github.com/pkg/browser"
	"go.uber.org/zap"
)

// BrowserNotifier opens each new listing in the default web browser.
type BrowserNotifier struct {
	open   func(url string) error
	logger *zap.Logger
}

func NewBrowserNotifier(logger *zap.Logger) *BrowserNotifier {
	return &BrowserNotifier{open: browser.OpenURL, logger: logger}
}

func (n *BrowserNotifier) Notify(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return &NotifyError{Notifier: config.NotifierBrowser, URL: url, Err: err}
	}
	if err := n.open(url); err != nil {
		return &NotifyError{Notifier: config.NotifierBrowser, URL: url, Err: err}
	}
	n.logger.Debug("Opened listing in browser", zap.String("url", url))
	return nil
}
