package notify

import (
	"context"
	"errors"
	"testing"

	"sublet-scraper/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBrowserNotifier(t *testing.T) {
	var opened []string
	n := NewBrowserNotifier(zap.NewNop())
	n.open = func(url string) error {
		opened = append(opened, url)
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), "https://example.com/1"))
	assert.Equal(t, []string{"https://example.com/1"}, opened)
}

func TestBrowserNotifier_Failure(t *testing.T) {
	n := NewBrowserNotifier(zap.NewNop())
	n.open = func(string) error { return errors.New("no display") }

	err := n.Notify(context.Background(), "https://example.com/1")
	var ne *NotifyError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "https://example.com/1", ne.URL)
	assert.Equal(t, config.NotifierBrowser, ne.Notifier)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), "https://example.com/2"))
	entries := logs.FilterField(zap.String("url", "https://example.com/2")).All()
	assert.Len(t, entries, 1)
}

func TestLogNotifier_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLogNotifier(zap.NewNop()).Notify(ctx, "u")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	core, logs := observer.New(zap.DebugLevel)
	n := &TelegramNotifier{api: sender, chatID: 42, logger: zap.New(core)}

	require.NoError(t, n.Notify(context.Background(), "https://example.com/3"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "https://example.com/3")

	sender.err = errors.New("chat not found")
	err := n.Notify(context.Background(), "https://example.com/4")
	var ne *NotifyError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, config.NotifierTelegram, ne.Notifier)
	assert.Empty(t, logs.FilterLevelExact(zap.ErrorLevel).All(), "the caller logs the returned error")
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Notifier = config.NotifierLog
	n, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	cfg.Notifier = config.NotifierBrowser
	n, err = New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &BrowserNotifier{}, n)

	cfg.Notifier = "pigeon"
	_, err = New(cfg, zap.NewNop())
	assert.Error(t, err)
}
