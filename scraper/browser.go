package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sublet-scraper/utils"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserFetcher renders pages in headless Chrome. Use it for sites that
// only fill their result list from JavaScript.
type BrowserFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	agents      *utils.UserAgentPool
	logger      *zap.Logger
}

func NewBrowserFetcher(headless bool, timeout time.Duration, agents *utils.UserAgentPool, logger *zap.Logger) *BrowserFetcher {
	if agents == nil {
		agents = utils.NewUserAgentPool(nil, nil)
	}

	logger.Info("Launching Chrome browser", zap.Bool("headless", headless))
	allocCtx, allocCancel := chromedp.NewExecAllocator(
		context.Background(),
		utils.StealthOpts(headless, utils.DefaultUserAgents[0])...,
	)

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     timeout,
		agents:      agents,
		logger:      logger,
	}
}

func (b *BrowserFetcher) Close() {
	b.logger.Info("Closing browser")
	b.allocCancel()
}

func (b *BrowserFetcher) Fetch(ctx context.Context, req PageRequest) PageResult {
	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var actions []chromedp.Action
	if req.RotateUserAgent {
		actions = append(actions, emulation.SetUserAgentOverride(b.agents.Pick()))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(req.URL),
		utils.HideWebDriver(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return Failure(newFetchError(req, 0, fmt.Errorf("chromedp failed: %w", err)))
	}

	if strings.TrimSpace(html) == "" {
		return Empty()
	}
	return Success([]byte(html))
}
