package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"sublet-scraper/models"
	"sublet-scraper/utils"

	"go.uber.org/zap"
)

// PaginatorConfig bounds one source's page walk.
type PaginatorConfig struct {
	MaxPages int
	MinDelay time.Duration
	MaxDelay time.Duration
	Retry    utils.RetryPolicy
}

// Paginator walks a source page by page, one request at a time.
type Paginator struct {
	fetcher Fetcher
	delayer *utils.Delayer
	cfg     PaginatorConfig
	logger  *zap.Logger
}

func NewPaginator(fetcher Fetcher, delayer *utils.Delayer, cfg PaginatorConfig, logger *zap.Logger) *Paginator {
	if delayer == nil {
		delayer = utils.NewDelayer(nil)
	}
	return &Paginator{
		fetcher: fetcher,
		delayer: delayer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Collect returns every listing of src, starting from page 1. It stops on an
// empty page, on a page with no listings, or on a short page when the source
// has a fixed page size. A page that cannot be fetched after retries ends the
// walk with a *FetchError instead of being mistaken for the last page.
func (p *Paginator) Collect(ctx context.Context, src Source) (models.SourceResult, error) {
	result := models.SourceResult{Source: src.Name()}
	base := src.BaseURL()
	logger := p.logger.With(zap.String("source", src.Name()))

	for page := 1; ; page++ {
		if p.cfg.MaxPages > 0 && page > p.cfg.MaxPages {
			logger.Warn("Page limit reached, stopping", zap.Int("max_pages", p.cfg.MaxPages))
			break
		}

		if page > 1 {
			if err := p.delayer.Wait(ctx, p.cfg.MinDelay, p.cfg.MaxDelay); err != nil {
				return result, err
			}
		}

		req := PageRequest{
			Source:          src.Name(),
			Page:            page,
			URL:             src.PageURL(page),
			RotateUserAgent: src.RotatesUserAgent(),
		}

		res, err := p.fetch(ctx, req, logger)
		if err != nil {
			return result, err
		}
		result.Pages = page

		if res.Status == PageEmpty {
			logger.Debug("Empty page, stopping", zap.Int("page", page))
			break
		}

		listings, err := src.Extract(bytes.NewReader(res.Markup), base)
		if err != nil {
			return result, fmt.Errorf("extract %s page %d: %w", src.Name(), page, err)
		}
		for i := range listings {
			listings[i].Source = src.Name()
		}
		result.Listings = append(result.Listings, listings...)

		logger.Info("Page scraped", zap.Int("page", page), zap.Int("listings", len(listings)))

		if len(listings) == 0 {
			break
		}
		if size := src.PageSize(); size > 0 && len(listings) < size {
			break
		}
	}

	logger.Info("Source collected", zap.Int("pages", result.Pages), zap.Int("listings", len(result.Listings)))
	return result, nil
}

func (p *Paginator) fetch(ctx context.Context, req PageRequest, logger *zap.Logger) (PageResult, error) {
	var res PageResult

	err := utils.Retry(ctx, logger, p.cfg.Retry, func() error {
		res = p.fetcher.Fetch(ctx, req)
		if res.Status != PageFailure {
			return nil
		}
		if res.Err == nil {
			res.Err = newFetchError(req, 0, errors.New("fetcher reported failure without cause"))
		}
		var fe *FetchError
		if errors.As(res.Err, &fe) && !fe.Temporary() {
			return utils.Permanent(res.Err)
		}
		return res.Err
	})
	if err != nil {
		return res, err
	}
	return res, nil
}
