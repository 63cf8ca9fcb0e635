// Package ingatlan reads rental listings from ingatlan.com result pages.
package ingatlan

import (
	"fmt"
	"io"
	"net/url"

	"sublet-scraper/config"
	"sublet-scraper/models"
	"sublet-scraper/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type Source struct {
	scraper.Site
}

func New(cfg config.SourceConfig, logger *zap.Logger) (scraper.Source, error) {
	site, err := scraper.NewSite(cfg)
	if err != nil {
		return nil, err
	}
	site.SetLogger(logger)
	return &Source{Site: site}, nil
}

// Extract builds one listing per a[data-listing-id]; the listing page lives
// at /<id> on the site root.
func (s *Source) Extract(markup io.Reader, base *url.URL) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var listings []models.Listing
	logger := s.Logger()

	doc.Find("a[data-listing-id]").Each(func(i int, card *goquery.Selection) {
		id, ok := scraper.Attr(card, "", "data-listing-id")
		if !ok {
			logger.Debug("Card without listing id skipped", zap.Int("card", i))
			return
		}
		link, err := scraper.ResolveURL(base, "/"+url.PathEscape(id))
		if err != nil {
			logger.Debug("Card link not usable", zap.Int("card", i), zap.String("id", id), zap.Error(err))
			return
		}

		listing := models.Listing{URL: link}
		if img, ok := scraper.Attr(card, "img", "src"); ok {
			if pic, err := scraper.ResolveURL(base, img); err == nil {
				listing.Pictures = []string{pic}
			}
		}

		listings = append(listings, listing)
	})

	return listings, nil
}
