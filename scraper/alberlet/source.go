// Package alberlet reads rental listings from alberlet.hu result pages.
package alberlet

import (
	"fmt"
	"io"
	"net/url"
	"strings"

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

// Extract reads every div.advert-data card. Cards without a usable link are
// skipped; price, address and pictures are filled only when present.
func (s *Source) Extract(markup io.Reader, base *url.URL) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var listings []models.Listing
	logger := s.Logger()

	doc.Find("div.advert-data").Each(func(i int, card *goquery.Selection) {
		href, ok := scraper.Attr(card, "a", "href")
		if !ok {
			logger.Debug("Card without link skipped", zap.Int("card", i))
			return
		}
		link, err := scraper.ResolveURL(base, href)
		if err != nil {
			logger.Debug("Card link not usable", zap.Int("card", i), zap.String("href", href), zap.Error(err))
			return
		}

		listing := models.Listing{URL: link}

		if price, ok := scraper.Text(card, "div.col"); ok {
			listing.Price = price
		}
		if address, ok := scraper.Text(card, "div.address"); ok {
			listing.Address = scraper.CleanText(strings.ReplaceAll(address, "Budapest", ""))
		}

		card.Find("img").Each(func(_ int, img *goquery.Selection) {
			src, ok := scraper.Attr(img, "", "data-src")
			if !ok {
				src, ok = scraper.Attr(img, "", "src")
			}
			if !ok {
				return
			}
			if pic, err := scraper.ResolveURL(base, src); err == nil {
				listing.Pictures = append(listing.Pictures, pic)
			}
		})

		listings = append(listings, listing)
	})

	return listings, nil
}
