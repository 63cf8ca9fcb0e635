package services

import (
	"fmt"

	"sublet-scraper/config"
	"sublet-scraper/scraper"
	"sublet-scraper/scraper/alberlet"
	"sublet-scraper/scraper/ingatlan"

	"go.uber.org/zap"
)

// siteBuilders maps a configured source name to the package that knows its
// markup.
var siteBuilders = map[string]func(config.SourceConfig, *zap.Logger) (scraper.Source, error){
	"alberlet": alberlet.New,
	"ingatlan": ingatlan.New,
}

// BuildSources turns source settings into sources, keeping their order.
func BuildSources(cfgs []config.SourceConfig, logger *zap.Logger) ([]scraper.Source, error) {
	sources := make([]scraper.Source, 0, len(cfgs))
	for _, c := range cfgs {
		build, ok := siteBuilders[c.Name]
		if !ok {
			return nil, fmt.Errorf("no extractor for source %q", c.Name)
		}
		src, err := build(c, logger)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.Name, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}
