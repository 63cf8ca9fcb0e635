package scraper

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"sublet-scraper/config"
	"sublet-scraper/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Source is one listing site: how to address a results page and how to read
// listings out of it. Adding a site means adding a Source, nothing else.
type Source interface {
	Name() string
	BaseURL() *url.URL
	PageURL(page int) string
	// PageSize is the number of cards on a full page, or 0 when the site has
	// no fixed page size.
	PageSize() int
	RotatesUserAgent() bool
	Extract(markup io.Reader, base *url.URL) ([]models.Listing, error)
}

// Site carries the configured, markup-independent half of a Source. Site
// packages embed it and add Extract.
type Site struct {
	name     string
	base     *url.URL
	template string
	pageSize int
	rotate   bool
	logger   *zap.Logger
}

func NewSite(cfg config.SourceConfig) (Site, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return Site{}, fmt.Errorf("source %s: invalid base url: %w", cfg.Name, err)
	}
	if !base.IsAbs() {
		return Site{}, fmt.Errorf("source %s: base url %q is not absolute", cfg.Name, cfg.BaseURL)
	}
	if !strings.Contains(cfg.URLTemplate, "{page}") {
		return Site{}, fmt.Errorf("source %s: url template has no {page} placeholder", cfg.Name)
	}
	return Site{
		name:     cfg.Name,
		base:     base,
		template: cfg.URLTemplate,
		pageSize: cfg.PageSize,
		rotate:   cfg.RotateUserAgent,
	}, nil
}

func (s Site) Name() string { return s.name }

func (s Site) BaseURL() *url.URL {
	u := *s.base
	return &u
}

func (s Site) PageURL(page int) string {
	return strings.ReplaceAll(s.template, "{page}", strconv.Itoa(page))
}

func (s Site) PageSize() int          { return s.pageSize }
func (s Site) RotatesUserAgent() bool { return s.rotate }

func (s *Site) SetLogger(logger *zap.Logger) { s.logger = logger }

// Logger is tagged with the source name. It never returns nil.
func (s Site) Logger() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger.With(zap.String("source", s.name))
}

// ResolveURL turns a possibly relative href into an absolute http(s) URL
// without fragment.
func ResolveURL(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty link")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported link scheme in %q", href)
	}
	return abs.String(), nil
}

// Text returns the cleaned text of the first element under s matching
// selector. ok is false when nothing matched or the text is blank.
func Text(s *goquery.Selection, selector string) (string, bool) {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return "", false
	}
	text := CleanText(found.Text())
	return text, text != ""
}

// Attr returns an attribute of the first element under s matching selector,
// or of s itself when selector is empty.
func Attr(s *goquery.Selection, selector, name string) (string, bool) {
	found := s
	if selector != "" {
		found = s.Find(selector).First()
	}
	if found.Length() == 0 {
		return "", false
	}
	v, ok := found.Attr(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// CleanText normalizes to NFC and collapses whitespace runs.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
