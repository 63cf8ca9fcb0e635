package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"sublet-scraper/utils"

	"go.uber.org/zap"
)

// PageRequest asks a Fetcher for one results page.
type PageRequest struct {
	Source          string
	Page            int
	URL             string
	RotateUserAgent bool
}

type PageStatus int

const (
	PageSuccess PageStatus = iota
	PageEmpty
	PageFailure
)

func (s PageStatus) String() string {
	switch s {
	case PageSuccess:
		return "success"
	case PageEmpty:
		return "empty"
	case PageFailure:
		return "failure"
	default:
		return fmt.Sprintf("PageStatus(%d)", int(s))
	}
}

// PageResult keeps "the site had nothing" apart from "we could not ask".
type PageResult struct {
	Status PageStatus
	Markup []byte
	Err    error
}

func Success(markup []byte) PageResult { return PageResult{Status: PageSuccess, Markup: markup} }
func Empty() PageResult                { return PageResult{Status: PageEmpty} }
func Failure(err error) PageResult     { return PageResult{Status: PageFailure, Err: err} }

type Fetcher interface {
	Fetch(ctx context.Context, req PageRequest) PageResult
}

// FetchError is a network failure, timeout, or non-2xx response.
type FetchError struct {
	Source     string
	Page       int
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s page %d: unexpected status code: %d", e.Source, e.Page, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s page %d: %v", e.Source, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether trying again could help.
func (e *FetchError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func newFetchError(req PageRequest, status int, err error) *FetchError {
	return &FetchError{Source: req.Source, Page: req.Page, URL: req.URL, StatusCode: status, Err: err}
}

const maxPageBytes = 16 << 20

// HTTPFetcher fetches pages with plain GET requests.
type HTTPFetcher struct {
	client *http.Client
	agents *utils.UserAgentPool
	logger *zap.Logger
}

func NewHTTPFetcher(timeout time.Duration, agents *utils.UserAgentPool, logger *zap.Logger) *HTTPFetcher {
	if agents == nil {
		agents = utils.NewUserAgentPool(nil, nil)
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		agents: agents,
		logger: logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req PageRequest) PageResult {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return Failure(newFetchError(req, 0, fmt.Errorf("failed to create request: %w", err)))
	}

	userAgent := utils.DefaultUserAgents[0]
	if req.RotateUserAgent {
		userAgent = f.agents.Pick()
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "hu-HU,hu;q=0.9,en;q=0.8")

	f.logger.Debug("Fetching page",
		zap.String("source", req.Source),
		zap.Int("page", req.Page),
		zap.String("url", req.URL))

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return Failure(newFetchError(req, 0, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return Empty()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Failure(newFetchError(req, resp.StatusCode, nil))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Failure(newFetchError(req, resp.StatusCode, fmt.Errorf("failed to read body: %w", err)))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Empty()
	}
	return Success(body)
}
