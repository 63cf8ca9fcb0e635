package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"sublet-scraper/models"
	"sublet-scraper/scraper"
	"sublet-scraper/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countSource reads a page's markup as the number of listings on it.
type countSource struct {
	name     string
	pageSize int
}

func (s countSource) Name() string { return s.name }
func (s countSource) BaseURL() *url.URL {
	u, _ := url.Parse("https://example.com/")
	return u
}
func (s countSource) PageURL(page int) string {
	return "https://example.com/list?page=" + strconv.Itoa(page)
}
func (s countSource) PageSize() int          { return s.pageSize }
func (s countSource) RotatesUserAgent() bool { return false }

func (s countSource) Extract(markup io.Reader, base *url.URL) ([]models.Listing, error) {
	raw, err := io.ReadAll(markup)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, err
	}
	listings := make([]models.Listing, 0, n)
	for i := 0; i < n; i++ {
		listings = append(listings, models.Listing{URL: fmt.Sprintf("https://example.com/%s/%d", parts[0], i)})
	}
	return listings, nil
}

// pagedFetcher serves a scripted result per page.
type pagedFetcher struct {
	pages    map[int]func() scraper.PageResult
	requests []scraper.PageRequest
}

func (f *pagedFetcher) Fetch(ctx context.Context, req scraper.PageRequest) scraper.PageResult {
	f.requests = append(f.requests, req)
	if fn, ok := f.pages[req.Page]; ok {
		return fn()
	}
	return scraper.Empty()
}

func sizedPages(sizes ...int) map[int]func() scraper.PageResult {
	pages := make(map[int]func() scraper.PageResult)
	for i, n := range sizes {
		page, n := i+1, n
		pages[page] = func() scraper.PageResult {
			return scraper.Success([]byte(fmt.Sprintf("p%d:%d", page, n)))
		}
	}
	return pages
}

func newTestPaginator(f scraper.Fetcher, maxPages int) *scraper.Paginator {
	return scraper.NewPaginator(f, utils.NoDelay(), scraper.PaginatorConfig{
		MaxPages: maxPages,
		Retry:    utils.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond},
	}, zap.NewNop())
}

func TestPaginator_Collect(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		sizes     []int
		wantCount int
		wantCalls int
	}{
		{name: "short last page ends fixed size source", pageSize: 100, sizes: []int{100, 100, 37}, wantCount: 237, wantCalls: 3},
		{name: "empty first page", pageSize: 100, sizes: []int{0}, wantCount: 0, wantCalls: 1},
		{name: "full last page needs one more request", pageSize: 100, sizes: []int{100, 100, 0}, wantCount: 200, wantCalls: 3},
		{name: "unsized source stops only on empty page", pageSize: 0, sizes: []int{3, 1, 2, 0}, wantCount: 6, wantCalls: 4},
		{name: "unsized source with no listings", pageSize: 0, sizes: []int{0}, wantCount: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &pagedFetcher{pages: sizedPages(tt.sizes...)}
			p := newTestPaginator(fetcher, 50)

			result, err := p.Collect(context.Background(), countSource{name: "test", pageSize: tt.pageSize})

			require.NoError(t, err)
			assert.Len(t, result.Listings, tt.wantCount)
			assert.Len(t, fetcher.requests, tt.wantCalls)
			for i, req := range fetcher.requests {
				assert.Equal(t, i+1, req.Page, "pages are requested in order starting at 1")
			}
			for _, l := range result.Listings {
				assert.Equal(t, "test", l.Source)
			}
		})
	}
}

func TestPaginator_PreservesDocumentOrder(t *testing.T) {
	fetcher := &pagedFetcher{pages: sizedPages(2, 1, 0)}
	p := newTestPaginator(fetcher, 50)

	result, err := p.Collect(context.Background(), countSource{name: "test"})
	require.NoError(t, err)

	var urls []string
	for _, l := range result.Listings {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{
		"https://example.com/p1/0",
		"https://example.com/p1/1",
		"https://example.com/p2/0",
	}, urls)
}

func TestPaginator_EmptyResultStops(t *testing.T) {
	pages := sizedPages(5)
	pages[2] = scraper.Empty
	fetcher := &pagedFetcher{pages: pages}
	p := newTestPaginator(fetcher, 50)

	result, err := p.Collect(context.Background(), countSource{name: "test"})

	require.NoError(t, err)
	assert.Len(t, result.Listings, 5)
	assert.Len(t, fetcher.requests, 2)
}

func TestPaginator_FetchFailure(t *testing.T) {
	t.Run("server errors are retried then surfaced", func(t *testing.T) {
		pages := sizedPages(100)
		pages[2] = func() scraper.PageResult {
			return scraper.Failure(&scraper.FetchError{Source: "test", Page: 2, StatusCode: http.StatusServiceUnavailable})
		}
		fetcher := &pagedFetcher{pages: pages}
		p := newTestPaginator(fetcher, 50)

		result, err := p.Collect(context.Background(), countSource{name: "test", pageSize: 100})

		require.Error(t, err)
		var fe *scraper.FetchError
		require.True(t, errors.As(err, &fe), "expected a FetchError, got %v", err)
		assert.Equal(t, 2, fe.Page)
		assert.Len(t, fetcher.requests, 1+3)
		assert.Len(t, result.Listings, 100, "listings before the failure are kept in the partial result")
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		pages := map[int]func() scraper.PageResult{
			1: func() scraper.PageResult {
				return scraper.Failure(&scraper.FetchError{Source: "test", Page: 1, StatusCode: http.StatusNotFound})
			},
		}
		fetcher := &pagedFetcher{pages: pages}
		p := newTestPaginator(fetcher, 50)

		_, err := p.Collect(context.Background(), countSource{name: "test"})

		var fe *scraper.FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
		assert.Len(t, fetcher.requests, 1)
	})

	t.Run("transient failure recovers", func(t *testing.T) {
		calls := 0
		pages := map[int]func() scraper.PageResult{
			1: func() scraper.PageResult {
				calls++
				if calls == 1 {
					return scraper.Failure(&scraper.FetchError{Source: "test", Page: 1, Err: errors.New("connection reset")})
				}
				return scraper.Success([]byte("p1:4"))
			},
		}
		fetcher := &pagedFetcher{pages: pages}
		p := newTestPaginator(fetcher, 50)

		result, err := p.Collect(context.Background(), countSource{name: "test", pageSize: 100})

		require.NoError(t, err)
		assert.Len(t, result.Listings, 4)
	})
}

func TestPaginator_MaxPages(t *testing.T) {
	fetcher := &pagedFetcher{pages: sizedPages(1, 1, 1, 1, 1, 1)}
	p := newTestPaginator(fetcher, 3)

	result, err := p.Collect(context.Background(), countSource{name: "test"})

	require.NoError(t, err)
	assert.Len(t, result.Listings, 3)
	assert.Equal(t, 3, result.Pages)
}

func TestPaginator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &pagedFetcher{pages: sizedPages(1, 1)}
	p := newTestPaginator(fetcher, 50)

	_, err := p.Collect(ctx, countSource{name: "test"})
	assert.ErrorIs(t, err, context.Canceled)
}
