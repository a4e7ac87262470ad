package plug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 8 << 20

// Source is one polled endpoint.
type Source struct {
	Name string
	URL  string
}

// Result is the outcome of fetching one source. Exactly one of Body and Err
// is meaningful.
type Result struct {
	Source Source
	Body   []byte
	Err    error
}

// Fetcher retrieves raw pages from the configured sources.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewFetcher creates a Fetcher where every request is bounded by timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// FetchAll fetches every source concurrently and waits for all of them. The
// returned slice is positionally aligned with sources; a failing source only
// marks its own entry.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) []Result {
	out := make([]Result, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			body, err := f.Fetch(ctx, src.URL)
			out[i] = Result{Source: src, Body: body, Err: err}
			if err != nil {
				slog.Warn("fetcher: source failed", "source", src.Name, "url", src.URL, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Fetch retrieves one page within the per-request timeout.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plug: %s status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("plug: read %s: %w", url, err)
	}
	return b, nil
}
