package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/logger"
	"github.com/samvad-hq/soupchef/pkg/httpclient"
)

// Waiter blocks for the politeness delay before a request.
type Waiter interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// Page is a successfully fetched document.
type Page struct {
	URL      string
	FinalURL string
	Body     []byte
}

// Fetcher performs every outbound request of a run, one at a time, each
// preceded by a randomized delay.
type Fetcher struct {
	client httpclient.Client
	waiter Waiter
	log    logger.Logger
	now    func() time.Time

	// Observe, when set, receives the duration of every completed request.
	Observe func(time.Duration)
}

// New creates a Fetcher.
func New(client httpclient.Client, waiter Waiter, log logger.Logger) *Fetcher {
	return &Fetcher{client: client, waiter: waiter, log: logger.Ensure(log), now: time.Now}
}

// Get sleeps, then issues a single GET. Transport failures and non-2xx
// responses are reported as domain.ErrNetwork.
func (f *Fetcher) Get(ctx context.Context, url string) (Page, error) {
	return f.GetWithHeaders(ctx, url, nil)
}

// GetWithHeaders is Get with extra request headers.
func (f *Fetcher) GetWithHeaders(ctx context.Context, url string, headers map[string]string) (Page, error) {
	if f.waiter != nil {
		slept, err := f.waiter.Wait(ctx)
		if err != nil {
			return Page{}, err
		}
		f.log.DebugObj("rate limit sleep", "delay", slept.String())
	}

	start := f.now()
	resp, err := f.client.Get(ctx, url, headers)
	if f.Observe != nil {
		f.Observe(f.now().Sub(start))
	}
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		return Page{}, fmt.Errorf("%w: get %s: %v", domain.ErrNetwork, url, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return Page{}, fmt.Errorf("%w: get %s: status %d", domain.ErrNetwork, url, code)
	}
	f.log.DebugObj("fetched", "url", url)

	final := resp.URL()
	if final == "" {
		final = url
	}
	return Page{URL: url, FinalURL: final, Body: resp.Body()}, nil
}
