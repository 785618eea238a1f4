package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Options tunes the shared resty client.
type Options struct {
	Timeout time.Duration
	// Retries is the number of extra attempts for transport errors, 429 and 5xx.
	Retries   int
	RetryWait time.Duration
	// MaxRPS caps outgoing requests per second. Zero disables the cap.
	MaxRPS float64
	// RandomHeaders rotates browser-like request headers per request.
	RandomHeaders bool
	Logger        resty.Logger
	Debug         bool
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	headers func() map[string]string
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return New(Options{Timeout: timeout})
}

// New creates a RestyClient from opts.
func New(opts Options) *RestyClient {
	c := newRestyBaseClient(opts)
	rc := &RestyClient{client: c}
	if opts.MaxRPS > 0 {
		rc.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	if opts.RandomHeaders {
		rc.headers = RandomHeaders
	}
	return rc
}

// newRestyBaseClient creates a new resty.Client from opts.
func newRestyBaseClient(opts Options) *resty.Client {
	c := resty.New()
	c.SetTimeout(opts.Timeout)
	if opts.Logger != nil {
		c.SetLogger(opts.Logger)
	}
	c.SetDebug(opts.Debug)
	if opts.Retries > 0 {
		wait := opts.RetryWait
		if wait <= 0 {
			wait = 500 * time.Millisecond
		}
		c.SetRetryCount(opts.Retries).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(4 * wait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
			})
	}
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
// Explicit headers override rotated ones.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	req := r.client.R().SetContext(ctx)
	if r.headers != nil {
		req.SetHeaders(r.headers())
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }

func (r *restyResponseAdapter) URL() string {
	if raw := r.resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		return raw.Request.URL.String()
	}
	return r.resp.Request.URL
}
