package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 1 * 1024 * 1024 // 1MB
)

// ErrNoResponse is returned when a visit completed without a response reaching
// the collector.
var ErrNoResponse = errors.New("no response received")

// Page is a fetched response body together with where it ended up.
type Page struct {
	URL         string
	ContentType string
	StatusCode  int
	Body        []byte
}

type FetcherOptions struct {
	// Timeout bounds a single request. Defaults to RequestTimeout.
	Timeout time.Duration
	// Delay is the pause between requests to the same domain.
	Delay time.Duration
	// MaxResponseSize trims larger bodies. Defaults to MaxResponseSize.
	MaxResponseSize int
	// UserAgent pins the User-Agent header. Empty rotates through NextUserAgent.
	UserAgent string
}

// Fetcher retrieves remote content over HTTP. Every call runs on its own
// clone of a base collector, so a Fetcher may be used concurrently.
type Fetcher struct {
	base      *colly.Collector
	maxSize   int
	userAgent string
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = RequestTimeout
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = MaxResponseSize
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       opts.Delay,
	})
	c.SetRequestTimeout(opts.Timeout)
	return &Fetcher{base: c, maxSize: opts.MaxResponseSize, userAgent: opts.UserAgent}
}

// Fetch returns the body of rawURL. Non-2xx responses and transport
// failures are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	p, err := f.FetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return p.Body, nil
}

// FetchPage is Fetch with response metadata.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, errors.New("url must start with http:// or https://")
	}

	c := f.base.Clone()
	c.Context = ctx
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent(f.userAgent))
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var page Page
	c.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		page.URL = r.Request.URL.String()
		page.StatusCode = r.StatusCode
		page.ContentType = r.Headers.Get("Content-Type")
		page.Body = append([]byte(nil), r.Body...)
	})

	if err := c.Visit(rawURL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if page.StatusCode == 0 {
		return nil, ErrNoResponse
	}
	// An empty 2xx body is valid content.
	if page.Body == nil {
		page.Body = []byte{}
	}
	if len(page.Body) > f.maxSize {
		page.Body = append(page.Body[:f.maxSize], []byte("... [response trimmed due to size]")...)
	}
	return &page, nil
}
