package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"frameworks/api_lookout/internal/metrics"
	"frameworks/pkg/cache"
	"frameworks/pkg/logging"
	"frameworks/pkg/version"
)

const (
	defaultMaxPageBytes = 5 << 20 // 5 MB
	defaultFetchTimeout = 15 * time.Second
	defaultCacheEntries = 256
)

// StatusError is returned when the target answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Page is a fetched document. It is shared between callers through the page
// cache and must not be mutated.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	FetchedAt   time.Time
}

// HTML reports whether the response declared an HTML body.
func (p *Page) HTML() bool {
	return p != nil && strings.Contains(p.ContentType, "html")
}

// Fetcher issues polite GET/HEAD requests against third-party sites. Each
// call carries its own timeout and there is no automatic retry.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	cache     *cache.Cache[*Page]
	logger    logging.Logger
}

type Option func(*Fetcher)

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// WithPageCache keeps successful GETs for ttl so the homepage fetched by the
// crawl is reused by platform detection and writing-style analysis.
func WithPageCache(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl <= 0 {
			f.cache = nil
			return
		}
		f.cache = cache.New[*Page](cache.Options{TTL: ttl, MaxEntries: defaultCacheEntries}, cache.MetricsHooks{
			OnHit:  func() { metrics.PageFetches.WithLabelValues("cache_hit").Inc() },
			OnMiss: func() { metrics.PageFetches.WithLabelValues("cache_miss").Inc() },
		})
	}
}

func NewFetcher(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = NewClient(ClientConfig{})
	}
	f := &Fetcher{
		client:    client,
		userAgent: version.UserAgent(),
		timeout:   defaultFetchTimeout,
		maxBytes:  defaultMaxPageBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches target and returns the body when the status is 2xx.
func (f *Fetcher) Get(ctx context.Context, target string) (*Page, error) {
	if f.cache == nil {
		return f.get(ctx, target)
	}
	page, _, err := f.cache.Get(ctx, target, func(ctx context.Context, key string) (*Page, bool, error) {
		p, err := f.get(ctx, key)
		return p, err == nil, err
	})
	return page, err
}

func (f *Fetcher) get(ctx context.Context, target string) (*Page, error) {
	if _, err := ValidateURL(target); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	f.decorate(req)

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.PageFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		metrics.PageFetches.WithLabelValues("status").Inc()
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		metrics.PageFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	metrics.PageFetches.WithLabelValues("ok").Inc()

	if f.logger != nil {
		f.logger.WithFields(logging.Fields{
			"url":    target,
			"status": resp.StatusCode,
			"bytes":  len(body),
		}).Debug("Fetched page")
	}

	return &Page{
		URL:         target,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Header:      resp.Header.Clone(),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

// Head issues a lightweight existence check. Servers that reject HEAD are
// retried once with a GET whose body is discarded.
func (f *Fetcher) Head(ctx context.Context, target string) (status int, contentType string, err error) {
	if _, err := ValidateURL(target); err != nil {
		return 0, "", err
	}
	status, contentType, err = f.probe(ctx, http.MethodHead, target)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		return f.probe(ctx, http.MethodGet, target)
	}
	return status, contentType, err
}

func (f *Fetcher) probe(ctx context.Context, method, target string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, "", err
	}
	f.decorate(req)
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return resp.StatusCode, mediaType(resp.Header.Get("Content-Type")), nil
}

func (f *Fetcher) decorate(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mt
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
