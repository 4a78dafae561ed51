package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"frameworks/api_lookout/internal/business"
	"frameworks/api_lookout/internal/fetch"
	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/api_lookout/internal/resolver"
	"frameworks/api_lookout/internal/seo"
	"frameworks/api_lookout/internal/sitemap"
	"frameworks/pkg/ctxkeys"
	"frameworks/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage is a state of the crawl state machine.
type Stage string

const (
	StageResolving  Stage = "resolving"
	StageProbing    Stage = "probing"
	StageFetching   Stage = "fetching"
	StageSitemap    Stage = "sitemap"
	StageAuxPages   Stage = "aux_pages"
	StageAuditing   Stage = "auditing"
	StageExtracting Stage = "extracting"
	StageArticles   Stage = "articles"
	StageDone       Stage = "done"
)

const (
	defaultConcurrency = 5
	defaultMaxArticles = 10
)

// CrawlRequest is one invocation of the pipeline.
type CrawlRequest struct {
	RawInput  string
	SessionID string
	// Confirmed lets a low-confidence repaired URL through once the user has
	// accepted it.
	Confirmed bool
}

// AuxPages lists the secondary pages that were fetched.
type AuxPages struct {
	About   string `json:"about,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Article is a recent post from the sitemap.
type Article struct {
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// CrawlResult is the aggregate produced by Run. It is built fresh on every
// call and never shared.
type CrawlResult struct {
	CrawlID         string                `json:"crawlId"`
	URL             string                `json:"url"`
	Validation      *resolver.ResolvedURL `json:"validation,omitempty"`
	Probe           *fetch.ProbeResult    `json:"probe,omitempty"`
	PageData        *page.Snapshot        `json:"pageData,omitempty"`
	Sitemap         *sitemap.Result       `json:"sitemap,omitempty"`
	SEOAnalysis     *seo.Report           `json:"seoAnalysis,omitempty"`
	BusinessProfile *business.Profile     `json:"businessProfile,omitempty"`
	RecentArticles  []Article             `json:"recentArticles"`
	AuxPages        AuxPages              `json:"auxPages"`
	Errors          []StepFailure         `json:"errors"`
	CrawledAt       time.Time             `json:"crawledAt"`
	Success         bool                  `json:"success"`
	DurationMs      int64                 `json:"durationMs"`
}

// Config wires the stages. Progress may be nil.
type Config struct {
	Resolver    *resolver.Resolver
	Prober      *fetch.Prober
	Fetcher     *fetch.Fetcher
	Sitemaps    *sitemap.Reader
	Auditor     *seo.Auditor
	Extractor   *business.Extractor
	Progress    ProgressPublisher
	Logger      logging.Logger
	Concurrency int
	MaxArticles int
}

// Pipeline sequences the crawl stages. It holds no per-crawl state and is
// safe for concurrent use.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = defaultMaxArticles
	}
	return &Pipeline{cfg: cfg}
}

// run carries the state of a single crawl.
type run struct {
	p       *Pipeline
	req     CrawlRequest
	mu      sync.Mutex
	result  *CrawlResult
	logger  logging.Entry
	started time.Time
}

// Run executes the crawl. The returned result is never nil. A non-nil error
// is a terminal StepError (ErrValidation or ErrUnreachable); every other
// failure is recorded in result.Errors and the crawl still succeeds.
func (p *Pipeline) Run(ctx context.Context, req CrawlRequest) (*CrawlResult, error) {
	crawlID := uuid.NewString()
	ctx = ctxkeys.WithCrawlID(ctx, crawlID)

	r := &run{
		p:   p,
		req: req,
		result: &CrawlResult{
			CrawlID:        crawlID,
			RecentArticles: []Article{},
			Errors:         []StepFailure{},
			CrawledAt:      time.Now().UTC(),
		},
		started: time.Now(),
	}
	if p.cfg.Logger != nil {
		r.logger = p.cfg.Logger.WithFields(logging.Fields{
			"crawl_id":   crawlID,
			"request_id": ctxkeys.GetRequestID(ctx),
		})
	}

	err := r.execute(ctx)
	r.result.Success = err == nil
	r.result.DurationMs = time.Since(r.started).Milliseconds()
	r.publish(ctx, StageDone, err)

	if r.logger != nil {
		r.logger.WithFields(logging.Fields{
			"url":         r.result.URL,
			"success":     r.result.Success,
			"errors":      len(r.result.Errors),
			"duration_ms": r.result.DurationMs,
		}).Info("Crawl finished")
	}
	return r.result, err
}

func (r *run) execute(ctx context.Context) error {
	cfg := r.p.cfg

	// Resolving
	r.publish(ctx, StageResolving, nil)
	start := time.Now()
	resolved, err := cfg.Resolver.Resolve(ctx, r.req.RawInput)
	metrics.ObserveStage(string(StageResolving), start)
	r.result.Validation = &resolved
	if err != nil {
		return r.terminal(StageResolving, KindValidation, err)
	}
	if resolved.NeedsConfirmation && !r.req.Confirmed {
		return r.terminal(StageResolving, KindValidation,
			fmt.Errorf("%s needs confirmation before it is crawled", resolved.Normalized))
	}
	r.result.URL = resolved.Normalized

	// Probing
	r.publish(ctx, StageProbing, nil)
	start = time.Now()
	probe := cfg.Prober.Probe(ctx, resolved.Normalized)
	metrics.ObserveStage(string(StageProbing), start)
	r.result.Probe = &probe
	if !probe.Reachable {
		return r.terminal(StageProbing, KindUnreachable, fmt.Errorf("%s: %s", resolved.Normalized, probe.Error))
	}
	siteURL := resolved.Normalized
	if probe.FinalURL != "" {
		siteURL = probe.FinalURL
	}

	robots := cfg.Sitemaps.FetchRobots(ctx, siteURL)

	// Fetching and AuxPages run alongside Sitemap. Failures are recorded,
	// never returned, so one branch cannot cancel the other.
	var pages business.Pages
	var g errgroup.Group
	g.Go(func() error {
		pages = r.fetchPages(ctx, siteURL, robots)
		return nil
	})
	g.Go(func() error {
		r.readSitemap(ctx, siteURL, robots)
		return nil
	})
	_ = g.Wait()

	if pages.Home == nil {
		return nil
	}

	// Auditing
	r.publish(ctx, StageAuditing, nil)
	start = time.Now()
	report := cfg.Auditor.Audit(ctx, pages.Home, pages.Home.URL)
	metrics.ObserveStage(string(StageAuditing), start)
	r.result.SEOAnalysis = &report

	// Extracting
	r.publish(ctx, StageExtracting, nil)
	start = time.Now()
	profile, err := cfg.Extractor.Extract(ctx, pages)
	metrics.ObserveStage(string(StageExtracting), start)
	if err != nil {
		r.record(StageExtracting, KindExtraction, err)
	}
	for _, field := range profile.Rejected {
		r.record(StageExtracting, KindVerification, fmt.Errorf("extracted %s not found on the site", field))
	}
	r.result.BusinessProfile = &profile

	r.recentArticles(ctx, robots)
	return nil
}

// fetchPages fetches the homepage, then its about and contact pages.
func (r *run) fetchPages(ctx context.Context, siteURL string, robots *sitemap.Robots) business.Pages {
	cfg := r.p.cfg
	r.publish(ctx, StageFetching, nil)
	start := time.Now()
	home, err := r.fetchDocument(ctx, siteURL)
	metrics.ObserveStage(string(StageFetching), start)
	if err != nil {
		r.record(StageFetching, KindFetch, err)
		return business.Pages{}
	}
	snap := page.Extract(home)
	r.mu.Lock()
	r.result.PageData = &snap
	r.mu.Unlock()

	aboutURL, contactURL := page.AuxLinks(home)
	if aboutURL == "" && contactURL == "" {
		return business.Pages{Home: home}
	}

	r.publish(ctx, StageAuxPages, nil)
	start = time.Now()
	var about, contact *page.Document
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	fetchAux := func(target string, dst **page.Document) {
		if target == "" || !allowed(robots, target) {
			return
		}
		g.Go(func() error {
			d, err := r.fetchDocument(gctx, target)
			if err != nil {
				r.record(StageAuxPages, KindFetch, err)
				return nil
			}
			*dst = d
			return nil
		})
	}
	fetchAux(aboutURL, &about)
	fetchAux(contactURL, &contact)
	_ = g.Wait()
	metrics.ObserveStage(string(StageAuxPages), start)

	r.mu.Lock()
	if about != nil {
		r.result.AuxPages.About = about.URL.String()
	}
	if contact != nil {
		r.result.AuxPages.Contact = contact.URL.String()
	}
	r.mu.Unlock()
	return business.Pages{Home: home, About: about, Contact: contact}
}

func (r *run) fetchDocument(ctx context.Context, target string) (*page.Document, error) {
	p, err := r.p.cfg.Fetcher.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if !p.HTML() && p.ContentType != "" {
		return nil, fmt.Errorf("%s: not an html page (%s)", target, p.ContentType)
	}
	return page.Parse(p.Body, p.Header.Get("Content-Type"), p.FinalURL)
}

func (r *run) readSitemap(ctx context.Context, siteURL string, robots *sitemap.Robots) {
	r.publish(ctx, StageSitemap, nil)
	start := time.Now()
	res, err := r.p.cfg.Sitemaps.Read(ctx, siteURL, robots)
	metrics.ObserveStage(string(StageSitemap), start)
	if err != nil {
		r.record(StageSitemap, KindFetch, err)
		return
	}
	r.mu.Lock()
	r.result.Sitemap = res
	r.mu.Unlock()
}

// recentArticles fetches the titles of the newest posts in the sitemap.
// Failures are logged and skipped.
func (r *run) recentArticles(ctx context.Context, robots *sitemap.Robots) {
	sm := r.result.Sitemap
	if sm == nil || len(sm.Categories.Posts) == 0 {
		return
	}
	r.publish(ctx, StageArticles, nil)
	start := time.Now()
	defer metrics.ObserveStage(string(StageArticles), start)

	candidates := newestPosts(sm, r.p.cfg.MaxArticles)
	articles := make([]*Article, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.p.cfg.Concurrency)
	for i, c := range candidates {
		if !allowed(robots, c.URL) {
			continue
		}
		g.Go(func() error {
			d, err := r.fetchDocument(gctx, c.URL)
			if err != nil {
				if r.logger != nil {
					r.logger.WithError(err).WithField("url", c.URL).Debug("Skipping article")
				}
				return nil
			}
			title := d.Meta("og:title")
			if title == "" {
				title = d.HTMLTitle()
			}
			if title == "" {
				return nil
			}
			articles[i] = &Article{URL: c.URL, Title: title, LastModified: c.LastModified}
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range articles {
		if a != nil {
			r.result.RecentArticles = append(r.result.RecentArticles, *a)
		}
	}
}

// newestPosts orders the posts partition by lastmod, newest first. Posts
// without a lastmod keep sitemap order after the dated ones.
func newestPosts(sm *sitemap.Result, n int) []sitemap.Entry {
	byURL := make(map[string]sitemap.Entry, len(sm.Entries))
	for _, e := range sm.Entries {
		byURL[e.URL] = e
	}
	posts := make([]sitemap.Entry, 0, len(sm.Categories.Posts))
	for _, u := range sm.Categories.Posts {
		e, ok := byURL[u]
		if !ok {
			e = sitemap.Entry{URL: u}
		}
		posts = append(posts, e)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].LastModified, posts[j].LastModified
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	if len(posts) > n {
		posts = posts[:n]
	}
	return posts
}

func allowed(robots *sitemap.Robots, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return robots.Allowed(path)
}

// terminal records a failure that aborts the crawl and returns it as a
// StepError.
func (r *run) terminal(stage Stage, kind ErrorKind, err error) error {
	r.record(stage, kind, err)
	return &StepError{Kind: kind, Step: string(stage), Err: err}
}

func (r *run) record(stage Stage, kind ErrorKind, err error) {
	metrics.StageFailures.WithLabelValues(string(stage), string(kind)).Inc()
	r.mu.Lock()
	r.result.Errors = append(r.result.Errors, StepFailure{
		Step:    string(stage),
		Kind:    kind,
		Message: err.Error(),
	})
	r.mu.Unlock()

	if r.logger == nil {
		return
	}
	entry := r.logger.WithError(err).WithFields(logging.Fields{"step": string(stage), "kind": string(kind)})
	if kind == KindVerification {
		entry.Info("Crawl step rejected a value")
		return
	}
	entry.Warn("Crawl step failed")
}

func (r *run) publish(ctx context.Context, stage Stage, failure error) {
	if r.p.cfg.Progress == nil {
		return
	}
	msg := Progress{
		CrawlID:   r.result.CrawlID,
		SessionID: r.req.SessionID,
		Stage:     stage,
		At:        time.Now().UTC(),
	}
	if failure != nil {
		msg.Failed = true
		msg.Message = failure.Error()
	}
	if err := r.p.cfg.Progress.Publish(context.WithoutCancel(ctx), msg); err != nil && r.logger != nil {
		r.logger.WithError(err).WithField("stage", string(stage)).Debug("Progress publish failed")
	}
}
