package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"frameworks/api_lookout/internal/business"
	"frameworks/api_lookout/internal/intel"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/api_lookout/internal/platform"
	"frameworks/api_lookout/internal/resolver"
	"frameworks/api_lookout/internal/session"
	"frameworks/api_lookout/internal/style"
	"frameworks/pkg/ctxkeys"
	"frameworks/pkg/logging"
	"frameworks/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Crawler interface {
	Run(ctx context.Context, req pipeline.CrawlRequest) (*pipeline.CrawlResult, error)
}

type KeywordGenerator interface {
	Generate(ctx context.Context, in intel.KeywordInput) ([]intel.KeywordCandidate, error)
}

type CompetitorFinder interface {
	Find(ctx context.Context, req intel.CompetitorRequest) ([]intel.CompetitorCandidate, error)
}

type PlatformDetector interface {
	Detect(ctx context.Context, target string) (platform.Info, error)
}

type StyleAnalyzer interface {
	Analyze(ctx context.Context, input string) (style.WritingStyle, error)
}

// Deps are the services behind the Lookout API. Sessions defaults to
// session.Noop.
type Deps struct {
	Crawler     Crawler
	Keywords    KeywordGenerator
	Competitors CompetitorFinder
	Platform    PlatformDetector
	Style       StyleAnalyzer
	Sessions    session.Store
	Logger      logging.Logger
}

type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	if deps.Sessions == nil {
		deps.Sessions = session.Noop{}
	}
	return &Handler{deps: deps}
}

// Register mounts the API on an (authenticated) group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/crawl", h.Crawl)
	g.POST("/keywords", h.Keywords)
	g.POST("/competitors", h.Competitors)
	g.POST("/platform", h.Platform)
	g.POST("/writing-style", h.WritingStyle)
	g.GET("/sessions/:id", h.Session)
}

func requestContext(c *gin.Context) context.Context {
	return ctxkeys.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
}

func (h *Handler) log(c *gin.Context) logging.Entry {
	return middleware.GetContextLogger(c, h.deps.Logger)
}

// sessionKey scopes a request's session id to the authenticated account.
func sessionKey(c *gin.Context, sessionID string) string {
	return session.Scoped(ctxkeys.GetAccountID(c), sessionID)
}

// merge stores a patch when the request named a session. Persistence
// failures are logged and never fail the request.
func (h *Handler) merge(ctx context.Context, c *gin.Context, sessionID, key string, value any) {
	if sessionID == "" {
		return
	}
	if err := h.deps.Sessions.MergeSessionData(ctx, sessionKey(c, sessionID), map[string]any{key: value}); err != nil && h.deps.Logger != nil {
		h.log(c).WithError(err).WithFields(logging.Fields{"session_id": sessionID, "key": key}).Warn("Failed to persist session data")
	}
}

// cachedCrawl returns the crawl result stored for a session, if any.
func (h *Handler) cachedCrawl(ctx context.Context, c *gin.Context, sessionID string) (*pipeline.CrawlResult, bool) {
	if sessionID == "" {
		return nil, false
	}
	data, err := h.deps.Sessions.GetSessionData(ctx, sessionKey(c, sessionID))
	if err != nil {
		return nil, false
	}
	crawl, ok := session.Decode[pipeline.CrawlResult](data, session.KeyCrawledData)
	if !ok {
		return nil, false
	}
	return &crawl, true
}

type crawlRequest struct {
	URL       string `json:"url" binding:"required"`
	SessionID string `json:"sessionId"`
	Confirmed bool   `json:"confirmed"`
}

// Crawl runs the pipeline. Terminal failures still answer 200 with
// success=false and the error list.
func (h *Handler) Crawl(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	ctx := requestContext(c)

	result, err := h.deps.Crawler.Run(ctx, pipeline.CrawlRequest{
		RawInput:  req.URL,
		SessionID: req.SessionID,
		Confirmed: req.Confirmed,
	})
	if err != nil && h.deps.Logger != nil {
		h.log(c).WithError(err).WithField("input", req.URL).Info("Crawl ended early")
	}
	h.merge(ctx, c, req.SessionID, session.KeyCrawledData, result)
	c.JSON(http.StatusOK, result)
}

type keywordsRequest struct {
	SessionID        string            `json:"sessionId"`
	BusinessProfile  *business.Profile `json:"businessProfile"`
	ExistingKeywords []string          `json:"existingKeywords"`
	CustomKeywords   []string          `json:"customKeywords"`
	Competitors      []string          `json:"competitors"`
}

func (h *Handler) Keywords(c *gin.Context) {
	var req keywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := requestContext(c)

	in := intel.KeywordInput{
		ExistingKeywords: req.ExistingKeywords,
		Custom:           req.CustomKeywords,
		Competitors:      req.Competitors,
	}
	switch {
	case req.BusinessProfile != nil:
		in.Profile = *req.BusinessProfile
	default:
		crawl, ok := h.cachedCrawl(ctx, c, req.SessionID)
		if !ok || crawl.BusinessProfile == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "businessProfile is required when the session has no crawl"})
			return
		}
		in.Profile = *crawl.BusinessProfile
		if len(in.ExistingKeywords) == 0 && crawl.PageData != nil {
			in.ExistingKeywords = crawl.PageData.Keywords
		}
	}

	keywords, err := h.deps.Keywords.Generate(ctx, in)
	resp := gin.H{"keywords": keywords}
	if err != nil {
		resp["degraded"] = true
		if h.deps.Logger != nil {
			h.log(c).WithError(err).Warn("Keyword generation fell back to crawled data")
		}
	}
	h.merge(ctx, c, req.SessionID, session.KeyKeywordSuggestions, keywords)
	c.JSON(http.StatusOK, resp)
}

type competitorsRequest struct {
	SessionID     string   `json:"sessionId"`
	Keywords      []string `json:"keywords"`
	ExcludeDomain string   `json:"excludeDomain"`
	TargetLocale  string   `json:"targetLocale"`
}

func (h *Handler) Competitors(c *gin.Context) {
	var req competitorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := requestContext(c)

	if len(req.Keywords) == 0 || req.ExcludeDomain == "" {
		h.fillFromSession(ctx, c, &req)
	}
	if len(req.Keywords) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keywords are required"})
		return
	}

	competitors, err := h.deps.Competitors.Find(ctx, intel.CompetitorRequest{
		Keywords:      req.Keywords,
		ExcludeDomain: req.ExcludeDomain,
		TargetLocale:  req.TargetLocale,
	})
	if err != nil {
		if h.deps.Logger != nil {
			h.log(c).WithError(err).Warn("Competitor discovery failed")
		}
		if errors.Is(err, intel.ErrNoCompetitorSources) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "competitor sources are unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "competitor discovery failed"})
		return
	}
	h.merge(ctx, c, req.SessionID, session.KeyCompetitorSuggestions, competitors)
	c.JSON(http.StatusOK, gin.H{"competitors": competitors})
}

// fillFromSession defaults keywords to the stored suggestions and the
// excluded domain to the crawled site.
func (h *Handler) fillFromSession(ctx context.Context, c *gin.Context, req *competitorsRequest) {
	if req.SessionID == "" {
		return
	}
	data, err := h.deps.Sessions.GetSessionData(ctx, sessionKey(c, req.SessionID))
	if err != nil {
		return
	}
	if len(req.Keywords) == 0 {
		if stored, ok := session.Decode[[]intel.KeywordCandidate](data, session.KeyKeywordSuggestions); ok {
			for _, k := range stored {
				req.Keywords = append(req.Keywords, k.Keyword)
			}
		}
	}
	if req.ExcludeDomain == "" {
		if crawl, ok := session.Decode[pipeline.CrawlResult](data, session.KeyCrawledData); ok && crawl.URL != "" {
			req.ExcludeDomain = resolver.RootDomain(crawl.URL)
		}
	}
}

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *Handler) Platform(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	target, ok := resolver.Normalize(req.URL)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolver.ErrUnrecognizable.Error()})
		return
	}
	info, err := h.deps.Platform.Detect(requestContext(c), target)
	if err != nil {
		if h.deps.Logger != nil {
			h.log(c).WithError(err).WithField("url", target).Warn("Platform detection failed")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch " + target})
		return
	}
	c.JSON(http.StatusOK, info)
}

type styleRequest struct {
	Input string `json:"input"`
}

func (h *Handler) WritingStyle(c *gin.Context) {
	var req styleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Input) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": style.ErrEmptyInput.Error()})
		return
	}
	result, err := h.deps.Style.Analyze(requestContext(c), req.Input)
	switch {
	case errors.Is(err, style.ErrEmptyInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		if h.deps.Logger != nil {
			h.log(c).WithError(err).Warn("Writing style analysis failed")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not analyze the input"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Session(c *gin.Context) {
	data, err := h.deps.Sessions.GetSessionData(requestContext(c), sessionKey(c, c.Param("id")))
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrInvalidSession):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	case err != nil:
		if h.deps.Logger != nil {
			h.log(c).WithError(err).Error("Failed to load session")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, data)
}
