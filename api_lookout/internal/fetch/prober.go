package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"frameworks/pkg/logging"
	"frameworks/pkg/version"
)

const defaultProbeTimeout = 10 * time.Second

// ProbeResult describes whether a site answered and where it ended up.
type ProbeResult struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"statusCode,omitempty"`
	FinalURL   string `json:"finalUrl,omitempty"`
	Redirected bool   `json:"redirected"`
	Error      string `json:"error,omitempty"`
}

// Prober checks that a resolved URL exists before anything else is fetched.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    logging.Logger
}

func NewProber(client *http.Client, timeout time.Duration, userAgent string, logger logging.Logger) *Prober {
	if client == nil {
		client = NewClient(ClientConfig{})
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return &Prober{client: client, timeout: timeout, userAgent: userAgent, logger: logger}
}

// Probe follows redirects and reports the final URL. HEAD is tried first;
// sites that refuse HEAD (405, 403, 501 and friends) get a single GET.
func (p *Prober) Probe(ctx context.Context, target string) ProbeResult {
	if _, err := ValidateURL(target); err != nil {
		return ProbeResult{Error: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.do(ctx, http.MethodHead, target)
	if err == nil && res.StatusCode >= http.StatusBadRequest {
		res, err = p.do(ctx, http.MethodGet, target)
	}
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "timed out after " + p.timeout.String()
		}
		if p.logger != nil {
			p.logger.WithError(err).WithField("url", target).Warn("Reachability probe failed")
		}
		return ProbeResult{Error: msg}
	}

	res.Reachable = res.StatusCode < http.StatusBadRequest
	res.Redirected = res.FinalURL != target
	if !res.Reachable {
		res.Error = http.StatusText(res.StatusCode)
	}
	return res
}

func (p *Prober) do(ctx context.Context, method, target string) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return ProbeResult{}, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{}, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return ProbeResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
