package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"frameworks/pkg/clients"
)

const maxRetries = 3

var retryBaseDelay = 500 * time.Millisecond

// doWithRetry sends the request built by newReq, retrying throttling, 5xx
// and network errors with jittered backoff. newReq runs once per attempt so
// bodies are fresh. A response still failing after the last retry becomes an
// error.
func doWithRetry(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	executor := clients.NewHTTPExecutor(clients.HTTPExecutorConfig{
		MaxRetries: maxRetries,
		BaseDelay:  retryBaseDelay,
		MaxDelay:   8 * retryBaseDelay,
	})
	resp, err := clients.ExecuteHTTP(ctx, executor, func() (*http.Response, error) {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		return client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	if clients.DefaultShouldRetry(resp, nil) {
		resp.Body.Close()
		return nil, fmt.Errorf("retries exhausted: %s", resp.Status)
	}
	return resp, nil
}
