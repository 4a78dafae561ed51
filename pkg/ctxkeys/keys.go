// Package ctxkeys defines typed context keys shared by middleware and handlers.
package ctxkeys

import "context"

// Key is a typed context key to prevent collisions.
type Key string

const (
	KeyUserID    Key = "user_id"
	KeyAccountID Key = "account_id"
	KeyEmail     Key = "email"
	KeyRole      Key = "role"
	KeyAuthType  Key = "auth_type"
	KeyRequestID Key = "request_id"
	KeyCrawlID   Key = "crawl_id"
)

func stringValue(ctx context.Context, key Key) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	// gin.Context stores keys as plain strings.
	if v, ok := ctx.Value(string(key)).(string); ok {
		return v
	}
	return ""
}

func GetUserID(ctx context.Context) string { return stringValue(ctx, KeyUserID) }

func GetAccountID(ctx context.Context) string { return stringValue(ctx, KeyAccountID) }

func GetRequestID(ctx context.Context) string { return stringValue(ctx, KeyRequestID) }

// GetCrawlID returns the crawl id attached by the pipeline, if any.
func GetCrawlID(ctx context.Context) string { return stringValue(ctx, KeyCrawlID) }

// WithCrawlID attaches a crawl id for log correlation.
func WithCrawlID(ctx context.Context, crawlID string) context.Context {
	return context.WithValue(ctx, KeyCrawlID, crawlID)
}

// WithRequestID copies a request id onto a plain context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, KeyRequestID, requestID)
}
