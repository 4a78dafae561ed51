package pipeline

import (
	"context"
	"time"

	"frameworks/pkg/logging"
	"frameworks/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

// Progress is emitted whenever a crawl enters a stage.
type Progress struct {
	CrawlID   string    `json:"crawlId"`
	SessionID string    `json:"sessionId,omitempty"`
	Stage     Stage     `json:"stage"`
	Failed    bool      `json:"failed,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// ProgressPublisher receives stage transitions. Publishing is best effort.
type ProgressPublisher interface {
	Publish(ctx context.Context, p Progress) error
}

// RedisProgress fans progress out over a Redis channel so the UI layer can
// render it.
type RedisProgress struct {
	pubsub  *redis.TypedPubSub[Progress]
	channel string
}

func NewRedisProgress(client goredis.UniversalClient, channel string, logger logging.Logger) *RedisProgress {
	return &RedisProgress{pubsub: redis.NewTypedPubSub[Progress](client, logger), channel: channel}
}

func (r *RedisProgress) Publish(ctx context.Context, p Progress) error {
	return r.pubsub.Publish(ctx, r.channel, p)
}

// Subscribe streams progress events until ctx is done.
func (r *RedisProgress) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(Progress)) error {
	return r.pubsub.Subscribe(ctx, r.channel, ready, handler)
}
