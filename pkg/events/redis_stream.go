package events

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream       = "lms:events"
	defaultStreamMaxLen = 10000
)

// RedisStreamPublisher appends events to a capped Redis stream.
type RedisStreamPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStreamPublisher shares an existing client; Close leaves it open.
func NewRedisStreamPublisher(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamPublisher {
	if strings.TrimSpace(stream) == "" {
		stream = defaultStream
	}
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.encode()
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    e.Type,
			"payload": string(body),
		},
	}).Err()
}

func (p *RedisStreamPublisher) Close() error { return nil }
