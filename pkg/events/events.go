// Package events publishes domain events to a broker after successful writes.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TypeUserRegistered    = "user.registered"
	TypeEnrollmentCreated = "enrollment.created"
	TypeProgressUpdated   = "progress.updated"
	TypeQuizSubmitted     = "quiz.submitted"
)

// Event is the JSON body published for every driver.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// New stamps an event with the current time.
func New(eventType string, data any) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Data: data}
}

func (e Event) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return body, nil
}

// Publisher delivers events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Config selects and configures a driver.
type Config struct {
	Driver       string
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
	KafkaTopic   string
	RedisStream  string
}

// Open builds the publisher for cfg.Driver. redisClient is only used by the
// "redis" driver. An empty driver yields Noop.
func Open(cfg Config, redisClient redis.UniversalClient) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return Noop{}, nil
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis events driver requires redisAddr")
		}
		return NewRedisStreamPublisher(redisClient, cfg.RedisStream, 0), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
