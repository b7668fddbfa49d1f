package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStreamPublisherAppendsEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewRedisStreamPublisher(client, "test:events", 0)
	ev := New(TypeEnrollmentCreated, map[string]string{"userId": "u1", "courseId": "c1"})
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := client.XRange(context.Background(), "test:events", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Values["type"] != TypeEnrollmentCreated {
		t.Fatalf("unexpected type field: %v", msgs[0].Values["type"])
	}
	var body struct {
		Type       string            `json:"type"`
		OccurredAt string            `json:"occurredAt"`
		Data       map[string]string `json:"data"`
	}
	raw, _ := msgs[0].Values["payload"].(string)
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if body.Type != TypeEnrollmentCreated || body.OccurredAt == "" || body.Data["courseId"] != "c1" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	p, err := Open(Config{}, nil)
	if err != nil {
		t.Fatalf("open noop: %v", err)
	}
	if _, ok := p.(Noop); !ok {
		t.Fatalf("expected Noop, got %T", p)
	}
	if _, err := Open(Config{Driver: "redis"}, nil); err == nil {
		t.Fatalf("redis driver without a client must fail")
	}
	if _, err := Open(Config{Driver: "kafka"}, nil); err == nil {
		t.Fatalf("kafka driver without brokers must fail")
	}
	if _, err := Open(Config{Driver: "carrier-pigeon"}, nil); err == nil {
		t.Fatalf("unknown driver must fail")
	}
	k, err := Open(Config{Driver: "kafka", KafkaBrokers: []string{"127.0.0.1:9092"}}, nil)
	if err != nil {
		t.Fatalf("open kafka: %v", err)
	}
	if _, ok := k.(*KafkaPublisher); !ok {
		t.Fatalf("expected KafkaPublisher, got %T", k)
	}
	_ = k.Close()
}
