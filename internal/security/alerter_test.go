package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T) (*Alerter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAlerter(client, "test:alerts"), mr
}

func TestAlerterTriggersAtThreshold(t *testing.T) {
	alerter, _ := newTestAlerter(t)
	ctx := context.Background()
	var last AlertResult
	for i := 0; i < 10; i++ {
		result, err := alerter.Observe(ctx, "auth.login", "fail", "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if i < 9 && result.Triggered {
			t.Fatalf("triggered early at %d", i+1)
		}
		last = result
	}
	if !last.Triggered || last.Count != 10 || last.Window != 5*time.Minute {
		t.Fatalf("unexpected result: %+v", last)
	}

	other, err := alerter.Observe(ctx, "auth.login", "fail", "10.0.0.9")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if other.Count != 1 {
		t.Fatalf("counters are per ip, got %d", other.Count)
	}
}

func TestAlerterIgnoresUnknownRules(t *testing.T) {
	alerter, mr := newTestAlerter(t)
	cases := []struct{ event, outcome string }{
		{"auth.login", "success"},
		{"auth.custom", "fail"},
		{"users.deactivate", "success"},
	}
	for _, tc := range cases {
		result, err := alerter.Observe(context.Background(), tc.event, tc.outcome, "127.0.0.1")
		if err != nil {
			t.Fatalf("observe %s: %v", tc.event, err)
		}
		if result.Triggered || result.Count != 0 {
			t.Fatalf("unexpected result for %s/%s: %+v", tc.event, tc.outcome, result)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no counters, got %v", keys)
	}
}

func TestNilAlerter(t *testing.T) {
	var alerter *Alerter
	if NewAlerter(nil, "") != nil {
		t.Fatalf("nil client should yield nil alerter")
	}
	result, err := alerter.Observe(context.Background(), "auth.login", "fail", "127.0.0.1")
	if err != nil || result.Triggered {
		t.Fatalf("nil alerter should be a no-op: %+v %v", result, err)
	}
}

func TestSanitizeSegment(t *testing.T) {
	if got := sanitizeSegment(" a:b|c d "); got != "a_b_c_d" {
		t.Fatalf("unexpected %q", got)
	}
	if got := sanitizeSegment(""); got != "unknown" {
		t.Fatalf("unexpected %q", got)
	}
}
