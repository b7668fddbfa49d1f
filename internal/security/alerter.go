package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "lms:alerts"
	observeTimeout = 2 * time.Second
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// AlertResult is the outcome of one observation.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// Alerter counts failed security events per client IP and reports when a
// rule's threshold is reached inside its window.
type Alerter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewAlerter returns nil for a nil client; a nil Alerter observes nothing.
func NewAlerter(client redis.UniversalClient, prefix string) *Alerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Alerter{client: client, prefix: prefix, now: time.Now}
}

// Observe records event/outcome for ip.
func (a *Alerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil {
		return result, nil
	}
	r, ok := alertRule(event, outcome)
	if !ok {
		return result, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	windowMs := r.window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observeTimeout)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	return AlertResult{
		Triggered: count >= r.threshold,
		Count:     count,
		Threshold: r.threshold,
		Window:    r.window,
	}, nil
}

// rule is a threshold of failures per client IP inside a fixed window.
type rule struct {
	threshold int64
	window    time.Duration
}

var failureRules = map[string]rule{
	"rate_limit":           {threshold: 20, window: time.Minute},
	"auth.login":           {threshold: 10, window: 5 * time.Minute},
	"auth.register":        {threshold: 10, window: 5 * time.Minute},
	"auth.verify":          {threshold: 25, window: 5 * time.Minute},
	"auth.role_gate":       {threshold: 25, window: 5 * time.Minute},
	"auth.enrollment_gate": {threshold: 25, window: 5 * time.Minute},
}

// Only failures are counted.
func alertRule(event, outcome string) (rule, bool) {
	if strings.TrimSpace(outcome) != "fail" {
		return rule{}, false
	}
	r, ok := failureRules[strings.TrimSpace(event)]
	return r, ok
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
