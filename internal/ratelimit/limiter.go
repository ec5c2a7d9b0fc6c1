package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// attemptScript counts an attempt and compares it with the limit in one step,
// so concurrent callers cannot all pass a check made before any of them
// recorded a failure.
var attemptScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`)

// Limiter counts PIN attempts per subject in a fixed Redis window. Every
// attempt is reserved up front and a successful check clears the count, so
// the counter holds consecutive failures plus attempts in flight.
// A Limiter without a client allows everything.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func New(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "cashless:pin"
	}
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// NewFromURL connects to Redis. An empty URL yields a disabled limiter.
func NewFromURL(ctx context.Context, rawURL string, limit int) (*Limiter, error) {
	if strings.TrimSpace(rawURL) == "" {
		return New(nil, "", limit, time.Minute), nil
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, "", limit, time.Minute), nil
}

func (l *Limiter) enabled() bool {
	return l != nil && l.client != nil && l.limit > 0 && l.window > 0
}

func (l *Limiter) key(subject string) string {
	return l.prefix + ":" + strings.ToLower(strings.TrimSpace(subject))
}

// Reserve records an attempt for subject and reports whether it is within
// the limit.
func (l *Limiter) Reserve(ctx context.Context, subject string) (bool, error) {
	if !l.enabled() {
		return true, nil
	}
	windowMs := l.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}
	ok, err := attemptScript.Run(ctx, l.client, []string{l.key(subject)}, windowMs, l.limit).Int()
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}

// Reset clears the counter after a successful verification.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	if !l.enabled() {
		return nil
	}
	return l.client.Del(ctx, l.key(subject)).Err()
}

func (l *Limiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
