// Package throttle caps the number of in-flight provider calls per tenant.
// Counters live in Redis so the cap holds across replicas.
package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agent-console/internal/upstream"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Returns 1 when a slot was taken, 0 when the tenant is at its limit.
// The TTL keeps a crashed holder from leaking a slot forever.
var acquireScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var releaseScript = redis.NewScript(`
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return current
`)

// Release gives a slot back. It is always safe to call.
type Release func()

func noop() {}

// Cap is a per-tenant concurrency limit. A nil *Cap, a nil client or a
// non-positive limit disables it.
type Cap struct {
	rdb   redis.Scripter
	limit int
	ttl   time.Duration
	log   *slog.Logger
}

func NewCap(rdb redis.Scripter, limit int, ttl time.Duration, log *slog.Logger) *Cap {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cap{rdb: rdb, limit: limit, ttl: ttl, log: log.With("component", "throttle")}
}

func key(tenantID uuid.UUID) string {
	return "console:upstream:inflight:" + tenantID.String()
}

// Acquire takes one slot for the tenant. A full cap is reported as
// upstream.ErrUnavailable so callers fall back to cached data. Redis
// failures let the call through.
func (c *Cap) Acquire(ctx context.Context, tenantID uuid.UUID) (Release, error) {
	if c == nil || c.rdb == nil || c.limit <= 0 {
		return noop, nil
	}
	k := key(tenantID)
	ok, err := acquireScript.Run(ctx, c.rdb, []string{k}, c.limit, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.log.Warn("concurrency cap unavailable, allowing call", "tenant_id", tenantID.String(), "err", err)
		return noop, nil
	}
	if ok != 1 {
		return noop, &upstream.Error{
			Op:   "throttle",
			Kind: upstream.ErrUnavailable,
			Err:  fmt.Errorf("tenant at %d concurrent provider calls", c.limit),
		}
	}
	return func() {
		// the request context may already be done
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, c.rdb, []string{k}).Err(); err != nil {
			c.log.Warn("concurrency cap release failed", "tenant_id", tenantID.String(), "err", err)
		}
	}, nil
}
