package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nameHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_agent_name_cache_hits_total",
		Help: "Agent name lookups answered from memory.",
	})
	nameMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_agent_name_cache_misses_total",
		Help: "Agent name lookups not found in memory.",
	})
)

// NameCache maps (tenant, agent id) to a display name. Bounded in size,
// entries expire after ttl. Safe for concurrent use.
type NameCache struct {
	lru *expirable.LRU[string, string]
}

func NewNameCache(capacity int, ttl time.Duration) *NameCache {
	return &NameCache{lru: expirable.NewLRU[string, string](capacity, nil, ttl)}
}

func nameKey(tenantID uuid.UUID, agentID string) string {
	return tenantID.String() + "/" + agentID
}

func (c *NameCache) Get(tenantID uuid.UUID, agentID string) (string, bool) {
	v, ok := c.lru.Get(nameKey(tenantID, agentID))
	if ok {
		nameHitsTotal.Inc()
		return v, true
	}
	nameMissesTotal.Inc()
	return "", false
}

func (c *NameCache) Set(tenantID uuid.UUID, agentID, name string) {
	if agentID == "" || name == "" {
		return
	}
	c.lru.Add(nameKey(tenantID, agentID), name)
}

func (c *NameCache) Len() int { return c.lru.Len() }
