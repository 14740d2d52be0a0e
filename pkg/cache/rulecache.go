package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// RuleCache caches each organization's active rule list in Redis with a
// short TTL. The engine reads rules on every lead, the catalog changes
// rarely, and the round-robin cursor is deliberately NOT read from here:
// cursor strategies always hit the store fresh, so a stale cached rule
// row is harmless.
type RuleCache struct {
	source  assignment.RuleSource
	client  *Client
	ttl     time.Duration
	metrics *metrics.Metrics
	log     logger.Logger
}

var _ assignment.RuleSource = (*RuleCache)(nil)

// NewRuleCache wraps a rule source with a Redis-backed cache.
func NewRuleCache(source assignment.RuleSource, client *Client, ttl time.Duration, m *metrics.Metrics, log logger.Logger) *RuleCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RuleCache{source: source, client: client, ttl: ttl, metrics: m, log: log}
}

func ruleKey(orgID int) string {
	return fmt.Sprintf("rules:active:%d", orgID)
}

// ActiveRules serves from cache when possible and falls through to the
// underlying source on a miss or any Redis error.
func (c *RuleCache) ActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error) {
	key := ruleKey(orgID)

	if raw, err := c.client.Get(ctx, key); err == nil {
		var rules []*models.AssignmentRule
		if err := json.Unmarshal([]byte(raw), &rules); err == nil {
			c.hit()
			return rules, nil
		}
		c.log.Warn("discarding undecodable rule cache entry", "key", key, "error", err)
		_ = c.client.Delete(ctx, key)
	}
	c.miss()

	rules, err := c.source.ActiveRules(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(rules); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl); err != nil {
			c.log.Warn("failed to populate rule cache", "key", key, "error", err)
		}
	}
	return rules, nil
}

// Invalidate drops the cached rule list after a catalog mutation.
func (c *RuleCache) Invalidate(ctx context.Context, orgID int) {
	if err := c.client.Delete(ctx, ruleKey(orgID)); err != nil {
		c.log.Warn("failed to invalidate rule cache", "org_id", orgID, "error", err)
	}
}

func (c *RuleCache) hit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit("rules")
	}
}

func (c *RuleCache) miss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss("rules")
	}
}
