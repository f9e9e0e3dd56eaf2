package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/redis/go-redis/v9"
)

const defaultAdminTTL = 5 * time.Minute

// Cached is a read-through Redis decorator over another Lookup. Admin
// assignments change rarely, so a short TTL keeps the directory off the
// hot submission path without holding stale admins for long.
type Cached struct {
	next   Lookup
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewCached(next Lookup, client *redis.Client, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		client: client,
		logger: logger,
		ttl:    defaultAdminTTL,
	}
}

func (c *Cached) FindAdminUser(ctx context.Context, body models.OrganizationBody, entityID string) (string, error) {
	key := adminCacheKey(body, entityID)

	userID, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return userID, nil
	}

	if !errors.Is(err, redis.Nil) {
		// Cache trouble must not break resolution; fall through to the
		// directory and log.
		c.logger.WarnContext(ctx, "hierarchy cache read failed", "key", key, "error", err)
	}

	userID, err = c.next.FindAdminUser(ctx, body, entityID)
	if err != nil {
		return "", err
	}

	if setErr := c.client.Set(ctx, key, userID, c.ttl).Err(); setErr != nil {
		c.logger.WarnContext(ctx, "hierarchy cache write failed", "key", key, "error", setErr)
	}

	return userID, nil
}

func adminCacheKey(body models.OrganizationBody, entityID string) string {
	return fmt.Sprintf("coopcore:hierarchy:admin:%s:%s", body, entityID)
}
