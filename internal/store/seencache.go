package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// SeenCache keeps a per-platform set of already-seen posting links in Redis
// so a scrape cycle can shed known links before touching the database. It is
// strictly an optimization: the (link, platform) unique constraint remains
// the source of truth, and every cache failure degrades to "not seen".
type SeenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSeenCache parses redisURL, verifies connectivity, and returns the cache.
func NewSeenCache(ctx context.Context, redisURL string, ttl time.Duration) (*SeenCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrapf(err, "seencache: parse url %q", redisURL)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "seencache: ping")
	}

	return &SeenCache{rdb: client, ttl: ttl}, nil
}

func (c *SeenCache) key(platform string) string {
	return "autobid:seen:" + platform
}

// FilterUnseen returns the links not present in the platform's seen set.
func (c *SeenCache) FilterUnseen(ctx context.Context, platform string, links []string) ([]string, error) {
	if len(links) == 0 {
		return nil, nil
	}

	members := make([]any, len(links))
	for i, l := range links {
		members[i] = l
	}

	hits, err := c.rdb.SMIsMember(ctx, c.key(platform), members...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "seencache: membership check")
	}

	unseen := make([]string, 0, len(links))
	for i, seen := range hits {
		if !seen {
			unseen = append(unseen, links[i])
		}
	}
	return unseen, nil
}

// MarkSeen adds links to the platform's seen set and refreshes its TTL.
func (c *SeenCache) MarkSeen(ctx context.Context, platform string, links []string) error {
	if len(links) == 0 {
		return nil
	}

	members := make([]any, len(links))
	for i, l := range links {
		members[i] = l
	}

	key := c.key(platform)
	if err := c.rdb.SAdd(ctx, key, members...).Err(); err != nil {
		return eris.Wrap(err, "seencache: add links")
	}
	if c.ttl > 0 {
		if err := c.rdb.Expire(ctx, key, c.ttl).Err(); err != nil {
			return eris.Wrap(err, "seencache: refresh ttl")
		}
	}
	return nil
}

// Close releases the Redis connection.
func (c *SeenCache) Close() error {
	return c.rdb.Close()
}
