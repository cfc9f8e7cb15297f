package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
	"github.com/scythe504/linkrace-backend/internal/game"
)

const (
	nullMarker  = "null"
	negativeTTL = time.Minute
)

// Cache is a cache-aside layer in Redis in front of the lookup services.
// Not-found answers are cached briefly as "null".
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl, prefix: "linkrace:"}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func fetch[T any](ctx context.Context, c *Cache, key string, notFound error, load func(context.Context) (T, error)) (T, error) {
	var zero T
	key = c.prefix + key

	data, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil && data == nullMarker && notFound != nil:
		return zero, notFound
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal([]byte(data), &v); jsonErr == nil {
			return v, nil
		}
		log.Warn().Str("key", key).Msg("[cache] dropping undecodable entry")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("[cache] redis read failed, loading directly")
	}

	v, err := load(ctx)
	if err != nil {
		if notFound != nil && errors.Is(err, notFound) {
			_ = c.client.Set(ctx, key, nullMarker, negativeTTL).Err()
		}
		return zero, err
	}

	payload, err := json.Marshal(v)
	if err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[cache] redis write failed")
		}
	}
	return v, nil
}

type cachedPaths struct {
	cache *Cache
	next  game.PathFinder
}

// Paths wraps a PathFinder.
func (c *Cache) Paths(next game.PathFinder) game.PathFinder {
	return &cachedPaths{cache: c, next: next}
}

func (p *cachedPaths) FetchShortestPaths(ctx context.Context, source, target string) (*internal.PathInfo, error) {
	key := "paths:" + internal.NormalizeRef(source) + "|" + internal.NormalizeRef(target)
	return fetch(ctx, p.cache, key, game.ErrPathNotFound, func(ctx context.Context) (*internal.PathInfo, error) {
		return p.next.FetchShortestPaths(ctx, source, target)
	})
}

type cachedPreviews struct {
	cache *Cache
	next  game.PreviewFetcher
}

// Previews wraps a PreviewFetcher.
func (c *Cache) Previews(next game.PreviewFetcher) game.PreviewFetcher {
	return &cachedPreviews{cache: c, next: next}
}

func (p *cachedPreviews) FetchPreview(ctx context.Context, ref string) (string, error) {
	return fetch(ctx, p.cache, "preview:"+internal.NormalizeRef(ref), game.ErrTitleNotFound, func(ctx context.Context) (string, error) {
		return p.next.FetchPreview(ctx, ref)
	})
}

type cachedTitles struct {
	cache *Cache
	next  game.TitleResolver
}

// Titles wraps a TitleResolver.
func (c *Cache) Titles(next game.TitleResolver) game.TitleResolver {
	return &cachedTitles{cache: c, next: next}
}

func (t *cachedTitles) Resolve(ctx context.Context, ref string) (string, error) {
	return fetch(ctx, t.cache, "title:"+internal.NormalizeRef(ref), game.ErrTitleNotFound, func(ctx context.Context) (string, error) {
		return t.next.Resolve(ctx, ref)
	})
}
