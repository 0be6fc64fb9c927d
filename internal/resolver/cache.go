package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/singleflight"
)

// TrackCache stores resolved tracks keyed by submitted link.
type TrackCache interface {
	Get(ctx context.Context, link string) (models.Track, bool, error)
	Set(ctx context.Context, link string, track models.Track) error
}

// ValkeyCache keeps resolved tracks in valkey with a TTL.
type ValkeyCache struct {
	client valkey.Client
	ttl    time.Duration
	prefix string
}

func NewValkeyCache(client valkey.Client, ttl time.Duration) *ValkeyCache {
	return &ValkeyCache{client: client, ttl: ttl, prefix: "radio:track:"}
}

func (c *ValkeyCache) Get(ctx context.Context, link string) (models.Track, bool, error) {
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+link).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return models.Track{}, false, nil
	}
	if err != nil {
		return models.Track{}, false, fmt.Errorf("valkey get: %w", err)
	}
	var t models.Track
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return models.Track{}, false, fmt.Errorf("decode cached track: %w", err)
	}
	return t, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, link string, track models.Track) error {
	raw, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("encode track: %w", err)
	}
	cmd := c.client.B().Set().Key(c.prefix + link).Value(string(raw)).ExSeconds(int64(c.ttl / time.Second)).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// DefaultSharedTimeout bounds a resolve shared by concurrent callers.
const DefaultSharedTimeout = 10 * time.Second

// Cached wraps a resolver with a track cache. Concurrent resolves of the same
// link share one upstream call. Cache errors are logged and bypassed.
//
// The shared call does not inherit any one caller's cancellation; it runs
// under Timeout instead, and each caller stops waiting when its own context
// ends.
type Cached struct {
	Timeout time.Duration

	next  Resolver
	cache TrackCache
	group singleflight.Group
	log   zerolog.Logger
}

func NewCached(next Resolver, cache TrackCache, log zerolog.Logger) *Cached {
	return &Cached{
		Timeout: DefaultSharedTimeout,
		next:    next,
		cache:   cache,
		log:     log.With().Str("component", "resolver-cache").Logger(),
	}
}

func (c *Cached) Resolve(ctx context.Context, link string) (models.Track, error) {
	key := strings.TrimSpace(link)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultSharedTimeout
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if t, ok, err := c.cache.Get(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("link", key).Msg("cache read failed")
		} else if ok {
			return t, nil
		}

		t, err := c.next.Resolve(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, t); err != nil {
			c.log.Warn().Err(err).Str("link", key).Msg("cache write failed")
		}
		return t, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return models.Track{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return models.Track{}, res.Err
	}
	if res.Shared {
		c.log.Debug().Str("link", key).Msg("resolve shared")
	}

	// Every submission is its own track.
	t := res.Val.(models.Track)
	t.ID = uuid.NewString()
	return t, nil
}
