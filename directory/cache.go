package directory

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"github.com/openboard/modflags/flags"
)

// CachedDirectory wraps a UserDirectory with a profile cache: a local TinyLFU
// tier always, plus a shared Redis tier when a redis URL is given. Profile
// reads dominate flag hydration, so this sits between the engine and the
// database-backed directory.
type CachedDirectory struct {
	inner flags.UserDirectory
	cache *cache.Cache
	ttl   time.Duration
}

var _ flags.UserDirectory = (*CachedDirectory)(nil)

func NewCachedDirectory(inner flags.UserDirectory, redisURL string, ttl time.Duration) (*CachedDirectory, error) {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	}
	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, err
		}
		opts.Redis = rdb
	}
	return &CachedDirectory{
		inner: inner,
		cache: cache.New(opts),
		ttl:   ttl,
	}, nil
}

func profileCacheKey(uid string) string {
	return "profile/" + uid
}

func (d *CachedDirectory) Profile(ctx context.Context, uid string) (*flags.UserProfile, error) {
	var cached flags.UserProfile
	err := d.cache.Get(ctx, profileCacheKey(uid), &cached)
	if err == nil {
		return &cached, nil
	}
	if err != cache.ErrCacheMiss {
		return nil, err
	}
	profile, err := d.inner.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}
	// unknown uids are not cached, so late-registering users appear promptly
	if profile == nil {
		return nil, nil
	}
	if err := d.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   profileCacheKey(uid),
		Value: *profile,
		TTL:   d.ttl,
	}); err != nil {
		return nil, err
	}
	return profile, nil
}

// Purge drops one user's cached profile, for use after profile edits.
func (d *CachedDirectory) Purge(ctx context.Context, uid string) error {
	err := d.cache.Delete(ctx, profileCacheKey(uid))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
