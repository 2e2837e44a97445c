package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ivanreeve/poop-tracker/internal"
)

const (
	profileKeyPrefix  = "profile:"
	DefaultProfileTTL = 10 * time.Minute
)

// CachedProfiles is a read-through Redis cache in front of a profile
// repository. Cache failures are logged and fall through to the repository.
type CachedProfiles struct {
	ProfileRepository
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger internal.Logger
}

func NewCachedProfiles(next ProfileRepository, rdb redis.UniversalClient, ttl time.Duration, logger internal.Logger) *CachedProfiles {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &CachedProfiles{ProfileRepository: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedProfiles) ListProfiles(ctx context.Context, ids []string) ([]internal.Profile, error) {
	if len(ids) == 0 {
		return []internal.Profile{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKeyPrefix + id
	}

	found := make(map[string]internal.Profile, len(ids))
	var missing []string
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warnf("storage: profile cache read failed: %v", err)
		missing = ids
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var p internal.Profile
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			found[p.ID] = p
		}
	}

	if len(missing) > 0 {
		fetched, err := c.ProfileRepository.ListProfiles(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range fetched {
			found[p.ID] = p
			c.store(ctx, p)
		}
	}

	out := make([]internal.Profile, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *CachedProfiles) UpsertProfile(ctx context.Context, p internal.Profile) (*internal.Profile, error) {
	out, err := c.ProfileRepository.UpsertProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	c.store(ctx, *out)
	return out, nil
}

func (c *CachedProfiles) store(ctx context.Context, p internal.Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, profileKeyPrefix+p.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warnf("storage: profile cache write failed: %v", err)
	}
}

// NewRedisClient accepts a redis:// URL or a bare host:port and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var opt *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: addr}
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// cachedStore routes profile reads and writes through a CachedProfiles.
type cachedStore struct {
	Store
	profiles *CachedProfiles
}

func (s cachedStore) ListProfiles(ctx context.Context, ids []string) ([]internal.Profile, error) {
	return s.profiles.ListProfiles(ctx, ids)
}

func (s cachedStore) UpsertProfile(ctx context.Context, p internal.Profile) (*internal.Profile, error) {
	return s.profiles.UpsertProfile(ctx, p)
}

// WithProfileCache wraps store so profile lookups by id hit Redis first.
func WithProfileCache(store Store, rdb redis.UniversalClient, ttl time.Duration, logger internal.Logger) Store {
	return cachedStore{Store: store, profiles: NewCachedProfiles(store, rdb, ttl, logger)}
}

var (
	_ ProfileRepository = (*CachedProfiles)(nil)
	_ Store             = cachedStore{}
)
