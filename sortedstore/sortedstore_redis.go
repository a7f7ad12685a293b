package sortedstore

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis sorted sets and hashes.
type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) Add(ctx context.Context, key string, score float64, member string) error {
	return s.Client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) AddIfAbsent(ctx context.Context, key string, score float64, member string) (bool, error) {
	added, err := s.Client.ZAddNX(ctx, key, redis.Z{Score: score, Member: member}).Result()
	if err != nil {
		return false, err
	}
	return added > 0, nil
}

func (s *RedisStore) Remove(ctx context.Context, key string, member string) error {
	return s.Client.ZRem(ctx, key, member).Err()
}

func (s *RedisStore) IncrScore(ctx context.Context, key string, delta float64, member string) (float64, error) {
	return s.Client.ZIncrBy(ctx, key, delta, member).Result()
}

func (s *RedisStore) Score(ctx context.Context, key string, member string) (float64, bool, error) {
	sc, err := s.Client.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return sc, true, nil
}

func (s *RedisStore) IsMember(ctx context.Context, key string, member string) (bool, error) {
	_, ok, err := s.Score(ctx, key, member)
	return ok, err
}

func (s *RedisStore) Card(ctx context.Context, key string) (int64, error) {
	return s.Client.ZCard(ctx, key).Result()
}

func zToMembers(zs []redis.Z) []Member {
	out := make([]Member, 0, len(zs))
	for _, z := range zs {
		v, _ := z.Member.(string)
		out = append(out, Member{Value: v, Score: z.Score})
	}
	return out
}

func (s *RedisStore) RangeAsc(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	zs, err := s.Client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return zToMembers(zs), nil
}

func (s *RedisStore) RangeDesc(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	zs, err := s.Client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return zToMembers(zs), nil
}

// ZINTER/ZUNION return members ordered score-ascending; re-sort descending
// and slice client-side, since the commands take no range arguments.
func descSlice(zs []redis.Z, start, stop int64) []Member {
	out := zToMembers(zs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Value > out[j].Value
	})
	return sliceRange(out, start, stop)
}

func (s *RedisStore) Intersect(ctx context.Context, keys []string, start, stop int64) ([]Member, error) {
	if len(keys) == 0 {
		return []Member{}, nil
	}
	zs, err := s.Client.ZInterWithScores(ctx, &redis.ZStore{
		Keys:      keys,
		Aggregate: "MAX",
	}).Result()
	if err != nil {
		return nil, err
	}
	return descSlice(zs, start, stop), nil
}

func (s *RedisStore) Union(ctx context.Context, keys []string, start, stop int64) ([]Member, error) {
	if len(keys) == 0 {
		return []Member{}, nil
	}
	zs, err := s.Client.ZUnionWithScores(ctx, redis.ZStore{
		Keys:      keys,
		Aggregate: "MAX",
	}).Result()
	if err != nil {
		return nil, err
	}
	return descSlice(zs, start, stop), nil
}

func (s *RedisStore) GetObject(ctx context.Context, key string) (map[string]string, error) {
	return s.Client.HGetAll(ctx, key).Result()
}

func (s *RedisStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.Client.HSet(ctx, key, fields).Err()
}

func (s *RedisStore) IncrObjectField(ctx context.Context, key string, field string, delta int64) (int64, error) {
	return s.Client.HIncrBy(ctx, key, field, delta).Result()
}

func (s *RedisStore) NextID(ctx context.Context, key string) (int64, error) {
	return s.Client.Incr(ctx, key).Result()
}
