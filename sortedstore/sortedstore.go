package sortedstore

import (
	"context"
)

// Member is a single entry of a sorted index: an opaque member string paired
// with a numeric score (for flag indices, an epoch-millisecond timestamp).
type Member struct {
	Value string
	Score float64
}

// Store is an ordered key -> (member, score) index, plus a small field/value
// object store and an atomic counter. The surface matches what Redis sorted
// sets and hashes provide; the in-memory implementation exists for tests and
// single-process deployments.
//
// Range offsets are inclusive and zero-based, with stop == -1 meaning
// "through the end", following ZRANGE conventions. Within one key, members
// with equal score are ordered by member string descending so repeated reads
// against unchanged data are stable.
type Store interface {
	Add(ctx context.Context, key string, score float64, member string) error
	// AddIfAbsent adds the member only if it is not already present in the
	// index, and reports whether it was added. Implementations must provide
	// this atomically; callers rely on it to resolve create races.
	AddIfAbsent(ctx context.Context, key string, score float64, member string) (bool, error)
	Remove(ctx context.Context, key string, member string) error
	IncrScore(ctx context.Context, key string, delta float64, member string) (float64, error)
	Score(ctx context.Context, key string, member string) (float64, bool, error)
	IsMember(ctx context.Context, key string, member string) (bool, error)
	Card(ctx context.Context, key string) (int64, error)
	RangeAsc(ctx context.Context, key string, start, stop int64) ([]Member, error)
	RangeDesc(ctx context.Context, key string, start, stop int64) ([]Member, error)
	// Intersect returns members present in every listed key, with scores
	// aggregated MAX, ordered score-descending.
	Intersect(ctx context.Context, keys []string, start, stop int64) ([]Member, error)
	// Union returns members present in any listed key, with scores
	// aggregated MAX, ordered score-descending.
	Union(ctx context.Context, keys []string, start, stop int64) ([]Member, error)

	GetObject(ctx context.Context, key string) (map[string]string, error)
	SetObject(ctx context.Context, key string, fields map[string]string) error
	IncrObjectField(ctx context.Context, key string, field string, delta int64) (int64, error)

	// NextID atomically increments and returns the named counter.
	NextID(ctx context.Context, key string) (int64, error)
}
