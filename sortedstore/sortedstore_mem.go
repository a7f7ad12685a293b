package sortedstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// MemStore keeps all indices, objects and counters in process memory behind a
// single mutex. Intended for tests and small single-node deployments.
type MemStore struct {
	mu       sync.RWMutex
	sets     map[string]map[string]float64
	objects  map[string]map[string]string
	counters map[string]int64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		sets:     make(map[string]map[string]float64),
		objects:  make(map[string]map[string]string),
		counters: make(map[string]int64),
	}
}

func (s *MemStore) set(key string) map[string]float64 {
	m, ok := s.sets[key]
	if !ok {
		m = make(map[string]float64)
		s.sets[key] = m
	}
	return m
}

func (s *MemStore) Add(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key)[member] = score
	return nil
}

func (s *MemStore) AddIfAbsent(ctx context.Context, key string, score float64, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.set(key)
	if _, ok := m[member]; ok {
		return false, nil
	}
	m[member] = score
	return true, nil
}

func (s *MemStore) Remove(ctx context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.sets[key]; ok {
		delete(m, member)
	}
	return nil
}

func (s *MemStore) IncrScore(ctx context.Context, key string, delta float64, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.set(key)
	m[member] += delta
	return m[member], nil
}

func (s *MemStore) Score(ctx context.Context, key string, member string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.sets[key]
	if !ok {
		return 0, false, nil
	}
	sc, ok := m[member]
	return sc, ok, nil
}

func (s *MemStore) IsMember(ctx context.Context, key string, member string) (bool, error) {
	_, ok, err := s.Score(ctx, key, member)
	return ok, err
}

func (s *MemStore) Card(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

// sortMembersDesc orders by score descending, then member descending, which
// matches what ZREVRANGE does for equal scores.
func sortMembersDesc(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Value > members[j].Value
	})
}

// sliceRange applies inclusive zero-based start/stop offsets, -1 meaning the
// final element.
func sliceRange(members []Member, start, stop int64) []Member {
	n := int64(len(members))
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if start >= n || stop < start {
		return []Member{}
	}
	if stop >= n {
		stop = n - 1
	}
	return members[start : stop+1]
}

func (s *MemStore) members(key string) []Member {
	m := s.sets[key]
	out := make([]Member, 0, len(m))
	for v, sc := range m {
		out = append(out, Member{Value: v, Score: sc})
	}
	return out
}

func (s *MemStore) RangeAsc(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	s.mu.RLock()
	out := s.members(key)
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Value < out[j].Value
	})
	return sliceRange(out, start, stop), nil
}

func (s *MemStore) RangeDesc(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	s.mu.RLock()
	out := s.members(key)
	s.mu.RUnlock()
	sortMembersDesc(out)
	return sliceRange(out, start, stop), nil
}

func (s *MemStore) Intersect(ctx context.Context, keys []string, start, stop int64) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(keys) == 0 {
		return []Member{}, nil
	}
	out := []Member{}
	first := s.sets[keys[0]]
	for member, sc := range first {
		max := sc
		in := true
		for _, key := range keys[1:] {
			other, ok := s.sets[key][member]
			if !ok {
				in = false
				break
			}
			if other > max {
				max = other
			}
		}
		if in {
			out = append(out, Member{Value: member, Score: max})
		}
	}
	sortMembersDesc(out)
	return sliceRange(out, start, stop), nil
}

func (s *MemStore) Union(ctx context.Context, keys []string, start, stop int64) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := make(map[string]float64)
	for _, key := range keys {
		for member, sc := range s.sets[key] {
			if cur, ok := max[member]; !ok || sc > cur {
				max[member] = sc
			}
		}
	}
	out := make([]Member, 0, len(max))
	for member, sc := range max {
		out = append(out, Member{Value: member, Score: sc})
	}
	sortMembersDesc(out)
	return sliceRange(out, start, stop), nil
}

func (s *MemStore) GetObject(ctx context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		obj = make(map[string]string)
		s.objects[key] = obj
	}
	for k, v := range fields {
		obj[k] = v
	}
	return nil
}

func (s *MemStore) IncrObjectField(ctx context.Context, key string, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		obj = make(map[string]string)
		s.objects[key] = obj
	}
	cur := parseInt(obj[field])
	cur += delta
	obj[field] = formatInt(cur)
	return cur, nil
}

func (s *MemStore) NextID(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
