package sortedstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()

	assert.NoError(s.Add(ctx, "idx", 100, "a"))
	assert.NoError(s.Add(ctx, "idx", 300, "b"))
	assert.NoError(s.Add(ctx, "idx", 200, "c"))

	n, err := s.Card(ctx, "idx")
	assert.NoError(err)
	assert.Equal(int64(3), n)

	ok, err := s.IsMember(ctx, "idx", "b")
	assert.NoError(err)
	assert.True(ok)
	ok, err = s.IsMember(ctx, "idx", "z")
	assert.NoError(err)
	assert.False(ok)

	out, err := s.RangeDesc(ctx, "idx", 0, -1)
	assert.NoError(err)
	assert.Equal([]string{"b", "c", "a"}, values(out))

	out, err = s.RangeAsc(ctx, "idx", 0, -1)
	assert.NoError(err)
	assert.Equal([]string{"a", "c", "b"}, values(out))

	out, err = s.RangeDesc(ctx, "idx", 1, 1)
	assert.NoError(err)
	assert.Equal([]string{"c"}, values(out))

	assert.NoError(s.Remove(ctx, "idx", "c"))
	n, err = s.Card(ctx, "idx")
	assert.NoError(err)
	assert.Equal(int64(2), n)
}

func TestMemStoreAddIfAbsent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()

	added, err := s.AddIfAbsent(ctx, "dedup", 1, "post:7:42")
	assert.NoError(err)
	assert.True(added)
	added, err = s.AddIfAbsent(ctx, "dedup", 2, "post:7:42")
	assert.NoError(err)
	assert.False(added)

	// losing add must not clobber the original score
	sc, ok, err := s.Score(ctx, "dedup", "post:7:42")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(float64(1), sc)
}

func TestMemStoreIntersectUnion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()

	assert.NoError(s.Add(ctx, "a", 10, "x"))
	assert.NoError(s.Add(ctx, "a", 20, "y"))
	assert.NoError(s.Add(ctx, "a", 30, "z"))
	assert.NoError(s.Add(ctx, "b", 25, "x"))
	assert.NoError(s.Add(ctx, "b", 5, "y"))

	// MAX aggregation: x survives with 25, y with 20
	out, err := s.Intersect(ctx, []string{"a", "b"}, 0, -1)
	assert.NoError(err)
	assert.Equal([]Member{{Value: "x", Score: 25}, {Value: "y", Score: 20}}, out)

	out, err = s.Union(ctx, []string{"a", "b"}, 0, -1)
	assert.NoError(err)
	assert.Equal([]Member{{Value: "z", Score: 30}, {Value: "x", Score: 25}, {Value: "y", Score: 20}}, out)

	out, err = s.Union(ctx, []string{"a", "b"}, 1, 2)
	assert.NoError(err)
	assert.Equal([]string{"x", "y"}, values(out))

	out, err = s.Intersect(ctx, []string{"a", "missing"}, 0, -1)
	assert.NoError(err)
	assert.Empty(out)
}

func TestMemStoreObjectsAndCounter(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()

	obj, err := s.GetObject(ctx, "flag:1")
	assert.NoError(err)
	assert.Empty(obj)

	assert.NoError(s.SetObject(ctx, "flag:1", map[string]string{"type": "post", "targetId": "7"}))
	assert.NoError(s.SetObject(ctx, "flag:1", map[string]string{"state": "open"}))
	obj, err = s.GetObject(ctx, "flag:1")
	assert.NoError(err)
	assert.Equal("post", obj["type"])
	assert.Equal("open", obj["state"])

	n, err := s.IncrObjectField(ctx, "user:42", "flags", 1)
	assert.NoError(err)
	assert.Equal(int64(1), n)
	n, err = s.IncrObjectField(ctx, "user:42", "flags", 2)
	assert.NoError(err)
	assert.Equal(int64(3), n)

	id, err := s.NextID(ctx, "nextFlagId")
	assert.NoError(err)
	assert.Equal(int64(1), id)
	id, err = s.NextID(ctx, "nextFlagId")
	assert.NoError(err)
	assert.Equal(int64(2), id)
}

func TestMemStoreStableTieOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()

	assert.NoError(s.Add(ctx, "idx", 50, "1"))
	assert.NoError(s.Add(ctx, "idx", 50, "2"))
	assert.NoError(s.Add(ctx, "idx", 50, "3"))

	first, err := s.RangeDesc(ctx, "idx", 0, -1)
	assert.NoError(err)
	for i := 0; i < 5; i++ {
		again, err := s.RangeDesc(ctx, "idx", 0, -1)
		assert.NoError(err)
		assert.Equal(first, again)
	}
}

func values(members []Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Value)
	}
	return out
}
