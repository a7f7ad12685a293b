package flags

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openboard/modflags/sortedstore"
)

func TestCreateBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	detail, err := eng.Create(ctx, CreateRequest{
		Type:        TypePost,
		TargetID:    "7",
		ReporterUID: "42",
		Reason:      "spam",
	})
	assert.NoError(err)
	assert.Equal(int64(1), detail.ID)
	assert.Equal(StateOpen, detail.State)
	assert.Equal("spam", detail.Description)
	assert.Equal("11", detail.TargetUID)
	assert.Equal("2", detail.TargetCID)
	assert.NotNil(detail.Reporter)
	assert.Equal("reporter", detail.Reporter.Username)

	// creation lands in history exactly once, at or after creation time
	assert.Len(detail.History, 1)
	assert.Equal("42", detail.History[0].UID)
	assert.Equal("Open", detail.History[0].Fields["state"])
	assert.GreaterOrEqual(detail.History[0].Datetime, detail.Datetime)

	// second identical report is a duplicate
	_, err = eng.Create(ctx, CreateRequest{
		Type:        TypePost,
		TargetID:    "7",
		ReporterUID: "42",
		Reason:      "spam again",
	})
	assert.ErrorIs(err, ErrDuplicateFlag)

	// and exactly one record exists
	n, err := eng.Store.Card(ctx, "flags:datetime")
	assert.NoError(err)
	assert.Equal(int64(1), n)

	ok, err := eng.Exists(ctx, TypePost, "7", "42")
	assert.NoError(err)
	assert.True(ok)
}

func TestCreateValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.Create(ctx, CreateRequest{Type: "widget", TargetID: "7", ReporterUID: "42"})
	assert.ErrorIs(err, ErrInvalidInput)

	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, ReporterUID: "42"})
	assert.ErrorIs(err, ErrInvalidInput)

	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "404", ReporterUID: "42"})
	assert.ErrorIs(err, ErrInvalidTarget)

	// banned reporter
	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "13"})
	assert.ErrorIs(err, ErrUserNotEligible)

	// unknown reporter
	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "999"})
	assert.ErrorIs(err, ErrUserNotEligible)

	// no read privilege on the post
	eng.Auth.(*MockAuthorizer).DenyFlag["42"] = true
	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "42"})
	assert.ErrorIs(err, ErrUnauthorized)
}

func TestCreateReputationGate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Config.MinReputationToFlag = 50

	_, err := eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "42"})
	assert.ErrorIs(err, ErrUnauthorized)

	// uid 5 has reputation 50
	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "5"})
	assert.NoError(err)
}

func TestCreateIndexes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	detail, err := eng.Create(ctx, CreateRequest{
		Type:        TypePost,
		TargetID:    "7",
		ReporterUID: "42",
		Reason:      "spam",
	})
	assert.NoError(err)
	member := fmt.Sprintf("%d", detail.ID)

	for _, key := range []string{
		"flags:datetime",
		"flags:byType:post",
		"flags:byReporter:42",
		"flags:byTargetUid:11",
		"flags:byCid:2",
		"flags:byPid:7",
		"flags:byState:open",
	} {
		ok, err := eng.Store.IsMember(ctx, key, member)
		assert.NoError(err)
		assert.True(ok, key)
	}

	// aggregate abuse signal on the post owner
	sc, ok, err := eng.Store.Score(ctx, "users:flagCount", "11")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(float64(1), sc)
	obj, err := eng.Store.GetObject(ctx, "user:11")
	assert.NoError(err)
	assert.Equal("1", obj["flags"])
}

func TestCreateUserTarget(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	detail, err := eng.Create(ctx, CreateRequest{
		Type:        TypeUser,
		TargetID:    "11",
		ReporterUID: "42",
		Reason:      "abusive profile",
	})
	assert.NoError(err)
	member := fmt.Sprintf("%d", detail.ID)

	ok, err := eng.Store.IsMember(ctx, "flags:byType:user", member)
	assert.NoError(err)
	assert.True(ok)

	// no owner resolved, so no owner index and no abuse counter
	_, ok, err = eng.Store.Score(ctx, "users:flagCount", "11")
	assert.NoError(err)
	assert.False(ok)
}

func TestCreateBackfill(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	detail, err := eng.Create(ctx, CreateRequest{
		Type:        TypePost,
		TargetID:    "7",
		ReporterUID: "42",
		Reason:      "imported",
		Datetime:    1700000000000,
	})
	assert.NoError(err)
	assert.Equal(int64(1700000000000), detail.Datetime)

	// imported flags skip the initial lifecycle transition: no history,
	// state reads as open by default, no state index membership yet
	assert.Empty(detail.History)
	assert.Equal(StateOpen, detail.State)
	ok, err := eng.Store.IsMember(ctx, "flags:byState:open", "1")
	assert.NoError(err)
	assert.False(ok)
}

func TestCreateDuplicateWinsOverDeletedTarget(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "42"})
	assert.NoError(err)

	// soft-delete the post after the first report
	eng.Targets.(*MockTargets).MarkDeleted(TypePost, "7")

	// the original reporter sees the duplicate, not the deletion
	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "42"})
	assert.ErrorIs(err, ErrDuplicateFlag)

	// a fresh reporter sees the deletion
	_, err = eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "5"})
	assert.ErrorIs(err, ErrTargetDeleted)
}

// persistFailStore refuses a number of object writes before behaving normally.
type persistFailStore struct {
	sortedstore.Store
	failures int
}

func (s *persistFailStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("write refused")
	}
	return s.Store.SetObject(ctx, key, fields)
}

func TestCreateReleasesDedupClaimOnPersistFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Store = &persistFailStore{Store: eng.Store, failures: 1}

	_, err := eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "42"})
	assert.Error(err)
	assert.NotErrorIs(err, ErrDuplicateFlag)

	// the failed attempt must not poison the dedup set
	ok, err := eng.Exists(ctx, TypePost, "7", "42")
	assert.NoError(err)
	assert.False(ok)

	// retrying the same report now succeeds
	detail, err := eng.Create(ctx, CreateRequest{Type: TypePost, TargetID: "7", ReporterUID: "42"})
	assert.NoError(err)
	assert.Equal(StateOpen, detail.State)
}
