package flags

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustCreate(t *testing.T, eng *Engine) *FlagDetail {
	t.Helper()
	detail, err := eng.Create(context.Background(), CreateRequest{
		Type:        TypePost,
		TargetID:    "7",
		ReporterUID: "42",
		Reason:      "spam",
	})
	if err != nil {
		t.Fatal(err)
	}
	return detail
}

func TestUpdateStateChange(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fl := mustCreate(t, eng)
	time.Sleep(2 * time.Millisecond)

	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{State: StateWIP}))

	got, err := eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Equal(StateWIP, got.State)
	assert.Len(got.History, 2)
	// newest first
	assert.Equal("9", got.History[0].UID)
	assert.Equal("In Progress", got.History[0].Fields["state"])
	assert.Equal("Open", got.History[1].Fields["state"])

	ok, _ := eng.Store.IsMember(ctx, "flags:byState:open", "1")
	assert.False(ok)
	ok, _ = eng.Store.IsMember(ctx, "flags:byState:wip", "1")
	assert.True(ok)
}

func TestUpdateBogusStateIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fl := mustCreate(t, eng)

	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{State: "bogus"}))

	got, err := eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Equal(StateOpen, got.State)
	assert.Len(got.History, 1)
}

func TestUpdateEqualValuesIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fl := mustCreate(t, eng)

	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{State: StateOpen}))

	got, err := eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Len(got.History, 1)
}

func TestUpdateAssignee(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fl := mustCreate(t, eng)
	time.Sleep(2 * time.Millisecond)

	// uid 42 is neither admin nor moderator: dropped silently
	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{Assignee: "42"}))
	got, err := eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Empty(got.AssigneeUID)
	assert.Len(got.History, 1)

	// admin is assignable; assignment by someone else notifies them
	assert.NoError(eng.Update(ctx, fl.ID, "42", Update{Assignee: "9"}))
	got, err = eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Equal("9", got.AssigneeUID)
	assert.Len(got.History, 2)
	ok, _ := eng.Store.IsMember(ctx, "flags:byAssignee:9", "1")
	assert.True(ok)

	sent := eng.Notifier.(*TestNotifier).Sent
	assert.Len(sent, 1)
	assert.Equal("flag-assigned", sent[0].Notice.Kind)
	assert.Equal([]string{"9"}, sent[0].Recipients)

	// category moderator of the post's category is assignable too; the
	// prior assignee index membership is retained, not removed
	time.Sleep(2 * time.Millisecond)
	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{Assignee: "5"}))
	got, err = eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Equal("5", got.AssigneeUID)
	ok, _ = eng.Store.IsMember(ctx, "flags:byAssignee:5", "1")
	assert.True(ok)
	ok, _ = eng.Store.IsMember(ctx, "flags:byAssignee:9", "1")
	assert.True(ok)
}

func TestUpdateSelfAssignNoNotification(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fl := mustCreate(t, eng)

	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{Assignee: "9"}))
	got, err := eng.Get(ctx, fl.ID)
	assert.NoError(err)
	assert.Equal("9", got.AssigneeUID)
	assert.Empty(eng.Notifier.(*TestNotifier).Sent)
}

func TestUpdateMissingFlag(t *testing.T) {
	assert := assert.New(t)
	eng := EngineTestFixture()
	err := eng.Update(context.Background(), 404, "9", Update{State: StateWIP})
	assert.ErrorIs(err, ErrNotFound)
}

func TestUpdateHookFires(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	var events []*UpdateEvent
	eng.Hooks.OnUpdate = append(eng.Hooks.OnUpdate, func(ctx context.Context, ev *UpdateEvent) error {
		events = append(events, ev)
		return nil
	})

	fl := mustCreate(t, eng)
	assert.Len(events, 1) // the creation transition to open

	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{State: StateResolved}))
	assert.Len(events, 2)
	assert.Equal("resolved", events[1].Fields["state"])

	// no-op updates fire no hook
	assert.NoError(eng.Update(ctx, fl.ID, "9", Update{State: "bogus"}))
	assert.Len(events, 2)
}
