package flags

import (
	"context"
	"fmt"
	"time"
)

// Update is a proposed changeset for one flag. Zero-valued fields are left
// unchanged.
type Update struct {
	State    State
	Assignee string
}

// UpdateEvent is handed to OnUpdate hooks after a changeset is applied.
// Fields holds the persisted field values, keyed by field name.
type UpdateEvent struct {
	FlagID   int64
	ActorUID string
	Fields   map[string]string
	Datetime int64
}

// Update validates and applies a state/assignee changeset. Fields equal to
// the current value, invalid states, and ineligible assignees are dropped
// silently; if nothing survives the whole call is a no-op with no history
// entry and no writes. Accepted changes are applied as one sequenced unit:
// any failure part-way aborts the operation with an error.
func (e *Engine) Update(ctx context.Context, flagID int64, actingUID string, ch Update) error {
	now := time.Now().UnixMilli()

	cur, err := e.getRaw(ctx, flagID)
	if err != nil {
		return err
	}

	fields := map[string]string{}
	history := map[string]string{}
	var newState State
	var newAssignee string

	if ch.State != "" && ch.State != cur.State {
		if !ValidState(ch.State) {
			e.Logger.Warn("dropping invalid flag state", "flagId", flagID, "state", ch.State)
		} else {
			newState = ch.State
			fields["state"] = string(ch.State)
			history["state"] = StateLabel(ch.State)
		}
	}

	if ch.Assignee != "" && ch.Assignee != cur.AssigneeUID {
		ok, err := e.assignable(ctx, cur, ch.Assignee)
		if err != nil {
			return fmt.Errorf("checking assignee eligibility for flag %d: %w", flagID, err)
		}
		if !ok {
			e.Logger.Warn("dropping ineligible flag assignee", "flagId", flagID, "assignee", ch.Assignee)
		} else {
			newAssignee = ch.Assignee
			fields["assignee"] = ch.Assignee
			history["assignee"] = ch.Assignee
		}
	}

	// empty changeset after filtering: no writes, no history, no hooks
	if len(fields) == 0 {
		return nil
	}

	if newState != "" {
		if err := e.indexOnStateChange(ctx, flagID, cur.State, newState, now); err != nil {
			return err
		}
	}
	if newAssignee != "" {
		if err := e.indexOnAssign(ctx, flagID, newAssignee, now); err != nil {
			return err
		}
	}
	if err := e.Store.SetObject(ctx, flagKey(flagID), fields); err != nil {
		return fmt.Errorf("persisting flag %d changeset: %w", flagID, err)
	}
	if err := e.appendHistory(ctx, flagID, actingUID, history, now); err != nil {
		return err
	}
	updateCount.Inc()

	e.fireUpdateHooks(ctx, &UpdateEvent{
		FlagID:   flagID,
		ActorUID: actingUID,
		Fields:   fields,
		Datetime: now,
	})

	if newAssignee != "" && newAssignee != actingUID {
		e.notify(ctx, Notice{
			Kind:    "flag-assigned",
			FlagID:  flagID,
			FromUID: actingUID,
		}, []string{newAssignee})
	}
	return nil
}

// assignable reports whether uid may be assigned to this flag: admins and
// global moderators always, category moderators for post flags in their
// category.
func (e *Engine) assignable(ctx context.Context, fl *Flag, uid string) (bool, error) {
	ok, err := e.Auth.IsAdminOrGlobalMod(ctx, uid)
	if err != nil || ok {
		return ok, err
	}
	if fl.Type == TypePost && fl.TargetCID != "" {
		return e.Auth.IsModerator(ctx, uid, fl.TargetCID)
	}
	return false, nil
}

// notify delivers fire-and-forget: failure is logged, never surfaced to the
// caller of Update or Create.
func (e *Engine) notify(ctx context.Context, notice Notice, recipients []string) {
	if e.Notifier == nil || len(recipients) == 0 {
		return
	}
	if err := e.Notifier.Push(ctx, notice, recipients); err != nil {
		notifyErrorCount.Inc()
		e.Logger.Error("flag notification delivery failed", "err", err, "kind", notice.Kind, "flagId", notice.FlagID)
	}
}
