package flags

import (
	"context"
	"fmt"
)

// indexOnCreate adds a freshly persisted flag to every dimension index that
// applies to it. The dedup set entry is claimed earlier in the creation
// pipeline (it has to be conditional to resolve create races), so it is not
// written here. The per-state index is also not written here: state-index
// membership is established by the first lifecycle transition.
func (e *Engine) indexOnCreate(ctx context.Context, fl *Flag) error {
	score := float64(fl.Datetime)
	member := formatID(fl.ID)

	keys := []string{
		keyChronological,
		byTypeKey(fl.Type),
		byReporterKey(fl.ReporterUID),
	}
	if fl.TargetUID != "" {
		keys = append(keys, byTargetUIDKey(fl.TargetUID))
	}
	if fl.TargetCID != "" {
		keys = append(keys, byCidKey(fl.TargetCID))
	}
	if fl.Type == TypePost {
		// direct target-pid lookups
		keys = append(keys, byPidKey(fl.TargetID))
	}
	for _, key := range keys {
		if err := e.Store.Add(ctx, key, score, member); err != nil {
			return fmt.Errorf("indexing flag %d into %s: %w", fl.ID, key, err)
		}
	}
	return nil
}

// indexOnStateChange moves a flag between per-state indices. A zero oldState
// means the flag had no state index membership yet.
func (e *Engine) indexOnStateChange(ctx context.Context, flagID int64, oldState, newState State, datetime int64) error {
	if oldState == newState {
		return nil
	}
	member := formatID(flagID)
	if oldState != "" {
		if err := e.Store.Remove(ctx, byStateKey(oldState), member); err != nil {
			return fmt.Errorf("removing flag %d from state index %s: %w", flagID, oldState, err)
		}
	}
	if err := e.Store.Add(ctx, byStateKey(newState), float64(datetime), member); err != nil {
		return fmt.Errorf("adding flag %d to state index %s: %w", flagID, newState, err)
	}
	return nil
}

// indexOnAssign records the new assignee. Prior assignee memberships are
// intentionally left in place: the per-assignee index is an assignment
// history used for auditing, not an exclusive-owner index.
func (e *Engine) indexOnAssign(ctx context.Context, flagID int64, assigneeUID string, datetime int64) error {
	if err := e.Store.Add(ctx, byAssigneeKey(assigneeUID), float64(datetime), formatID(flagID)); err != nil {
		return fmt.Errorf("adding flag %d to assignee index for %s: %w", flagID, assigneeUID, err)
	}
	return nil
}
