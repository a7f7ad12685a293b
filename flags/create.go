package flags

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

type CreateRequest struct {
	Type        string
	TargetID    string
	ReporterUID string
	Reason      string
	// Datetime, when non-zero, marks a backfilled/imported flag: the
	// timestamp is used as-is and the initial history entry is skipped,
	// since imported flags are assumed to carry correct history already.
	Datetime int64
}

// Create validates and records a new flag, updates every dimension index,
// and returns the hydrated view of the new record.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*FlagDetail, error) {
	if !e.validType(req.Type) {
		return nil, fmt.Errorf("unknown flag type %q: %w", req.Type, ErrInvalidInput)
	}
	if req.TargetID == "" || req.ReporterUID == "" {
		return nil, fmt.Errorf("missing target or reporter: %w", ErrInvalidInput)
	}

	// precondition checks run concurrently, then evaluate most-specific
	// reason first: duplicate, existence, eligibility, authorization
	var (
		dup, exists, allowed bool
		ownerUID, cid        string
		reporter             *UserProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dup, err = e.Exists(gctx, req.Type, req.TargetID, req.ReporterUID)
		return err
	})
	g.Go(func() error {
		var err error
		exists, err = e.Targets.Exists(gctx, req.Type, req.TargetID)
		return err
	})
	g.Go(func() error {
		var err error
		allowed, err = e.Auth.CanFlag(gctx, req.Type, req.TargetID, req.ReporterUID)
		return err
	})
	g.Go(func() error {
		var err error
		ownerUID, err = e.Targets.OwnerUID(gctx, req.Type, req.TargetID)
		return err
	})
	g.Go(func() error {
		var err error
		cid, err = e.Targets.CategoryID(gctx, req.Type, req.TargetID)
		return err
	})
	g.Go(func() error {
		var err error
		reporter, err = e.Users.Profile(gctx, req.ReporterUID)
		return err
	})
	waitErr := g.Wait()

	// a known duplicate wins even when another check errored, so a reporter
	// who already flagged a since-deleted target still sees the duplicate
	if dup {
		return nil, ErrDuplicateFlag
	}
	if waitErr != nil {
		return nil, fmt.Errorf("flag precondition checks: %w", waitErr)
	}
	if !exists {
		return nil, ErrInvalidTarget
	}
	if reporter == nil || reporter.Banned {
		return nil, ErrUserNotEligible
	}
	if !allowed {
		return nil, ErrUnauthorized
	}
	if e.Config.MinReputationToFlag > 0 && reporter.Reputation < e.Config.MinReputationToFlag {
		return nil, fmt.Errorf("reputation below flagging threshold: %w", ErrUnauthorized)
	}

	backfill := req.Datetime != 0
	datetime := req.Datetime
	if !backfill {
		datetime = time.Now().UnixMilli()
	}

	id, err := e.Store.NextID(ctx, keyNextID)
	if err != nil {
		return nil, fmt.Errorf("allocating flag id: %w", err)
	}

	// authoritative duplicate claim: the membership check above only
	// narrows, a concurrent create for the same triple loses here
	claimed, err := e.Store.AddIfAbsent(ctx, keyDedup, float64(id), dedupMember(req.Type, req.TargetID, req.ReporterUID))
	if err != nil {
		return nil, fmt.Errorf("claiming flag dedup entry: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicateFlag
	}

	fl := &Flag{
		ID:          id,
		Type:        req.Type,
		TargetID:    req.TargetID,
		ReporterUID: req.ReporterUID,
		Description: req.Reason,
		Datetime:    datetime,
		TargetUID:   ownerUID,
		TargetCID:   cid,
	}
	if err := e.Store.SetObject(ctx, flagKey(id), fl.fields()); err != nil {
		e.releaseDedup(ctx, req)
		return nil, fmt.Errorf("persisting flag %d: %w", id, err)
	}
	if err := e.indexOnCreate(ctx, fl); err != nil {
		e.releaseDedup(ctx, req)
		return nil, err
	}

	// aggregate abuse signal on the content owner, best-effort only
	if fl.Type == TypePost && fl.TargetUID != "" {
		if _, err := e.Store.IncrScore(ctx, keyOwnerCounts, 1, fl.TargetUID); err != nil {
			e.Logger.Error("incrementing owner flag count index failed", "err", err, "uid", fl.TargetUID)
		}
		if _, err := e.Store.IncrObjectField(ctx, userKey(fl.TargetUID), "flags", 1); err != nil {
			e.Logger.Error("incrementing owner flag count field failed", "err", err, "uid", fl.TargetUID)
		}
	}

	// fresh reports pass through the lifecycle manager so creation lands in
	// history; backfilled flags skip this
	if !backfill {
		if err := e.Update(ctx, id, req.ReporterUID, Update{State: StateOpen}); err != nil {
			return nil, err
		}
	}
	createCount.WithLabelValues(fl.Type).Inc()

	detail, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.fireCreateHooks(ctx, detail)
	return detail, nil
}

// releaseDedup undoes the dedup claim when the record never landed, so a
// retry for the same triple is not stuck behind ErrDuplicateFlag.
func (e *Engine) releaseDedup(ctx context.Context, req CreateRequest) {
	if err := e.Store.Remove(ctx, keyDedup, dedupMember(req.Type, req.TargetID, req.ReporterUID)); err != nil {
		e.Logger.Error("releasing flag dedup claim failed", "err", err, "type", req.Type, "targetId", req.TargetID)
	}
}
