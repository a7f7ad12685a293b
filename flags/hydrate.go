package flags

import (
	"context"
)

// FlagSummary is the list-view projection: the record joined with a minimal
// reporter profile.
type FlagSummary struct {
	Flag
	Reporter *UserProfile
}

// FlagDetail is the single-flag view: record, reporter, history and notes.
type FlagDetail struct {
	Flag
	Reporter *UserProfile
	History  []HistoryEntry
	Notes    []NoteEntry
}

// viewDefaults applies read-side defaulting: records written before their
// first lifecycle transition carry no state field and read as open.
func viewDefaults(fl *Flag) {
	if fl.State == "" {
		fl.State = StateOpen
	}
}

// reporterProjection resolves the reporter profile, degrading to nil on
// lookup failure rather than failing the view.
func (e *Engine) reporterProjection(ctx context.Context, flagID int64, uid string) *UserProfile {
	profile, err := e.Users.Profile(ctx, uid)
	if err != nil {
		hydrateErrorCount.Inc()
		e.Logger.Warn("reporter lookup failed during flag hydration", "flagId", flagID, "uid", uid, "err", err)
		return nil
	}
	return profile
}

func (e *Engine) hydrateDetail(ctx context.Context, flagID int64) (*FlagDetail, error) {
	fl, err := e.getRaw(ctx, flagID)
	if err != nil {
		return nil, err
	}
	viewDefaults(fl)
	history, err := e.History(ctx, flagID)
	if err != nil {
		return nil, err
	}
	notes, err := e.Notes(ctx, flagID)
	if err != nil {
		return nil, err
	}
	return &FlagDetail{
		Flag:     *fl,
		Reporter: e.reporterProjection(ctx, flagID, fl.ReporterUID),
		History:  history,
		Notes:    notes,
	}, nil
}

// hydrateSummaries resolves ids into list entries. A failure on one id
// degrades that entry (logged and skipped), it never aborts the batch.
func (e *Engine) hydrateSummaries(ctx context.Context, ids []int64) []*FlagSummary {
	out := make([]*FlagSummary, 0, len(ids))
	for _, id := range ids {
		obj, err := e.Store.GetObject(ctx, flagKey(id))
		if err != nil || len(obj) == 0 {
			hydrateErrorCount.Inc()
			e.Logger.Warn("skipping unhydratable flag", "flagId", id, "err", err)
			continue
		}
		fl := flagFromFields(id, obj)
		viewDefaults(fl)
		out = append(out, &FlagSummary{
			Flag:     *fl,
			Reporter: e.reporterProjection(ctx, id, fl.ReporterUID),
		})
	}
	return out
}
