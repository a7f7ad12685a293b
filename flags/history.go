package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryEntry records one applied changeset: who, what, when. State values
// appear as display labels. Entries are append-only and read newest-first.
type HistoryEntry struct {
	UID      string            `json:"uid"`
	Fields   map[string]string `json:"fields"`
	Datetime int64             `json:"datetime"`
}

// NoteEntry is one free-text moderator note, append-only, read oldest-first.
type NoteEntry struct {
	UID      string `json:"uid"`
	Content  string `json:"content"`
	Datetime int64  `json:"datetime"`
}

func (e *Engine) appendHistory(ctx context.Context, flagID int64, uid string, fields map[string]string, datetime int64) error {
	payload, err := json.Marshal(HistoryEntry{
		UID:      uid,
		Fields:   fields,
		Datetime: datetime,
	})
	if err != nil {
		return fmt.Errorf("encoding history entry for flag %d: %w", flagID, err)
	}
	if err := e.Store.Add(ctx, historyKey(flagID), float64(datetime), string(payload)); err != nil {
		return fmt.Errorf("appending history for flag %d: %w", flagID, err)
	}
	return nil
}

// History returns the state-change log for one flag, newest first. Malformed
// entries are skipped with a warning rather than failing the read.
func (e *Engine) History(ctx context.Context, flagID int64) ([]HistoryEntry, error) {
	members, err := e.Store.RangeDesc(ctx, historyKey(flagID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("reading history for flag %d: %w", flagID, err)
	}
	out := make([]HistoryEntry, 0, len(members))
	for _, m := range members {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(m.Value), &entry); err != nil {
			e.Logger.Warn("skipping malformed flag history entry", "flagId", flagID, "err", err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// AppendNote records a moderator note against an existing flag.
func (e *Engine) AppendNote(ctx context.Context, flagID int64, uid, content string) error {
	if _, err := e.getRaw(ctx, flagID); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	payload, err := json.Marshal(NoteEntry{
		UID:      uid,
		Content:  content,
		Datetime: now,
	})
	if err != nil {
		return fmt.Errorf("encoding note for flag %d: %w", flagID, err)
	}
	if err := e.Store.Add(ctx, notesKey(flagID), float64(now), string(payload)); err != nil {
		return fmt.Errorf("appending note for flag %d: %w", flagID, err)
	}
	return nil
}

// Notes returns the note log for one flag in chronological order.
func (e *Engine) Notes(ctx context.Context, flagID int64) ([]NoteEntry, error) {
	members, err := e.Store.RangeAsc(ctx, notesKey(flagID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("reading notes for flag %d: %w", flagID, err)
	}
	out := make([]NoteEntry, 0, len(members))
	for _, m := range members {
		var entry NoteEntry
		if err := json.Unmarshal([]byte(m.Value), &entry); err != nil {
			e.Logger.Warn("skipping malformed flag note", "flagId", flagID, "err", err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
