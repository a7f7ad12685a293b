package flags

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/openboard/modflags/sortedstore"
)

const (
	TypePost = "post"
	TypeUser = "user"
)

// State is the lifecycle state of a flag. Any state is reachable from any
// other; validation happens on the changeset, not on the transition graph.
type State string

const (
	StateOpen     State = "open"
	StateWIP      State = "wip"
	StateResolved State = "resolved"
	StateRejected State = "rejected"
)

func ValidState(s State) bool {
	switch s {
	case StateOpen, StateWIP, StateResolved, StateRejected:
		return true
	}
	return false
}

// StateLabel maps a state to the display label recorded in history entries.
func StateLabel(s State) string {
	switch s {
	case StateOpen:
		return "Open"
	case StateWIP:
		return "In Progress"
	case StateResolved:
		return "Resolved"
	case StateRejected:
		return "Rejected"
	}
	return "Unknown"
}

// Flag is the canonical per-flag record. TargetUID and TargetCID are resolved
// once at creation and cached on the record. State is stored raw: a record
// written by Create carries no state field until the initial lifecycle
// transition lands, and reads default an absent state to StateOpen.
type Flag struct {
	ID          int64
	Type        string
	TargetID    string
	ReporterUID string
	Description string
	State       State
	AssigneeUID string
	Datetime    int64 // epoch millis
	TargetUID   string
	TargetCID   string
}

func (f *Flag) fields() map[string]string {
	m := map[string]string{
		"flagId":      formatID(f.ID),
		"type":        f.Type,
		"targetId":    f.TargetID,
		"uid":         f.ReporterUID,
		"description": f.Description,
		"datetime":    strconv.FormatInt(f.Datetime, 10),
	}
	if f.TargetUID != "" {
		m["targetUid"] = f.TargetUID
	}
	if f.TargetCID != "" {
		m["targetCid"] = f.TargetCID
	}
	if f.State != "" {
		m["state"] = string(f.State)
	}
	if f.AssigneeUID != "" {
		m["assignee"] = f.AssigneeUID
	}
	return m
}

func flagFromFields(id int64, m map[string]string) *Flag {
	datetime, _ := strconv.ParseInt(m["datetime"], 10, 64)
	return &Flag{
		ID:          id,
		Type:        m["type"],
		TargetID:    m["targetId"],
		ReporterUID: m["uid"],
		Description: m["description"],
		State:       State(m["state"]),
		AssigneeUID: m["assignee"],
		Datetime:    datetime,
		TargetUID:   m["targetUid"],
		TargetCID:   m["targetCid"],
	}
}

// UserProfile is the reporter/assignee projection joined into hydrated views.
type UserProfile struct {
	UID         string `json:"uid"`
	Username    string `json:"username"`
	Picture     string `json:"picture"`
	IconText    string `json:"icon:text"`
	IconBgColor string `json:"icon:bgColor"`
	Banned      bool   `json:"-"`
	Reputation  int64  `json:"-"`
}

// UserDirectory resolves user profiles. Profile returns nil (with no error)
// for unknown uids.
type UserDirectory interface {
	Profile(ctx context.Context, uid string) (*UserProfile, error)
}

// Authorizer answers permission questions; policy definition lives elsewhere.
type Authorizer interface {
	CanFlag(ctx context.Context, targetType, targetID, uid string) (bool, error)
	IsAdminOrGlobalMod(ctx context.Context, uid string) (bool, error)
	IsModerator(ctx context.Context, uid, cid string) (bool, error)
}

// TargetResolver resolves flag targets. OwnerUID and CategoryID return ""
// when the target has no owner or category.
type TargetResolver interface {
	Exists(ctx context.Context, targetType, targetID string) (bool, error)
	OwnerUID(ctx context.Context, targetType, targetID string) (string, error)
	CategoryID(ctx context.Context, targetType, targetID string) (string, error)
}

// Notice is a structured notification payload. Delivery is fire-and-forget
// from the engine's perspective.
type Notice struct {
	Kind    string
	FlagID  int64
	FromUID string
	Body    string
}

type Notifier interface {
	Push(ctx context.Context, notice Notice, recipientUIDs []string) error
}

type Config struct {
	// MinReputationToFlag gates fresh reports; 0 disables the gate.
	MinReputationToFlag int64
	// DefaultPerPage is the list page size when the request does not set
	// one; 0 means 20.
	DefaultPerPage int
	// AllowedTypes extends the accepted flag types beyond post and user.
	AllowedTypes []string
}

// Engine ties the stores and collaborators together. All fields except
// Notifier, Hooks and Filters must be non-nil.
type Engine struct {
	Logger   *slog.Logger
	Store    sortedstore.Store
	Users    UserDirectory
	Auth     Authorizer
	Targets  TargetResolver
	Notifier Notifier
	Hooks    *HookRegistry
	Filters  *FilterRegistry
	Config   Config
}

// index and object keys
const (
	keyChronological = "flags:datetime"
	keyDedup         = "flags:hash"
	keyNextID        = "nextFlagId"
	keyOwnerCounts   = "users:flagCount"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func flagKey(id int64) string        { return "flag:" + formatID(id) }
func historyKey(id int64) string     { return "flag:" + formatID(id) + ":history" }
func notesKey(id int64) string       { return "flag:" + formatID(id) + ":notes" }
func userKey(uid string) string      { return "user:" + uid }
func byTypeKey(t string) string      { return "flags:byType:" + t }
func byStateKey(s State) string      { return "flags:byState:" + string(s) }
func byReporterKey(u string) string  { return "flags:byReporter:" + u }
func byAssigneeKey(u string) string  { return "flags:byAssignee:" + u }
func byTargetUIDKey(u string) string { return "flags:byTargetUid:" + u }
func byCidKey(c string) string       { return "flags:byCid:" + c }
func byPidKey(p string) string       { return "flags:byPid:" + p }

func dedupMember(targetType, targetID, reporterUID string) string {
	return targetType + ":" + targetID + ":" + reporterUID
}

func (e *Engine) validType(t string) bool {
	if t == TypePost || t == TypeUser {
		return true
	}
	for _, extra := range e.Config.AllowedTypes {
		if t == extra {
			return true
		}
	}
	return false
}

func (e *Engine) perPageDefault() int {
	if e.Config.DefaultPerPage > 0 {
		return e.Config.DefaultPerPage
	}
	return 20
}

// Exists reports whether a flag already exists for the given target and
// reporter.
func (e *Engine) Exists(ctx context.Context, targetType, targetID, reporterUID string) (bool, error) {
	return e.Store.IsMember(ctx, keyDedup, dedupMember(targetType, targetID, reporterUID))
}

// Get returns the fully hydrated view of one flag, including reporter
// projection, history and notes.
func (e *Engine) Get(ctx context.Context, flagID int64) (*FlagDetail, error) {
	detail, err := e.hydrateDetail(ctx, flagID)
	if err != nil {
		return nil, err
	}
	e.fireHydrateHooks(ctx, detail)
	return detail, nil
}

// getRaw fetches the stored record without view defaulting. Lifecycle code
// uses this so "state not yet set" stays distinguishable from StateOpen.
func (e *Engine) getRaw(ctx context.Context, flagID int64) (*Flag, error) {
	obj, err := e.Store.GetObject(ctx, flagKey(flagID))
	if err != nil {
		return nil, fmt.Errorf("fetching flag %d: %w", flagID, err)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("flag %d: %w", flagID, ErrNotFound)
	}
	return flagFromFields(flagID, obj), nil
}
