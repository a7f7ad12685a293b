package flags

import (
	"context"
	"log/slog"
	"sync"

	"github.com/openboard/modflags/sortedstore"
)

// MockDirectory is an in-memory UserDirectory for tests.
type MockDirectory struct {
	Users map[string]UserProfile
}

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{Users: make(map[string]UserProfile)}
}

func (d *MockDirectory) Insert(p UserProfile) {
	d.Users[p.UID] = p
}

func (d *MockDirectory) Profile(ctx context.Context, uid string) (*UserProfile, error) {
	p, ok := d.Users[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// MockAuthorizer answers permission checks from fixed sets.
type MockAuthorizer struct {
	Admins   map[string]bool
	Mods     map[string]map[string]bool // uid -> cid set
	DenyFlag map[string]bool            // uids denied CanFlag on post targets
}

func NewMockAuthorizer() *MockAuthorizer {
	return &MockAuthorizer{
		Admins:   make(map[string]bool),
		Mods:     make(map[string]map[string]bool),
		DenyFlag: make(map[string]bool),
	}
}

func (a *MockAuthorizer) CanFlag(ctx context.Context, targetType, targetID, uid string) (bool, error) {
	if targetType == TypeUser {
		return true, nil
	}
	return !a.DenyFlag[uid], nil
}

func (a *MockAuthorizer) IsAdminOrGlobalMod(ctx context.Context, uid string) (bool, error) {
	return a.Admins[uid], nil
}

func (a *MockAuthorizer) IsModerator(ctx context.Context, uid, cid string) (bool, error) {
	return a.Mods[uid][cid], nil
}

// TargetInfo describes one mock target.
type TargetInfo struct {
	OwnerUID string
	CID      string
}

// MockTargets resolves targets from a fixed map keyed type:id. Targets in
// the Deleted set surface ErrTargetDeleted from Exists, like a resolver
// backed by soft-deleting storage.
type MockTargets struct {
	Targets map[string]TargetInfo
	Deleted map[string]bool
}

func NewMockTargets() *MockTargets {
	return &MockTargets{
		Targets: make(map[string]TargetInfo),
		Deleted: make(map[string]bool),
	}
}

func (t *MockTargets) Insert(targetType, targetID string, info TargetInfo) {
	t.Targets[targetType+":"+targetID] = info
}

func (t *MockTargets) MarkDeleted(targetType, targetID string) {
	t.Deleted[targetType+":"+targetID] = true
}

func (t *MockTargets) Exists(ctx context.Context, targetType, targetID string) (bool, error) {
	key := targetType + ":" + targetID
	if t.Deleted[key] {
		return false, ErrTargetDeleted
	}
	_, ok := t.Targets[key]
	return ok, nil
}

func (t *MockTargets) OwnerUID(ctx context.Context, targetType, targetID string) (string, error) {
	return t.Targets[targetType+":"+targetID].OwnerUID, nil
}

func (t *MockTargets) CategoryID(ctx context.Context, targetType, targetID string) (string, error) {
	return t.Targets[targetType+":"+targetID].CID, nil
}

// SentNotice is one recorded TestNotifier delivery.
type SentNotice struct {
	Notice     Notice
	Recipients []string
}

// TestNotifier records pushed notices for assertions.
type TestNotifier struct {
	mu   sync.Mutex
	Sent []SentNotice
}

func (n *TestNotifier) Push(ctx context.Context, notice Notice, recipients []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, SentNotice{Notice: notice, Recipients: recipients})
	return nil
}

// EngineTestFixture wires an engine against in-memory stores and mock
// collaborators, seeded with a reporter (uid 42), an admin (uid 9), a
// moderator of category 2 (uid 5), and post 7 owned by uid 11 in category 2.
func EngineTestFixture() *Engine {
	users := NewMockDirectory()
	users.Insert(UserProfile{UID: "42", Username: "reporter", Reputation: 10})
	users.Insert(UserProfile{UID: "9", Username: "admin", Reputation: 100})
	users.Insert(UserProfile{UID: "5", Username: "mod", Reputation: 50})
	users.Insert(UserProfile{UID: "11", Username: "author", Reputation: 20})
	users.Insert(UserProfile{UID: "13", Username: "banned", Banned: true})

	auth := NewMockAuthorizer()
	auth.Admins["9"] = true
	auth.Mods["5"] = map[string]bool{"2": true}

	targets := NewMockTargets()
	targets.Insert(TypePost, "7", TargetInfo{OwnerUID: "11", CID: "2"})
	targets.Insert(TypePost, "8", TargetInfo{OwnerUID: "11", CID: "2"})
	targets.Insert(TypeUser, "11", TargetInfo{})

	return &Engine{
		Logger:   slog.Default(),
		Store:    sortedstore.NewMemStore(),
		Users:    users,
		Auth:     auth,
		Targets:  targets,
		Notifier: &TestNotifier{},
		Hooks:    NewHookRegistry(),
		Filters:  NewFilterRegistry(),
	}
}
