package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"linkbird/api/internal/store"
)

type memorySlots struct {
	mu      sync.Mutex
	slots   map[string][]byte
	loadErr error
	saveErr error
	saves   int
}

func newMemorySlots() *memorySlots {
	return &memorySlots{slots: make(map[string][]byte)}
}

func (m *memorySlots) Load(_ context.Context, slot string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	payload, ok := m.slots[slot]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return payload, nil
}

func (m *memorySlots) Save(_ context.Context, slot string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.slots[slot] = append([]byte(nil), payload...)
	m.saves++
	return nil
}

func (m *memorySlots) Close() error { return nil }

func readPersisted(t *testing.T, slots SnapshotStore) Snapshot {
	t.Helper()
	payload, err := slots.Load(context.Background(), Namespace)
	if err != nil {
		t.Fatalf("load persisted snapshot: %v", err)
	}
	snap, err := decodeSnapshot(payload)
	if err != nil {
		t.Fatalf("decode persisted snapshot: %v", err)
	}
	return snap
}

func TestLoginPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	slots := newMemorySlots()

	first, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ok, err := first.Login(ctx, "a@b.com", "x")
	if err != nil || !ok {
		t.Fatalf("Login = %v, %v", ok, err)
	}

	second, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	snap := second.State()
	if !snap.IsAuthenticated {
		t.Fatal("expected restored session to be authenticated")
	}
	if snap.User == nil || snap.User.Email != "a@b.com" {
		t.Fatalf("unexpected restored user %+v", snap.User)
	}
}

func TestLogoutPersistsClearedSnapshot(t *testing.T) {
	ctx := context.Background()
	slots := newMemorySlots()
	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	s.Logout(ctx)

	if snap := s.State(); snap.IsAuthenticated || snap.User != nil {
		t.Fatalf("expected cleared state, got %+v", snap)
	}
	persisted := readPersisted(t, slots)
	if persisted.IsAuthenticated || persisted.User != nil {
		t.Fatalf("expected cleared snapshot, got %+v", persisted)
	}
}

func TestPersistedEnvelope(t *testing.T) {
	ctx := context.Background()
	slots := newMemorySlots()
	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(slots.slots[Namespace], &raw); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if string(raw["version"]) != "0" {
		t.Fatalf("expected version 0, got %s", raw["version"])
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw["state"], &inner); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if len(inner) != 2 {
		t.Fatalf("expected only user and isAuthenticated, got %v", inner)
	}
	if string(inner["isAuthenticated"]) != "true" {
		t.Fatalf("unexpected isAuthenticated %s", inner["isAuthenticated"])
	}
}

func TestInvalidLoginLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	slots := newMemorySlots()
	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ok, err := s.Login(ctx, "not-an-email", "x")
	if ok || !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login = %v, %v", ok, err)
	}
	if s.State().IsAuthenticated {
		t.Fatal("expected unauthenticated state")
	}
	if slots.saves != 0 {
		t.Fatalf("expected no writes, got %d", slots.saves)
	}
}

func TestRestoreDiscardsCorruptSnapshot(t *testing.T) {
	slots := newMemorySlots()
	slots.slots[Namespace] = []byte("{not json")

	s, err := New(context.Background(), slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.State().IsAuthenticated {
		t.Fatal("expected unauthenticated state")
	}
}

func TestRestoreRequiresUser(t *testing.T) {
	slots := newMemorySlots()
	slots.slots[Namespace] = []byte(`{"state":{"user":null,"isAuthenticated":true},"version":0}`)

	s, err := New(context.Background(), slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.State().IsAuthenticated {
		t.Fatal("authenticated snapshot without a user must not restore")
	}
}

func TestRestoreFailsWhenSlotUnreadable(t *testing.T) {
	slots := newMemorySlots()
	slots.loadErr = errors.New("disk gone")

	if _, err := New(context.Background(), slots, StubAuthenticator{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPersistFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	slots := newMemorySlots()
	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	slots.saveErr = errors.New("read-only")

	ok, err := s.Login(ctx, "a@b.com", "x")
	if err != nil || !ok {
		t.Fatalf("Login = %v, %v", ok, err)
	}
	if !s.State().IsAuthenticated {
		t.Fatal("expected in-memory session to stay authenticated")
	}
}

func TestOnAuthenticatedFiresPerEpoch(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, newMemorySlots(), StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var users []store.User
	unsubscribe := s.OnAuthenticated(func(user store.User) { users = append(users, user) })
	defer unsubscribe()

	if _, err := s.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := s.LoginWithGoogle(ctx); err != nil {
		t.Fatalf("LoginWithGoogle failed: %v", err)
	}
	s.Logout(ctx)
	if _, err := s.Register(ctx, "c@d.com", "x", "Cee"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 authenticated epochs, got %d", len(users))
	}
	if users[0].Email != "a@b.com" || users[1].Name != "Cee" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestSQLiteSnapshotStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	slots, err := NewSQLiteSnapshotStore(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := slots.Close(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	reopened, err := NewSQLiteSnapshotStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()
	restored, err := New(ctx, reopened, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if snap := restored.State(); !snap.IsAuthenticated || snap.User.Email != "a@b.com" {
		t.Fatalf("unexpected restored snapshot %+v", snap)
	}
}

func TestLogoutPersistsAfterCallerContextEnds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	slots, err := NewSQLiteSnapshotStore(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	done, cancel := context.WithCancel(ctx)
	cancel()
	s.Logout(done)
	if err := slots.Close(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	reopened, err := NewSQLiteSnapshotStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()
	restored, err := New(ctx, reopened, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if snap := restored.State(); snap.IsAuthenticated || snap.User != nil {
		t.Fatalf("logout was not persisted, restored %+v", snap)
	}
}

func TestSQLiteSnapshotStoreMissingSlot(t *testing.T) {
	ctx := context.Background()
	slots, err := NewSQLiteSnapshotStore(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer slots.Close()

	if _, err := slots.Load(ctx, Namespace); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	if err := slots.Save(ctx, Namespace, []byte("a")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := slots.Save(ctx, Namespace, []byte("b")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	payload, err := slots.Load(ctx, Namespace)
	if err != nil || string(payload) != "b" {
		t.Fatalf("Load = %q, %v", payload, err)
	}
}

func TestRedisSnapshotStore(t *testing.T) {
	mr := miniredis.RunT(t)
	slots, err := NewRedisSnapshotStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisSnapshotStore failed: %v", err)
	}
	defer slots.Close()

	ctx := context.Background()
	if err := slots.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if _, err := slots.Load(ctx, Namespace); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	s, err := New(ctx, slots, StubAuthenticator{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	raw, err := mr.Get("linkbird:" + Namespace)
	if err != nil {
		t.Fatalf("key missing: %v", err)
	}
	if mr.TTL("linkbird:"+Namespace) != 0 {
		t.Fatal("snapshot key must not expire")
	}
	snap, err := decodeSnapshot([]byte(raw))
	if err != nil || snap.User.Email != "a@b.com" {
		t.Fatalf("unexpected stored snapshot %+v, %v", snap, err)
	}
}

func TestNewRedisSnapshotStoreBadURL(t *testing.T) {
	if _, err := NewRedisSnapshotStore("not a url"); err == nil {
		t.Fatal("expected error")
	}
}
