// Package session holds the authenticated user and keeps it in a durable
// snapshot slot across restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkbird/api/internal/state"
	"linkbird/api/internal/store"
)

const (
	storeName      = "session"
	persistTimeout = 5 * time.Second
)

type Recorder interface {
	ObserveOp(store, op string, started time.Time, err error)
}

type Store struct {
	state     *state.Store[Snapshot]
	auth      Authenticator
	snapshots SnapshotStore
	logger    *zap.Logger
	recorder  Recorder

	persistMu sync.Mutex
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Store) { s.recorder = recorder }
}

// New restores the persisted snapshot before returning, so the first read
// already reflects the previous session. A snapshot that cannot be decoded
// is discarded; a slot that cannot be read is an error.
func New(ctx context.Context, snapshots SnapshotStore, auth Authenticator, opts ...Option) (*Store, error) {
	s := &Store{
		state:     state.New(Snapshot{}),
		auth:      auth,
		snapshots: snapshots,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	payload, err := snapshots.Load(ctx, Namespace)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	}
	snap, err := decodeSnapshot(payload)
	if err != nil {
		s.logger.Warn("discarding unreadable session snapshot", zap.Error(err))
		return s, nil
	}
	s.state.Update(func(Snapshot) Snapshot { return snap })
	if snap.IsAuthenticated {
		s.logger.Info("session restored", zap.String("email", snap.User.Email))
	}
	return s, nil
}

func (s *Store) observe(op string, started time.Time, err error) {
	if s.recorder != nil {
		s.recorder.ObserveOp(storeName, op, started, err)
	}
}

func (s *Store) State() Snapshot {
	return s.state.Get()
}

func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.state.Subscribe(fn)
}

func (s *Store) Listeners() int {
	return s.state.Listeners()
}

// OnAuthenticated calls fn once for every transition from signed out to
// signed in. A session restored by New has already happened and is not
// reported.
func (s *Store) OnAuthenticated(fn func(store.User)) func() {
	project := func(snap Snapshot) *store.User {
		if !snap.IsAuthenticated {
			return nil
		}
		return snap.User
	}
	sameEpoch := func(a, b *store.User) bool { return (a == nil) == (b == nil) }
	return state.Select(s.state, project, sameEpoch, func(user *store.User) {
		if user != nil {
			fn(*user)
		}
	})
}

func (s *Store) Login(ctx context.Context, email, password string) (bool, error) {
	started := time.Now()
	user, err := s.auth.Login(ctx, email, password)
	s.observe("login", started, err)
	if err != nil {
		return false, fmt.Errorf("login: %w", err)
	}
	s.signIn(ctx, user)
	return true, nil
}

func (s *Store) LoginWithGoogle(ctx context.Context) (bool, error) {
	started := time.Now()
	user, err := s.auth.LoginWithGoogle(ctx)
	s.observe("login_google", started, err)
	if err != nil {
		return false, fmt.Errorf("login with google: %w", err)
	}
	s.signIn(ctx, user)
	return true, nil
}

func (s *Store) Register(ctx context.Context, email, password, name string) (bool, error) {
	started := time.Now()
	user, err := s.auth.Register(ctx, email, password, name)
	s.observe("register", started, err)
	if err != nil {
		return false, fmt.Errorf("register: %w", err)
	}
	s.signIn(ctx, user)
	return true, nil
}

// Logout clears the session in one transition and then persists it.
func (s *Store) Logout(ctx context.Context) {
	started := time.Now()
	s.state.Update(func(Snapshot) Snapshot { return Snapshot{} })
	s.observe("logout", started, nil)
	s.logger.Info("session cleared")
	s.persist(ctx)
}

func (s *Store) signIn(ctx context.Context, user store.User) {
	s.state.Update(func(Snapshot) Snapshot {
		return Snapshot{User: &user, IsAuthenticated: true}
	})
	s.logger.Info("session established", zap.String("email", user.Email))
	s.persist(ctx)
}

// persist writes whatever state is current when the write starts. Writes
// are serialized, so the slot always ends up holding the latest state.
// The write outlives the caller's context but is bounded by persistTimeout.
// Failures are logged; the in-memory session stays authoritative.
func (s *Store) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	started := time.Now()
	payload, err := encodeSnapshot(s.state.Get())
	if err == nil {
		err = s.snapshots.Save(ctx, Namespace, payload)
	}
	s.observe("persist", started, err)
	if err != nil {
		s.logger.Error("persist session failed", zap.Error(err))
	}
}
