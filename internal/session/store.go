// Package session holds the signed-in operator and bearer token for the
// lifetime of the process and mirrors them to durable storage.
//
// A Store is created Uninitialized, hydrated once by Initialize, and then
// moves between Authenticated and Unauthenticated through SignIn and SignOut.
// Every transition passes through Loading and leaves it before the call
// returns. Persistence is best effort: storage failures are logged and the
// in-memory session stays authoritative.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/storage"
)

// StorageKey is the single storage entry holding the persisted session.
const StorageKey = "auth-storage"

// persisted mirrors the {state, version} envelope written by the mobile app so
// both clients can read each other's entry.
type persisted struct {
	State struct {
		User            *models.User `json:"user"`
		AccessToken     *string      `json:"accessToken"`
		IsAuthenticated bool         `json:"isAuthenticated"`
	} `json:"state"`
	Version int `json:"version"`
}

// Snapshot is a consistent copy of the session.
type Snapshot struct {
	State State
	User  *models.User
	Token string
}

func (s Snapshot) Authenticated() bool { return s.State == StateAuthenticated }

type Store struct {
	storage storage.Store
	clock   clockwork.Clock
	logger  *slog.Logger

	// wmu serializes mutations together with their storage write so the
	// persisted entry always matches the last in-memory change.
	wmu sync.Mutex

	mu    sync.RWMutex
	state State
	user  *models.User
	token string
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns an Uninitialized store persisting through st.
func New(st storage.Store, opts ...Option) *Store {
	s := &Store{
		storage: st,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize hydrates the store from storage. It must be called exactly once,
// before anything reads the session. A missing, unreadable or expired entry
// leaves the store Unauthenticated.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.state = StateLoading
	s.mu.Unlock()

	user, token := s.hydrate(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if user != nil {
		s.user, s.token, s.state = user, token, StateAuthenticated
		s.logger.Debug("Session restored", "user_id", user.ID)
	} else {
		s.user, s.token, s.state = nil, "", StateUnauthenticated
	}
	return nil
}

func (s *Store) hydrate(ctx context.Context) (*models.User, string) {
	raw, err := s.storage.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ""
	}
	if err != nil {
		s.logger.Error("Error getting session from storage", "err", err)
		return nil, ""
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Error("Persisted session is not valid JSON", "err", err)
		return nil, ""
	}

	st := p.State
	if !st.IsAuthenticated || st.User == nil || st.AccessToken == nil || *st.AccessToken == "" {
		return nil, ""
	}
	if s.expired(*st.AccessToken) {
		s.logger.Info("Persisted session token expired", "user_id", st.User.ID)
		return nil, ""
	}
	return st.User, *st.AccessToken
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque
// tokens never expire client-side.
func (s *Store) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.clock.Now().Before(exp.Time)
}

// SignIn replaces the session with user and token. A non-nil *PersistError
// means the session is active in memory but was not saved.
func (s *Store) SignIn(ctx context.Context, user models.User, token string) error {
	if user.ID == "" || token == "" {
		return ErrInvalidSession
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.state = StateLoading
	u := user
	s.user, s.token, s.state = &u, token, StateAuthenticated
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("Signed in", "user_id", user.ID, "role", user.Role)
	return s.persist(ctx, "sign in", snap)
}

// SignOut clears the session. Signing out twice is harmless.
func (s *Store) SignOut(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.state = StateLoading
	s.user, s.token, s.state = nil, "", StateUnauthenticated
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("Signed out")
	return s.persist(ctx, "sign out", snap)
}

// UpdateUser merges patch into the current user. Token and state are never
// touched. It fails with ErrNotAuthenticated when nobody is signed in.
func (s *Store) UpdateUser(ctx context.Context, patch models.UserPatch) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	u := patch.Apply(*s.user)
	s.user = &u
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return s.persist(ctx, "update user", snap)
}

func (s *Store) persist(ctx context.Context, op string, snap Snapshot) error {
	var p persisted
	p.State.User = snap.User
	p.State.IsAuthenticated = snap.Authenticated()
	if snap.Token != "" {
		t := snap.Token
		p.State.AccessToken = &t
	}

	raw, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("Error encoding session", "op", op, "err", err)
		return &PersistError{Op: op, Err: fmt.Errorf("failed to encode session: %w", err)}
	}
	if err := s.storage.Set(ctx, StorageKey, string(raw)); err != nil {
		s.logger.Error("Error setting session in storage", "op", op, "err", err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Token: s.token}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns a copy of the signed-in user.
func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Token returns the bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
