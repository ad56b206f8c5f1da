// Package session tracks whether the user is logged in and persists the
// bearer token across runs.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/tokenstore"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// Fallback messages used when the server gives no detail
const (
	LoginFailedMessage    = "Failed to login. Please check your credentials."
	RegisterFailedMessage = "Failed to register. Please try again."
)

// State is the session lifecycle state
type State string

// State constants
const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateAuthError      State = "auth_error"
)

// Backend is the subset of the API client used by the session
type Backend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
}

// Snapshot is a copy of the session state
type Snapshot struct {
	State           State
	IsAuthenticated bool
	IsLoading       bool
	User            *models.User
	Error           string
	Version         uint64
}

// Store is the session store
type Store struct {
	mu     sync.Mutex
	api    Backend
	tokens tokenstore.Store
	logger *logging.Logger

	state State
	user  *models.User
	err   string

	version uint64

	deliverMu sync.Mutex
	delivered uint64

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New creates a session store. Call CheckAuth to pick up a saved token.
func New(backend Backend, tokens tokenstore.Store, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		api:         backend,
		tokens:      tokens,
		logger:      logger.WithComponent("session"),
		state:       StateAnonymous,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           s.state,
		IsAuthenticated: s.state == StateAuthenticated,
		IsLoading:       s.state == StateAuthenticating,
		Error:           s.err,
		Version:         s.version,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Subscribe registers fn to be called after every state change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// update mutates state under the lock and then notifies subscribers
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// notify delivers snap to every subscriber. Deliveries are serialized and a
// snapshot older than one already delivered is dropped, so subscribers never
// see state go backwards. Subscribers must not call back into the store's
// mutating methods.
func (s *Store) notify(snap Snapshot) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version

	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

// Login exchanges credentials for a token and persists it
func (s *Store) Login(ctx context.Context, username, password string) error {
	req := models.LoginRequest{Username: username, Password: password}
	if err := models.Validate(req); err != nil {
		return err
	}

	err := s.login(ctx, req)
	s.logger.LogSessionEvent("login", username, err)
	metrics.RecordSessionEvent("login", err)
	return err
}

func (s *Store) login(ctx context.Context, req models.LoginRequest) error {
	s.update(func() {
		s.state = StateAuthenticating
		s.err = ""
	})

	resp, err := s.api.Login(ctx, req)
	if err == nil {
		err = s.tokens.Save(ctx, tokenstore.Session{
			AccessToken: resp.AccessToken,
			TokenType:   resp.TokenType,
		})
	}

	if err != nil {
		msg := detailOr(err, LoginFailedMessage)
		s.update(func() {
			s.state = StateAuthError
			s.err = msg
		})
		return err
	}

	s.update(func() {
		s.state = StateAuthenticated
		if s.user == nil || s.user.Username != req.Username {
			s.user = &models.User{Username: req.Username}
		}
	})
	return nil
}

// Register creates an account and then logs in with the same credentials
func (s *Store) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	req := models.RegisterRequest{Username: username, Email: email, Password: password}
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.register(ctx, req)
	s.logger.LogSessionEvent("register", username, err)
	metrics.RecordSessionEvent("register", err)
	if err != nil {
		return nil, err
	}

	loginReq := models.LoginRequest{Username: username, Password: password}
	err = s.login(ctx, loginReq)
	s.logger.LogSessionEvent("login", username, err)
	metrics.RecordSessionEvent("login", err)
	if err != nil {
		return user, err
	}

	u := *user
	return &u, nil
}

func (s *Store) register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	s.update(func() {
		s.state = StateAuthenticating
		s.err = ""
	})

	user, err := s.api.Register(ctx, req)
	if err != nil {
		msg := detailOr(err, RegisterFailedMessage)
		s.update(func() {
			s.state = StateAuthError
			s.err = msg
		})
		return nil, err
	}

	s.update(func() {
		u := *user
		s.user = &u
	})
	return user, nil
}

// Logout forgets the token. The backend is not contacted.
func (s *Store) Logout(ctx context.Context) error {
	err := s.tokens.Clear(ctx)
	s.update(func() {
		s.state = StateAnonymous
		s.user = nil
	})

	s.logger.LogSessionEvent("logout", "", err)
	metrics.RecordSessionEvent("logout", err)
	return err
}

// CheckAuth sets the authenticated state from the presence of a saved token
func (s *Store) CheckAuth(ctx context.Context) bool {
	token, err := tokenstore.AccessToken(ctx, s.tokens)
	if err != nil {
		s.logger.ErrorWithErr("failed to read saved session", err)
	}
	authenticated := err == nil && token != ""

	s.update(func() {
		if authenticated {
			s.state = StateAuthenticated
		} else {
			s.state = StateAnonymous
		}
	})
	return authenticated
}

// ClearError resets the error message
func (s *Store) ClearError() {
	s.update(func() {
		s.err = ""
		if s.state == StateAuthError {
			s.state = StateAnonymous
		}
	})
}

// IsAuthenticated reports the current flag
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated
}

// detailOr returns the server detail, or fallback for any other failure
func detailOr(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
