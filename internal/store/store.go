// Package store caches the user's projects and scenes and applies the
// results of backend calls to that cache.
//
// Every action returns its result and a *ActionError on failure, and also
// records the failure message in the store's error field for observers.
// Fetch results are dropped when a later-started action on the same target
// has already been applied, or when the caller's context is already done.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// Backend is the subset of the API client used by the store
type Backend interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.ProjectWithScenes, error)
	CreateProject(ctx context.Context, req models.ProjectRequest) (*models.Project, error)
	UpdateProject(ctx context.Context, projectID string, req models.ProjectRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	GetScene(ctx context.Context, projectID, sceneID string) (*models.SceneDetail, error)
	CreateScene(ctx context.Context, projectID string, req models.SceneRequest) (*models.Scene, error)
	UpdateScene(ctx context.Context, projectID, sceneID string, update models.SceneUpdate) (*models.Scene, error)
	DeleteScene(ctx context.Context, projectID, sceneID string) error
	RefinePrompt(ctx context.Context, req models.RefinePromptRequest) (string, error)
}

// ErrNotLoaded is returned by RetryScene when the scene is not cached
var ErrNotLoaded = errors.New("scene is not loaded")

// ActionError is the failure of a store action
type ActionError struct {
	Op      string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Snapshot is a copy of the store state
type Snapshot struct {
	Projects       []models.Project
	CurrentProject *models.ProjectWithScenes
	CurrentScene   *models.SceneDetail
	Loading        bool
	Error          string

	// Version increases with every state change
	Version uint64
}

// Store owns the cached projects and scenes
type Store struct {
	mu     sync.Mutex
	api    Backend
	logger *logging.Logger

	projects       []models.Project
	currentProject *models.ProjectWithScenes
	currentScene   *models.SceneDetail
	inflight       int
	err            string

	// seq numbers actions in start order; the *Seq fields hold the newest
	// action applied to each target.
	seq         uint64
	projectsSeq uint64
	projectSeq  uint64
	sceneSeq    uint64

	version uint64

	deliverMu sync.Mutex
	delivered uint64

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New creates an empty store
func New(backend Backend, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		api:         backend,
		logger:      logger.WithComponent("store"),
		projects:    []models.Project{},
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to be called after every state change
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

// Snapshot returns a copy of the whole state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Projects:       make([]models.Project, len(s.projects)),
		CurrentProject: s.currentProject.Clone(),
		Loading:        s.inflight > 0,
		Error:          s.err,
		Version:        s.version,
	}
	copy(snap.Projects, s.projects)
	if s.currentScene != nil {
		sc := *s.currentScene
		snap.CurrentScene = &sc
	}
	return snap
}

// Projects returns the cached project list
func (s *Store) Projects() []models.Project {
	return s.Snapshot().Projects
}

// CurrentProject returns the project being viewed, or nil
func (s *Store) CurrentProject() *models.ProjectWithScenes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentProject.Clone()
}

// CurrentScene returns the scene being viewed, or nil
func (s *Store) CurrentScene() *models.SceneDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentScene == nil {
		return nil
	}
	sc := *s.currentScene
	return &sc
}

// Loading reports whether any action is outstanding
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Error returns the last failure message
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ClearError resets the error message
func (s *Store) ClearError() {
	s.update(func() {
		s.err = ""
	})
}

// Reset drops every cached object, e.g. after logout
func (s *Store) Reset() {
	s.update(func() {
		s.projects = []models.Project{}
		s.currentProject = nil
		s.currentScene = nil
		s.err = ""
		s.projectsSeq = s.seq
		s.projectSeq = s.seq
		s.sceneSeq = s.seq
	})
}

// ProjectByID looks a project up in the cached list
func (s *Store) ProjectByID(projectID string) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.projects {
		if p.ID == projectID {
			return p, true
		}
	}
	return models.Project{}, false
}

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

// begin marks an action as started and returns its sequence number
func (s *Store) begin() uint64 {
	var seq uint64
	s.update(func() {
		s.inflight++
		s.err = ""
		s.seq++
		seq = s.seq
	})
	return seq
}

// finish ends an action. On success apply runs under the store lock. A
// not-found failure runs notFound instead and leaves the error field alone.
func (s *Store) finish(ctx context.Context, op string, err error, apply, notFound func()) error {
	var result error

	s.update(func() {
		s.inflight--

		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			result = &ActionError{Op: op, Message: api.ErrorMessage(err), Err: err}
			return
		}

		if err != nil {
			result = &ActionError{Op: op, Message: api.ErrorMessage(err), Err: err}
			if notFound != nil && api.IsNotFound(err) {
				notFound()
				return
			}
			s.err = api.ErrorMessage(err)
			return
		}

		if apply != nil {
			apply()
		}
	})

	if result != nil && !api.IsCanceled(result) {
		s.logger.WithField("op", op).ErrorWithErr("store action failed", err)
		metrics.RecordError("store", op)
	}
	return result
}

// stale reports whether an action numbered seq is older than the newest
// one applied to target, and records the drop
func stale(seq, applied uint64, target string) bool {
	if seq <= applied {
		metrics.RecordStaleResponse(target)
		return true
	}
	return false
}

func maxSeq(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
