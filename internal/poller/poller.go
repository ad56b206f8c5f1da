// Package poller re-fetches projects and scenes on a fixed interval while
// any scene of interest is still pending or processing.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/notify"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// DefaultInterval is the polling interval used when none is configured
const DefaultInterval = 5 * time.Second

// Source fetches into the cache and reads it back. *store.Store implements it.
type Source interface {
	FetchProject(ctx context.Context, projectID string) (*models.ProjectWithScenes, error)
	FetchScene(ctx context.Context, projectID, sceneID string) (*models.SceneDetail, error)
	CurrentProject() *models.ProjectWithScenes
	CurrentScene() *models.SceneDetail
}

// Target identifies what a watch follows: a whole project, or a single
// scene when SceneID is set
type Target struct {
	ProjectID string
	SceneID   string
}

func (t Target) key() string {
	if t.SceneID == "" {
		return "project:" + t.ProjectID
	}
	return "scene:" + t.ProjectID + "/" + t.SceneID
}

func (t Target) kind() string {
	if t.SceneID == "" {
		return "project"
	}
	return "scene"
}

// Reconciler runs watches
type Reconciler struct {
	source   Source
	notifier notify.Notifier
	interval time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	watches map[string]*Watch
}

// New creates a reconciler. notifier may be nil.
func New(source Source, notifier notify.Notifier, interval time.Duration, logger *logging.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Reconciler{
		source:   source,
		notifier: notifier,
		interval: interval,
		logger:   logger.WithComponent("poller"),
		watches:  make(map[string]*Watch),
	}
}

// Interval returns the polling interval
func (r *Reconciler) Interval() time.Duration {
	return r.interval
}

// WatchProject follows every scene of a project
func (r *Reconciler) WatchProject(ctx context.Context, projectID string) *Watch {
	return r.watch(ctx, Target{ProjectID: projectID})
}

// WatchScene follows a single scene
func (r *Reconciler) WatchScene(ctx context.Context, projectID, sceneID string) *Watch {
	return r.watch(ctx, Target{ProjectID: projectID, SceneID: sceneID})
}

func (r *Reconciler) watch(ctx context.Context, target Target) *Watch {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.watches[target.key()]; ok {
		return w
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		target: target,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.watches[target.key()] = w
	metrics.PollersActive.Inc()

	go r.run(wctx, w)
	return w
}

// Active returns the number of running watches
func (r *Reconciler) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches)
}

// StopAll stops every watch and waits for them to end
func (r *Reconciler) StopAll() {
	r.mu.Lock()
	watches := make([]*Watch, 0, len(r.watches))
	for _, w := range r.watches {
		watches = append(watches, w)
	}
	r.mu.Unlock()

	for _, w := range watches {
		w.Stop()
		<-w.done
	}
}

func (r *Reconciler) remove(w *Watch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watches[w.target.key()] == w {
		delete(r.watches, w.target.key())
		metrics.PollersActive.Dec()
	}
}

type fetchResult struct {
	scenes []models.Scene
	err    error
}

// run does one fetch right away, then one per tick while work is pending.
// Ticks do not wait for earlier fetches to return.
func (r *Reconciler) run(ctx context.Context, w *Watch) {
	defer close(w.done)
	defer w.cancel()
	defer r.remove(w)

	logger := r.logger.WithProjectID(w.target.ProjectID)
	if w.target.SceneID != "" {
		logger = logger.WithSceneID(w.target.SceneID)
	}

	last := make(map[string]models.SceneStatus)

	if !r.observe(ctx, w, logger, last, r.fetch(ctx, w.target)) {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	results := make(chan fetchResult)
	var inflight sync.WaitGroup
	defer func() {
		w.cancel()
		inflight.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordPollTick(w.target.kind())
			w.tick()
			logger.Debugf("poll tick %d", w.Ticks())
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				res := r.fetch(ctx, w.target)
				select {
				case results <- res:
				case <-ctx.Done():
				}
			}()
		case res := <-results:
			if !r.observe(ctx, w, logger, last, res) {
				return
			}
		}
	}
}

// fetch refreshes the cache and returns the scenes of interest as cached
// after the refresh, so a response dropped as stale is not observed
func (r *Reconciler) fetch(ctx context.Context, target Target) fetchResult {
	if target.SceneID == "" {
		fetched, err := r.source.FetchProject(ctx, target.ProjectID)
		if err != nil {
			return fetchResult{err: err}
		}
		current := r.source.CurrentProject()
		if current == nil || current.ID != target.ProjectID {
			current = fetched
		}
		return fetchResult{scenes: current.Scenes}
	}

	fetched, err := r.source.FetchScene(ctx, target.ProjectID, target.SceneID)
	if err != nil {
		return fetchResult{err: err}
	}
	current := r.source.CurrentScene()
	if current == nil || current.ID != target.SceneID {
		current = fetched
	}
	return fetchResult{scenes: []models.Scene{current.Scene}}
}

// observe records a fetch result and reports whether polling continues
func (r *Reconciler) observe(ctx context.Context, w *Watch, logger *logging.Logger, last map[string]models.SceneStatus, res fetchResult) bool {
	if res.err != nil {
		if api.IsCanceled(res.err) && ctx.Err() != nil {
			return false
		}
		if api.IsNotFound(res.err) {
			logger.Warnf("watched %s no longer exists", w.target.kind())
			w.setErr(res.err)
			return false
		}
		// Keep polling on the last known state. With nothing known to be
		// pending the watch ends with the fetch error.
		logger.WithError(res.err).Warn("poll fetch failed")
		if hasPending(last) {
			return true
		}
		w.setErr(res.err)
		return false
	}

	seen := make(map[string]models.SceneStatus, len(res.scenes))
	for _, sc := range res.scenes {
		seen[sc.ID] = sc.Status
		prev, known := last[sc.ID]
		if !known || prev == sc.Status {
			continue
		}

		logger.LogSceneTransition(sc.ProjectID, sc.ID, string(prev), string(sc.Status))
		if sc.Status.IsTerminal() {
			metrics.RecordSceneTransition(string(sc.Status))
			change := notify.StatusChange{
				ProjectID: sc.ProjectID,
				SceneID:   sc.ID,
				Prompt:    sc.Prompt,
				From:      prev,
				To:        sc.Status,
				VideoURL:  sc.VideoURL,
				At:        time.Now().UTC(),
			}
			if err := r.notifier.Notify(ctx, change); err != nil {
				logger.ErrorWithErr("failed to notify status change", err)
			}
			w.record(change)
		}
	}

	for id := range last {
		delete(last, id)
	}
	for id, status := range seen {
		last[id] = status
	}

	return hasPending(last)
}

func hasPending(statuses map[string]models.SceneStatus) bool {
	for _, s := range statuses {
		if !s.IsTerminal() {
			return true
		}
	}
	return false
}

// Watch is one running poll loop
type Watch struct {
	target Target
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	ticks   int
	changes []notify.StatusChange
	err     error
}

// Target returns what the watch follows
func (w *Watch) Target() Target {
	return w.target
}

// Stop ends the watch and cancels its in-flight fetches
func (w *Watch) Stop() {
	w.cancel()
}

// Done is closed when the watch has ended
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the watch ends or ctx is done. It returns the error
// that ended the watch, if any.
func (w *Watch) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		if err := w.Err(); err != nil {
			return err
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error that ended the watch
func (w *Watch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Ticks returns how many timer-driven re-fetches were issued
func (w *Watch) Ticks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ticks
}

// Changes returns the terminal transitions observed so far
func (w *Watch) Changes() []notify.StatusChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]notify.StatusChange, len(w.changes))
	copy(out, w.changes)
	return out
}

func (w *Watch) tick() {
	w.mu.Lock()
	w.ticks++
	w.mu.Unlock()
}

func (w *Watch) record(change notify.StatusChange) {
	w.mu.Lock()
	w.changes = append(w.changes, change)
	w.mu.Unlock()
}

func (w *Watch) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}
