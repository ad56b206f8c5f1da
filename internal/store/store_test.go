package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// fakeBackend is an in-memory backend. getProjectHook, when set, runs
// before GetProject returns and may block.
type fakeBackend struct {
	mu       sync.Mutex
	projects map[string]*models.ProjectWithScenes
	order    []string
	code     map[string]string
	nextID   int
	failNext error

	getProjectHook func(ctx context.Context, projectID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		projects: make(map[string]*models.ProjectWithScenes),
		code:     make(map[string]string),
	}
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeBackend) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func notFound(what string) error {
	return &api.Error{StatusCode: http.StatusNotFound, Detail: what + " not found"}
}

func (f *fakeBackend) ListProjects(ctx context.Context) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := []models.Project{}
	for _, id := range f.order {
		if p, ok := f.projects[id]; ok {
			out = append(out, p.Project)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetProject(ctx context.Context, projectID string) (*models.ProjectWithScenes, error) {
	f.mu.Lock()
	if err := f.takeFailure(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	p, ok := f.projects[projectID]
	var snapshot *models.ProjectWithScenes
	if ok {
		snapshot = p.Clone()
	}
	hook := f.getProjectHook
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, projectID)
	}
	if !ok {
		return nil, notFound("Project")
	}
	return snapshot, nil
}

func (f *fakeBackend) CreateProject(ctx context.Context, req models.ProjectRequest) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	p := &models.ProjectWithScenes{Project: models.Project{ID: f.id("p"), Title: req.Title, UserID: "u1"}, Scenes: []models.Scene{}}
	f.projects[p.ID] = p
	f.order = append(f.order, p.ID)
	return &p.Project, nil
}

func (f *fakeBackend) UpdateProject(ctx context.Context, projectID string, req models.ProjectRequest) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return nil, notFound("Project")
	}
	p.Title = req.Title
	out := p.Project
	return &out, nil
}

func (f *fakeBackend) DeleteProject(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if _, ok := f.projects[projectID]; !ok {
		return notFound("Project")
	}
	delete(f.projects, projectID)
	return nil
}

func (f *fakeBackend) findScene(projectID, sceneID string) (*models.Scene, error) {
	p, ok := f.projects[projectID]
	if !ok {
		return nil, notFound("Project")
	}
	for i := range p.Scenes {
		if p.Scenes[i].ID == sceneID {
			return &p.Scenes[i], nil
		}
	}
	return nil, notFound("Scene")
}

func (f *fakeBackend) GetScene(ctx context.Context, projectID, sceneID string) (*models.SceneDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	sc, err := f.findScene(projectID, sceneID)
	if err != nil {
		return nil, err
	}
	return &models.SceneDetail{Scene: *sc, Code: f.code[sceneID]}, nil
}

func (f *fakeBackend) CreateScene(ctx context.Context, projectID string, req models.SceneRequest) (*models.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return nil, notFound("Project")
	}
	sc := models.Scene{ID: f.id("s"), ProjectID: projectID, Prompt: req.Prompt, Order: req.Order, Status: models.SceneStatusPending}
	p.Scenes = append(p.Scenes, sc)
	return &sc, nil
}

func (f *fakeBackend) UpdateScene(ctx context.Context, projectID, sceneID string, update models.SceneUpdate) (*models.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	sc, err := f.findScene(projectID, sceneID)
	if err != nil {
		return nil, err
	}
	if update.Prompt != nil {
		sc.Prompt = *update.Prompt
	}
	if update.Order != nil {
		sc.Order = *update.Order
	}
	if update.Status != nil {
		sc.Status = *update.Status
	}
	out := *sc
	return &out, nil
}

func (f *fakeBackend) DeleteScene(ctx context.Context, projectID, sceneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return notFound("Project")
	}
	for i := range p.Scenes {
		if p.Scenes[i].ID == sceneID {
			p.Scenes = append(p.Scenes[:i], p.Scenes[i+1:]...)
			return nil
		}
	}
	return notFound("Scene")
}

func (f *fakeBackend) RefinePrompt(ctx context.Context, req models.RefinePromptRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return "", err
	}
	if req.Prompt == "" {
		return "An opening scene for " + req.ProjectTitle, nil
	}
	return "Refined: " + req.Prompt, nil
}

func (f *fakeBackend) setStatus(projectID, sceneID string, status models.SceneStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, err := f.findScene(projectID, sceneID)
	if err == nil {
		sc.Status = status
	}
}

func setup(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	return New(backend, nil), backend
}

// seedProject creates a project with one scene and makes it current
func seedProject(t *testing.T, s *Store) (*models.Project, *models.Scene) {
	t.Helper()
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Demo")
	require.NoError(t, err)
	_, err = s.FetchProject(ctx, p.ID)
	require.NoError(t, err)
	sc, err := s.CreateScene(ctx, p.ID, models.SceneRequest{Prompt: "A ball bouncing", Order: 0})
	require.NoError(t, err)
	return p, sc
}

func TestFetchProjects(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.CreateProject(ctx, "One")
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, "Two")
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, s.Projects())

	projects, err := s.FetchProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.Len(t, s.Projects(), 2)
	assert.False(t, s.Loading())
	assert.Empty(t, s.Error())
}

func TestFetchProjects_ErrorIsRecordedAndReturned(t *testing.T) {
	s, backend := setup(t)
	backend.failNext = &api.Error{StatusCode: http.StatusInternalServerError, Detail: "database unavailable"}

	_, err := s.FetchProjects(context.Background())
	require.Error(t, err)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "fetchProjects", actionErr.Op)
	assert.Equal(t, "database unavailable", actionErr.Message)
	assert.Equal(t, "database unavailable", s.Error())
	assert.False(t, s.Loading())

	s.ClearError()
	assert.Empty(t, s.Error())
}

func TestAction_ClearsPreviousError(t *testing.T) {
	s, backend := setup(t)
	backend.failNext = errors.New("network down")

	_, err := s.FetchProjects(context.Background())
	require.Error(t, err)
	assert.Equal(t, "network down", s.Error())

	_, err = s.FetchProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Error())
}

func TestCreateProject_Appends(t *testing.T) {
	s, _ := setup(t)

	p, err := s.CreateProject(context.Background(), "Demo")
	require.NoError(t, err)

	found, ok := s.ProjectByID(p.ID)
	assert.True(t, ok)
	assert.Equal(t, "Demo", found.Title)

	_, ok = s.ProjectByID("nope")
	assert.False(t, ok)
}

func TestCreateProject_Validation(t *testing.T) {
	s, backend := setup(t)
	backend.failNext = errors.New("must not be consumed")

	_, err := s.CreateProject(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, s.Error())
	assert.NotNil(t, backend.failNext)
}

func TestUpdateProject_KeepsScenes(t *testing.T) {
	s, _ := setup(t)
	p, _ := seedProject(t, s)

	_, err := s.UpdateProject(context.Background(), p.ID, "Renamed")
	require.NoError(t, err)

	found, _ := s.ProjectByID(p.ID)
	assert.Equal(t, "Renamed", found.Title)

	current := s.CurrentProject()
	require.NotNil(t, current)
	assert.Equal(t, "Renamed", current.Title)
	assert.Len(t, current.Scenes, 1)
}

func TestDeleteProject_ClearsCurrent(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)

	_, err := s.FetchScene(ctx, p.ID, sc.ID)
	require.NoError(t, err)
	require.NotNil(t, s.CurrentScene())

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, ok := s.ProjectByID(p.ID)
	assert.False(t, ok)
	assert.Nil(t, s.CurrentProject())
	assert.Nil(t, s.CurrentScene())
}

func TestDeleteProject_OtherProjectKeepsCurrent(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	p, _ := seedProject(t, s)

	other, err := s.CreateProject(ctx, "Other")
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, other.ID))
	require.NotNil(t, s.CurrentProject())
	assert.Equal(t, p.ID, s.CurrentProject().ID)
}

func TestDeleteProject_FailureKeepsCache(t *testing.T) {
	s, backend := setup(t)
	p, _ := seedProject(t, s)
	backend.failNext = &api.Error{StatusCode: http.StatusForbidden, Detail: "Not allowed"}

	err := s.DeleteProject(context.Background(), p.ID)
	require.Error(t, err)
	assert.Equal(t, "Not allowed", s.Error())

	_, ok := s.ProjectByID(p.ID)
	assert.True(t, ok)
	assert.NotNil(t, s.CurrentProject())
}

func TestFetchProject_NotFound(t *testing.T) {
	s, backend := setup(t)
	ctx := context.Background()
	p, _ := seedProject(t, s)

	// another id does not disturb the current project
	_, err := s.FetchProject(ctx, "missing")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	require.NotNil(t, s.CurrentProject())
	assert.Equal(t, p.ID, s.CurrentProject().ID)
	assert.Empty(t, s.Error(), "not found is rendered by the caller, not stored")

	backend.mu.Lock()
	delete(backend.projects, p.ID)
	backend.mu.Unlock()

	_, err = s.FetchProject(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Nil(t, s.CurrentProject())
	assert.Empty(t, s.Error())
}

func TestFetchScene_NotFound(t *testing.T) {
	s, backend := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)

	_, err := s.FetchScene(ctx, p.ID, sc.ID)
	require.NoError(t, err)

	_, err = s.FetchScene(ctx, p.ID, "missing")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	require.NotNil(t, s.CurrentScene())
	assert.Equal(t, sc.ID, s.CurrentScene().ID)

	backend.mu.Lock()
	backend.projects[p.ID].Scenes = nil
	backend.mu.Unlock()

	_, err = s.FetchScene(ctx, p.ID, sc.ID)
	require.Error(t, err)
	assert.Nil(t, s.CurrentScene())
	assert.Empty(t, s.Error())
}

func TestCreateScene_AppendsPending(t *testing.T) {
	s, _ := setup(t)
	p, sc := seedProject(t, s)

	assert.Equal(t, models.SceneStatusPending, sc.Status)

	current := s.CurrentProject()
	require.NotNil(t, current)
	require.Len(t, current.Scenes, 1)
	assert.Equal(t, sc.ID, current.Scenes[0].ID)
	assert.Equal(t, p.ID, current.Scenes[0].ProjectID)
	assert.Equal(t, models.SceneStatusPending, current.Scenes[0].Status)
}

func TestCreateScene_OtherProjectNotAppended(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	seedProject(t, s)

	other, err := s.CreateProject(ctx, "Other")
	require.NoError(t, err)

	_, err = s.CreateScene(ctx, other.ID, models.SceneRequest{Prompt: "elsewhere"})
	require.NoError(t, err)
	assert.Len(t, s.CurrentProject().Scenes, 1)
}

func TestCreateScene_Validation(t *testing.T) {
	s, _ := setup(t)
	p, _ := seedProject(t, s)

	_, err := s.CreateScene(context.Background(), p.ID, models.SceneRequest{Prompt: ""})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.CreateScene(context.Background(), p.ID, models.SceneRequest{Prompt: "x", Order: -1})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateScene_PromptOnly(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)

	_, err := s.FetchScene(ctx, p.ID, sc.ID)
	require.NoError(t, err)

	before := s.CurrentProject().Scenes[0]
	_, err = s.UpdateScene(ctx, p.ID, sc.ID, models.SceneUpdate{Prompt: models.StringPtr("A ball rolling")})
	require.NoError(t, err)

	after := s.CurrentProject().Scenes[0]
	assert.Equal(t, "A ball rolling", after.Prompt)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Order, after.Order)
	assert.Equal(t, before.Status, after.Status)

	current := s.CurrentScene()
	require.NotNil(t, current)
	assert.Equal(t, "A ball rolling", current.Prompt)
}

func TestUpdateScene_KeepsCode(t *testing.T) {
	s, backend := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)
	backend.code[sc.ID] = "Circle()"

	_, err := s.FetchScene(ctx, p.ID, sc.ID)
	require.NoError(t, err)

	_, err = s.UpdateScene(ctx, p.ID, sc.ID, models.SceneUpdate{Order: models.IntPtr(3)})
	require.NoError(t, err)

	current := s.CurrentScene()
	assert.Equal(t, 3, current.Order)
	assert.Equal(t, "Circle()", current.Code)
}

func TestUpdateScene_Validation(t *testing.T) {
	s, _ := setup(t)
	p, sc := seedProject(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		update models.SceneUpdate
	}{
		{"empty", models.SceneUpdate{}},
		{"blank prompt", models.SceneUpdate{Prompt: models.StringPtr(" ")}},
		{"bad status", models.SceneUpdate{Status: models.StatusPtr("exploded")}},
		{"negative order", models.SceneUpdate{Order: models.IntPtr(-2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdateScene(ctx, p.ID, sc.ID, tt.update)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestDeleteScene(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)

	_, err := s.FetchScene(ctx, p.ID, sc.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteScene(ctx, p.ID, sc.ID))
	assert.Empty(t, s.CurrentProject().Scenes)
	assert.Nil(t, s.CurrentScene())
}

func TestRetryScene(t *testing.T) {
	s, backend := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)

	backend.setStatus(p.ID, sc.ID, models.SceneStatusFailed)
	_, err := s.FetchProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SceneStatusFailed, s.CurrentProject().Scenes[0].Status)

	retried, err := s.RetryScene(ctx, p.ID, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SceneStatusPending, retried.Status)
	assert.Equal(t, "A ball bouncing", retried.Prompt)
	assert.Equal(t, models.SceneStatusPending, s.CurrentProject().Scenes[0].Status)

	_, err = s.RetryScene(ctx, p.ID, "unknown")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestRefinePrompt(t *testing.T) {
	s, _ := setup(t)
	before := s.Snapshot()

	refined, err := s.RefinePrompt(context.Background(), "Demo", "")
	require.NoError(t, err)
	assert.Equal(t, "An opening scene for Demo", refined)

	refined, err = s.RefinePrompt(context.Background(), "Demo", "circle")
	require.NoError(t, err)
	assert.Equal(t, "Refined: circle", refined)

	after := s.Snapshot()
	assert.Greater(t, after.Version, before.Version)
	after.Version = before.Version
	assert.Equal(t, before, after)
}

func TestSnapshot_IsACopy(t *testing.T) {
	s, _ := setup(t)
	seedProject(t, s)

	snap := s.Snapshot()
	snap.CurrentProject.Scenes[0].Prompt = "mutated"
	snap.Projects[0].Title = "mutated"

	assert.Equal(t, "A ball bouncing", s.CurrentProject().Scenes[0].Prompt)
	assert.Equal(t, "Demo", s.Projects()[0].Title)
}

func TestLoading_CountsInflightActions(t *testing.T) {
	s, backend := setup(t)
	p, _ := seedProject(t, s)

	entered := make(chan struct{})
	release := make(chan struct{})
	backend.getProjectHook = func(ctx context.Context, projectID string) {
		entered <- struct{}{}
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.FetchProject(context.Background(), p.ID)
	}()

	<-entered
	assert.True(t, s.Loading())

	// a second, quick action finishing does not clear loading
	_, err := s.FetchProjects(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Loading())

	close(release)
	<-done
	assert.False(t, s.Loading())
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	s, backend := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)

	// The first fetch reads the scene while pending and is held back.
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	backend.getProjectHook = func(ctx context.Context, projectID string) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			entered <- struct{}{}
			<-release
		}
	}

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = s.FetchProject(ctx, p.ID)
	}()
	<-entered

	// Meanwhile the scene completes and a newer fetch lands first.
	backend.setStatus(p.ID, sc.ID, models.SceneStatusCompleted)
	_, err := s.FetchProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SceneStatusCompleted, s.CurrentProject().Scenes[0].Status)

	close(release)
	<-slowDone

	assert.Equal(t, models.SceneStatusCompleted, s.CurrentProject().Scenes[0].Status,
		"older response must not flip the status back")
}

func TestCanceledFetchIsDiscarded(t *testing.T) {
	s, backend := setup(t)
	p, _ := seedProject(t, s)
	before := s.CurrentProject()

	ctx, cancel := context.WithCancel(context.Background())
	backend.getProjectHook = func(context.Context, string) {
		cancel()
	}
	backend.mu.Lock()
	backend.projects[p.ID].Title = "Changed on server"
	backend.mu.Unlock()

	_, err := s.FetchProject(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, api.IsCanceled(err))
	assert.Equal(t, before, s.CurrentProject())
	assert.Empty(t, s.Error())
	assert.False(t, s.Loading())
}

func TestSubscribe(t *testing.T) {
	s, _ := setup(t)

	var loadingSeen []bool
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		loadingSeen = append(loadingSeen, snap.Loading)
	})

	_, err := s.CreateProject(context.Background(), "Demo")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, loadingSeen)

	unsubscribe()
	s.ClearError()
	assert.Len(t, loadingSeen, 2)
}

func TestSubscribe_NeverSeesOlderState(t *testing.T) {
	s, backend := setup(t)
	ctx := context.Background()
	p, sc := seedProject(t, s)
	backend.setStatus(p.ID, sc.ID, models.SceneStatusProcessing)

	blocked := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var last models.SceneStatus
	s.Subscribe(func(snap Snapshot) {
		if snap.CurrentProject == nil || len(snap.CurrentProject.Scenes) == 0 {
			return
		}
		status := snap.CurrentProject.Scenes[0].Status
		if status == models.SceneStatusProcessing {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		last = status
		mu.Unlock()
	})

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = s.FetchProject(ctx, p.ID)
	}()
	<-blocked

	// The scene completes while the processing delivery is still in flight.
	backend.setStatus(p.ID, sc.ID, models.SceneStatusCompleted)
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, _ = s.FetchProject(ctx, p.ID)
	}()
	time.Sleep(20 * time.Millisecond)

	close(release)
	<-firstDone
	<-secondDone

	assert.Equal(t, models.SceneStatusCompleted, s.CurrentProject().Scenes[0].Status)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, models.SceneStatusCompleted, last)
}

func TestSnapshot_VersionIncreases(t *testing.T) {
	s, _ := setup(t)

	v0 := s.Snapshot().Version
	s.ClearError()
	v1 := s.Snapshot().Version
	s.Reset()
	assert.Greater(t, v1, v0)
	assert.Greater(t, s.Snapshot().Version, v1)
}
