package mockapi

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// FailMarker in a prompt makes the simulated render fail
const FailMarker = "[fail]"

type account struct {
	user         models.User
	passwordHash []byte
}

type sceneRecord struct {
	scene models.Scene
	code  string
	seq   int
}

// state is the in-memory backend data. Callers hold Server.mu.
type state struct {
	accounts map[string]*account // by username
	projects map[string]*models.Project
	scenes   map[string]*sceneRecord
	nextSeq  int
}

func newState() *state {
	return &state{
		accounts: make(map[string]*account),
		projects: make(map[string]*models.Project),
		scenes:   make(map[string]*sceneRecord),
	}
}

func (st *state) emailTaken(email string) bool {
	for _, a := range st.accounts {
		if strings.EqualFold(a.user.Email, email) {
			return true
		}
	}
	return false
}

func (st *state) ownedProject(userID, projectID string) (*models.Project, bool) {
	p, ok := st.projects[projectID]
	if !ok || p.UserID != userID {
		return nil, false
	}
	return p, true
}

func (st *state) projectsOf(userID string) []models.Project {
	list := make([]models.Project, 0)
	for _, p := range st.projects {
		if p.UserID == userID {
			list = append(list, *p)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt.Time) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt.Time)
	})
	return list
}

// scenesOf returns a project's scenes ordered by Order, then creation
func (st *state) scenesOf(projectID string) []*sceneRecord {
	recs := make([]*sceneRecord, 0)
	for _, r := range st.scenes {
		if r.scene.ProjectID == projectID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].scene.Order != recs[j].scene.Order {
			return recs[i].scene.Order < recs[j].scene.Order
		}
		return recs[i].seq < recs[j].seq
	})
	return recs
}

func (st *state) addProject(userID, title string, now time.Time) *models.Project {
	p := &models.Project{
		ID:        uuid.New().String(),
		Title:     title,
		UserID:    userID,
		CreatedAt: models.NewTimestamp(now),
	}
	st.projects[p.ID] = p
	return p
}

func (st *state) deleteProject(projectID string) {
	delete(st.projects, projectID)
	for id, r := range st.scenes {
		if r.scene.ProjectID == projectID {
			delete(st.scenes, id)
		}
	}
}

func (st *state) addScene(projectID, prompt string, order int, now time.Time) *sceneRecord {
	st.nextSeq++
	r := &sceneRecord{
		scene: models.Scene{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			Prompt:    prompt,
			Order:     order,
			Status:    models.SceneStatusPending,
			CreatedAt: models.NewTimestamp(now),
		},
		seq: st.nextSeq,
	}
	st.scenes[r.scene.ID] = r
	return r
}

// applyUpdate patches a scene. A changed prompt, or a failed scene set back
// to pending, restarts generation.
func (r *sceneRecord) applyUpdate(u models.SceneUpdate) {
	regenerate := false
	if u.Prompt != nil && *u.Prompt != r.scene.Prompt {
		regenerate = true
	}
	if u.Status != nil && *u.Status == models.SceneStatusPending && r.scene.Status == models.SceneStatusFailed {
		regenerate = true
	}

	if u.Prompt != nil {
		r.scene.Prompt = *u.Prompt
	}
	if u.Order != nil {
		r.scene.Order = *u.Order
	}
	if u.Status != nil {
		r.scene.Status = *u.Status
	}

	if regenerate || r.scene.Status == models.SceneStatusPending {
		r.scene.Status = models.SceneStatusPending
		r.scene.VideoURL = ""
		r.code = ""
	}
}

// step moves a non-terminal scene one stage through the render pipeline.
// It reports whether anything changed.
func (r *sceneRecord) step() bool {
	switch r.scene.Status {
	case models.SceneStatusPending:
		r.scene.Status = models.SceneStatusProcessing
		r.code = GenerateCode(r.scene.Prompt)
		return true
	case models.SceneStatusProcessing:
		if strings.Contains(strings.ToLower(r.scene.Prompt), FailMarker) {
			r.scene.Status = models.SceneStatusFailed
			return true
		}
		r.scene.Status = models.SceneStatusCompleted
		r.scene.VideoURL = VideoPath(r.scene.ID)
		return true
	}
	return false
}

func (r *sceneRecord) detail() models.SceneDetail {
	return models.SceneDetail{Scene: r.scene, Code: r.code}
}

// VideoPath is the host-relative URL of a rendered scene video
func VideoPath(sceneID string) string {
	return "/media/videos/" + sceneID + ".mp4"
}
