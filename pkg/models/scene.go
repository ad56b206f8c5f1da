package models

import "sort"

// SceneStatus is the generation lifecycle state of a scene
type SceneStatus string

// SceneStatus constants
const (
	SceneStatusPending    SceneStatus = "pending"
	SceneStatusProcessing SceneStatus = "processing"
	SceneStatusCompleted  SceneStatus = "completed"
	SceneStatusFailed     SceneStatus = "failed"
)

// IsTerminal reports whether no further generation work is expected
func (s SceneStatus) IsTerminal() bool {
	return s == SceneStatusCompleted || s == SceneStatusFailed
}

// Valid reports whether s is one of the four known states
func (s SceneStatus) Valid() bool {
	switch s {
	case SceneStatusPending, SceneStatusProcessing, SceneStatusCompleted, SceneStatusFailed:
		return true
	}
	return false
}

// Scene is a single prompt-to-video generation unit.
// VideoURL is set by the backend only once Status is completed.
type Scene struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Prompt    string      `json:"prompt"`
	Order     int         `json:"order"`
	Status    SceneStatus `json:"status"`
	VideoURL  string      `json:"video_url,omitempty"`
	CreatedAt Timestamp   `json:"created_at"`
}

// SceneDetail adds the generated animation code to a scene
type SceneDetail struct {
	Scene
	Code string `json:"code,omitempty"`
}

// SceneRequest is the body of POST /projects/{id}/scenes
type SceneRequest struct {
	Prompt string `json:"prompt" validate:"notblank"`
	Order  int    `json:"order" validate:"gte=0"`
}

// SceneUpdate is a partial scene patch. Nil fields are left untouched.
type SceneUpdate struct {
	Prompt *string      `json:"prompt,omitempty"`
	Order  *int         `json:"order,omitempty"`
	Status *SceneStatus `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (u SceneUpdate) IsEmpty() bool {
	return u.Prompt == nil && u.Order == nil && u.Status == nil
}

// SortScenes orders scenes by Order. Scenes sharing an Order keep their
// relative input order, which is whatever the backend returned.
func SortScenes(scenes []Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].Order < scenes[j].Order
	})
}

// StringPtr returns a pointer to s, for building patches
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i
func IntPtr(i int) *int { return &i }

// StatusPtr returns a pointer to s
func StatusPtr(s SceneStatus) *SceneStatus { return &s }
