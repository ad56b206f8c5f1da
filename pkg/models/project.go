package models

// Project is a user-owned container of ordered scenes
type Project struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    string    `json:"user_id"`
	CreatedAt Timestamp `json:"created_at"`
}

// ProjectWithScenes is the project detail returned by GET /projects/{id}
type ProjectWithScenes struct {
	Project
	Scenes []Scene `json:"scenes"`
}

// ProjectRequest is the body for creating or renaming a project
type ProjectRequest struct {
	Title string `json:"title" validate:"notblank"`
}

// HasPendingScenes reports whether any scene still awaits generation
func (p *ProjectWithScenes) HasPendingScenes() bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scenes {
		if !s.Status.IsTerminal() {
			return true
		}
	}
	return false
}

// SortedScenes returns a copy of the scenes ordered by their Order field
func (p *ProjectWithScenes) SortedScenes() []Scene {
	if p == nil {
		return nil
	}
	scenes := make([]Scene, len(p.Scenes))
	copy(scenes, p.Scenes)
	SortScenes(scenes)
	return scenes
}

// Clone returns a deep copy
func (p *ProjectWithScenes) Clone() *ProjectWithScenes {
	if p == nil {
		return nil
	}
	c := *p
	c.Scenes = make([]Scene, len(p.Scenes))
	copy(c.Scenes, p.Scenes)
	return &c
}
