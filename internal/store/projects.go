package store

import (
	"context"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// FetchProjects replaces the cached project list
func (s *Store) FetchProjects(ctx context.Context) ([]models.Project, error) {
	seq := s.begin()
	projects, err := s.api.ListProjects(ctx)

	err = s.finish(ctx, "fetchProjects", err, func() {
		if stale(seq, s.projectsSeq, "projects") {
			return
		}
		s.projectsSeq = seq
		s.projects = make([]models.Project, len(projects))
		copy(s.projects, projects)
	}, nil)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// FetchProject loads a project with its scenes and makes it current. If the
// project is gone and was current, it is cleared without setting the error.
func (s *Store) FetchProject(ctx context.Context, projectID string) (*models.ProjectWithScenes, error) {
	seq := s.begin()
	project, err := s.api.GetProject(ctx, projectID)

	err = s.finish(ctx, "fetchProject", err, func() {
		if stale(seq, s.projectSeq, "project") {
			return
		}
		s.projectSeq = seq
		s.currentProject = project.Clone()
	}, func() {
		if seq > s.projectSeq && s.currentProject != nil && s.currentProject.ID == projectID {
			s.projectSeq = seq
			s.currentProject = nil
		}
	})
	if err != nil {
		return nil, err
	}
	return project.Clone(), nil
}

// CreateProject creates a project and appends it to the list
func (s *Store) CreateProject(ctx context.Context, title string) (*models.Project, error) {
	req := models.ProjectRequest{Title: title}
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	seq := s.begin()
	project, err := s.api.CreateProject(ctx, req)

	err = s.finish(ctx, "createProject", err, func() {
		s.projectsSeq = maxSeq(s.projectsSeq, seq)
		for _, p := range s.projects {
			if p.ID == project.ID {
				return
			}
		}
		s.projects = append(s.projects, *project)
	}, nil)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProject renames a project in the list and in the current project
func (s *Store) UpdateProject(ctx context.Context, projectID, title string) (*models.Project, error) {
	req := models.ProjectRequest{Title: title}
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	seq := s.begin()
	project, err := s.api.UpdateProject(ctx, projectID, req)

	err = s.finish(ctx, "updateProject", err, func() {
		s.projectsSeq = maxSeq(s.projectsSeq, seq)
		for i := range s.projects {
			if s.projects[i].ID == project.ID {
				s.projects[i] = *project
			}
		}

		if s.currentProject != nil && s.currentProject.ID == project.ID {
			s.projectSeq = maxSeq(s.projectSeq, seq)
			s.currentProject.Project = *project
		}
	}, nil)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject deletes a project. The current project and scene are
// cleared when they belong to it.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	seq := s.begin()
	err := s.api.DeleteProject(ctx, projectID)

	return s.finish(ctx, "deleteProject", err, func() {
		s.projectsSeq = maxSeq(s.projectsSeq, seq)
		kept := s.projects[:0]
		for _, p := range s.projects {
			if p.ID != projectID {
				kept = append(kept, p)
			}
		}
		s.projects = kept

		if s.currentProject != nil && s.currentProject.ID == projectID {
			s.projectSeq = maxSeq(s.projectSeq, seq)
			s.currentProject = nil
		}
		if s.currentScene != nil && s.currentScene.ProjectID == projectID {
			s.sceneSeq = maxSeq(s.sceneSeq, seq)
			s.currentScene = nil
		}
	}, nil)
}
