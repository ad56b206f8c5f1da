package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

func projectPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID)
}

// ListProjects returns the caller's projects
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	r, _ := jsonRequest(http.MethodGet, "/projects", "/projects", nil)

	var projects []models.Project
	if err := c.do(ctx, r, &projects); err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

// GetProject returns a project with its scenes
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.ProjectWithScenes, error) {
	r, _ := jsonRequest(http.MethodGet, "/projects/{id}", projectPath(projectID), nil)

	var project models.ProjectWithScenes
	if err := c.do(ctx, r, &project); err != nil {
		return nil, err
	}
	if project.Scenes == nil {
		project.Scenes = []models.Scene{}
	}
	return &project, nil
}

// CreateProject creates a project
func (c *Client) CreateProject(ctx context.Context, req models.ProjectRequest) (*models.Project, error) {
	r, err := jsonRequest(http.MethodPost, "/projects", "/projects", req)
	if err != nil {
		return nil, err
	}

	var project models.Project
	if err := c.do(ctx, r, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject renames a project
func (c *Client) UpdateProject(ctx context.Context, projectID string, req models.ProjectRequest) (*models.Project, error) {
	r, err := jsonRequest(http.MethodPut, "/projects/{id}", projectPath(projectID), req)
	if err != nil {
		return nil, err
	}

	var project models.Project
	if err := c.do(ctx, r, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project and its scenes
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	r, _ := jsonRequest(http.MethodDelete, "/projects/{id}", projectPath(projectID), nil)
	return c.do(ctx, r, nil)
}
