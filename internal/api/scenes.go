package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

func scenesPath(projectID string) string {
	return projectPath(projectID) + "/scenes"
}

func scenePath(projectID, sceneID string) string {
	return scenesPath(projectID) + "/" + url.PathEscape(sceneID)
}

// ListScenes returns the scenes of a project
func (c *Client) ListScenes(ctx context.Context, projectID string) ([]models.Scene, error) {
	r, _ := jsonRequest(http.MethodGet, "/projects/{id}/scenes", scenesPath(projectID), nil)

	var scenes []models.Scene
	if err := c.do(ctx, r, &scenes); err != nil {
		return nil, err
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}
	return scenes, nil
}

// GetScene returns a scene including its generated code
func (c *Client) GetScene(ctx context.Context, projectID, sceneID string) (*models.SceneDetail, error) {
	r, _ := jsonRequest(http.MethodGet, "/projects/{id}/scenes/{sceneId}", scenePath(projectID, sceneID), nil)

	var scene models.SceneDetail
	if err := c.do(ctx, r, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// CreateScene submits a new scene for generation
func (c *Client) CreateScene(ctx context.Context, projectID string, req models.SceneRequest) (*models.Scene, error) {
	r, err := jsonRequest(http.MethodPost, "/projects/{id}/scenes", scenesPath(projectID), req)
	if err != nil {
		return nil, err
	}

	var scene models.Scene
	if err := c.do(ctx, r, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// UpdateScene applies a partial update to a scene
func (c *Client) UpdateScene(ctx context.Context, projectID, sceneID string, update models.SceneUpdate) (*models.Scene, error) {
	r, err := jsonRequest(http.MethodPut, "/projects/{id}/scenes/{sceneId}", scenePath(projectID, sceneID), update)
	if err != nil {
		return nil, err
	}

	var scene models.Scene
	if err := c.do(ctx, r, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// DeleteScene deletes a scene
func (c *Client) DeleteScene(ctx context.Context, projectID, sceneID string) error {
	r, _ := jsonRequest(http.MethodDelete, "/projects/{id}/scenes/{sceneId}", scenePath(projectID, sceneID), nil)
	return c.do(ctx, r, nil)
}
