// Package archive copies rendered scene videos into S3-compatible storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/notify"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// ErrNotCompleted is returned for scenes without a rendered video
var ErrNotCompleted = errors.New("scene has no rendered video")

// Result describes an archived video
type Result struct {
	Object string
	URL    string
	Size   int64
}

// Archiver downloads scene videos and uploads them to an ObjectStore
type Archiver struct {
	store   ObjectStore
	client  *http.Client
	baseURL *url.URL
	logger  *logging.Logger
}

// New creates an archiver. Relative video URLs are resolved against
// baseURL, normally the backend API URL.
func New(store ObjectStore, baseURL string, logger *logging.Logger) (*Archiver, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Archiver{
		store:   store,
		client:  &http.Client{Timeout: 5 * time.Minute},
		baseURL: base,
		logger:  logger.WithComponent("archive"),
	}, nil
}

// ObjectName returns the object key a scene video is archived under
func ObjectName(projectID, sceneID, videoURL string) string {
	ext := ".mp4"
	if u, err := url.Parse(videoURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return path.Join("scenes", projectID, sceneID+ext)
}

// ArchiveScene copies the video of a completed scene
func (a *Archiver) ArchiveScene(ctx context.Context, scene models.Scene) (*Result, error) {
	if scene.Status != models.SceneStatusCompleted || scene.VideoURL == "" {
		return nil, fmt.Errorf("failed to archive scene %s: %w", scene.ID, ErrNotCompleted)
	}

	src, err := a.baseURL.Parse(scene.VideoURL)
	if err != nil {
		return nil, fmt.Errorf("invalid video URL: %w", err)
	}

	start := time.Now()
	object := ObjectName(scene.ProjectID, scene.ID, scene.VideoURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download video: status %d", resp.StatusCode)
	}

	err = a.store.Upload(ctx, object, resp.Body, resp.ContentLength, getContentType(object))
	a.logger.LogStorageOperation("upload", a.store.Bucket(), object, resp.ContentLength, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	link, err := a.store.GetURL(ctx, object)
	if err != nil {
		return nil, err
	}

	return &Result{Object: object, URL: link, Size: resp.ContentLength}, nil
}

// ListProject returns the archived objects of a project
func (a *Archiver) ListProject(ctx context.Context, projectID string) ([]string, error) {
	return a.store.List(ctx, path.Join("scenes", projectID)+"/")
}

// Notify archives scenes as they complete. Other transitions are ignored.
func (a *Archiver) Notify(ctx context.Context, change notify.StatusChange) error {
	if change.To != models.SceneStatusCompleted || change.VideoURL == "" {
		return nil
	}

	_, err := a.ArchiveScene(ctx, models.Scene{
		ID:        change.SceneID,
		ProjectID: change.ProjectID,
		Prompt:    change.Prompt,
		Status:    change.To,
		VideoURL:  change.VideoURL,
	})
	return err
}
