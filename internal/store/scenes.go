package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// FetchScene loads a scene with its code and makes it current
func (s *Store) FetchScene(ctx context.Context, projectID, sceneID string) (*models.SceneDetail, error) {
	seq := s.begin()
	scene, err := s.api.GetScene(ctx, projectID, sceneID)

	err = s.finish(ctx, "fetchScene", err, func() {
		if stale(seq, s.sceneSeq, "scene") {
			return
		}
		s.sceneSeq = seq
		sc := *scene
		s.currentScene = &sc
	}, func() {
		if seq > s.sceneSeq && s.currentScene != nil && s.currentScene.ID == sceneID {
			s.sceneSeq = seq
			s.currentScene = nil
		}
	})
	if err != nil {
		return nil, err
	}
	sc := *scene
	return &sc, nil
}

// CreateScene submits a scene and appends it to the current project when
// that project is the one being viewed
func (s *Store) CreateScene(ctx context.Context, projectID string, req models.SceneRequest) (*models.Scene, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	seq := s.begin()
	scene, err := s.api.CreateScene(ctx, projectID, req)

	err = s.finish(ctx, "createScene", err, func() {
		if s.currentProject == nil || s.currentProject.ID != projectID {
			return
		}
		s.projectSeq = maxSeq(s.projectSeq, seq)
		for _, sc := range s.currentProject.Scenes {
			if sc.ID == scene.ID {
				return
			}
		}
		s.currentProject.Scenes = append(s.currentProject.Scenes, *scene)
	}, nil)
	if err != nil {
		return nil, err
	}
	return scene, nil
}

// UpdateScene applies a partial update. The returned scene replaces the
// cached entry and is merged into the current scene, which keeps its code.
func (s *Store) UpdateScene(ctx context.Context, projectID, sceneID string, update models.SceneUpdate) (*models.Scene, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: update has no fields", models.ErrValidation)
	}
	if update.Prompt != nil && strings.TrimSpace(*update.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", models.ErrValidation)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *update.Status)
	}
	if update.Order != nil && *update.Order < 0 {
		return nil, fmt.Errorf("%w: order must be at least 0", models.ErrValidation)
	}

	seq := s.begin()
	scene, err := s.api.UpdateScene(ctx, projectID, sceneID, update)

	err = s.finish(ctx, "updateScene", err, func() {
		s.mergeSceneLocked(seq, *scene)
	}, nil)
	if err != nil {
		return nil, err
	}
	return scene, nil
}

func (s *Store) mergeSceneLocked(seq uint64, scene models.Scene) {
	if s.currentProject != nil {
		for i := range s.currentProject.Scenes {
			if s.currentProject.Scenes[i].ID == scene.ID {
				s.currentProject.Scenes[i] = scene
				s.projectSeq = maxSeq(s.projectSeq, seq)
			}
		}
	}

	if s.currentScene != nil && s.currentScene.ID == scene.ID {
		s.sceneSeq = maxSeq(s.sceneSeq, seq)
		s.currentScene.Scene = scene
	}
}

// DeleteScene deletes a scene from the backend and the cache
func (s *Store) DeleteScene(ctx context.Context, projectID, sceneID string) error {
	seq := s.begin()
	err := s.api.DeleteScene(ctx, projectID, sceneID)

	return s.finish(ctx, "deleteScene", err, func() {
		if s.currentProject != nil {
			kept := s.currentProject.Scenes[:0]
			for _, sc := range s.currentProject.Scenes {
				if sc.ID != sceneID {
					kept = append(kept, sc)
				}
			}
			s.currentProject.Scenes = kept
			s.projectSeq = maxSeq(s.projectSeq, seq)
		}

		if s.currentScene != nil && s.currentScene.ID == sceneID {
			s.sceneSeq = maxSeq(s.sceneSeq, seq)
			s.currentScene = nil
		}
	}, nil)
}

// RetryScene resubmits a scene with its current prompt by moving it back
// to pending
func (s *Store) RetryScene(ctx context.Context, projectID, sceneID string) (*models.Scene, error) {
	prompt, ok := s.cachedPrompt(sceneID)
	if !ok {
		return nil, fmt.Errorf("failed to retry scene %s: %w", sceneID, ErrNotLoaded)
	}

	return s.UpdateScene(ctx, projectID, sceneID, models.SceneUpdate{
		Prompt: models.StringPtr(prompt),
		Status: models.StatusPtr(models.SceneStatusPending),
	})
}

func (s *Store) cachedPrompt(sceneID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentScene != nil && s.currentScene.ID == sceneID {
		return s.currentScene.Prompt, true
	}
	if s.currentProject != nil {
		for _, sc := range s.currentProject.Scenes {
			if sc.ID == sceneID {
				return sc.Prompt, true
			}
		}
	}
	return "", false
}

// RefinePrompt asks the backend to improve a prompt. The cache is not touched.
func (s *Store) RefinePrompt(ctx context.Context, projectTitle, prompt string) (string, error) {
	s.begin()
	refined, err := s.api.RefinePrompt(ctx, models.RefinePromptRequest{
		ProjectTitle: projectTitle,
		Prompt:       prompt,
	})

	if err := s.finish(ctx, "refinePrompt", err, nil, nil); err != nil {
		return "", err
	}
	return refined, nil
}
