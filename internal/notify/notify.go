// Package notify publishes scene status changes observed while polling.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

// Event names
const (
	EventSceneCompleted = "scene.completed"
	EventSceneFailed    = "scene.failed"
	EventSceneUpdated   = "scene.updated"
)

// StatusChange is one observed scene status transition
type StatusChange struct {
	ProjectID string             `json:"project_id"`
	SceneID   string             `json:"scene_id"`
	Prompt    string             `json:"prompt"`
	From      models.SceneStatus `json:"from"`
	To        models.SceneStatus `json:"to"`
	VideoURL  string             `json:"video_url,omitempty"`
	At        time.Time          `json:"at"`
}

// Event returns the event name for the transition
func (c StatusChange) Event() string {
	switch c.To {
	case models.SceneStatusCompleted:
		return EventSceneCompleted
	case models.SceneStatusFailed:
		return EventSceneFailed
	default:
		return EventSceneUpdated
	}
}

// Notifier receives status changes
type Notifier interface {
	Notify(ctx context.Context, change StatusChange) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, change StatusChange) error

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, change StatusChange) error {
	return f(ctx, change)
}

// Multi fans a change out to several notifiers. Every notifier is called
// even if an earlier one fails.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, change StatusChange) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every change
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, StatusChange) error { return nil }
