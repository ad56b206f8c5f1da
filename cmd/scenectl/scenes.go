package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

func newScenesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenes",
		Aliases: []string{"scene"},
		Short:   "Manage the scenes of a project",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <project-id>",
			Short: "List scenes in order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.client.Store.FetchProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderScenes(a.out, p.SortedScenes())
			},
		},
		newSceneCreateCmd(a),
		newSceneShowCmd(a),
		newSceneEditCmd(a),
		&cobra.Command{
			Use:   "delete <project-id> <scene-id>",
			Short: "Delete a scene",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.client.Store.DeleteScene(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted scene %s\n", args[1])
				return nil
			},
		},
		newSceneRetryCmd(a),
		&cobra.Command{
			Use:   "archive <project-id> <scene-id>",
			Short: "Copy a rendered video to object storage",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				scene, err := a.client.Store.FetchScene(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				archiver, err := a.client.Archiver()
				if err != nil {
					return err
				}
				res, err := archiver.ArchiveScene(cmd.Context(), scene.Scene)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Archived %s (%d bytes)\n%s\n", res.Object, res.Size, res.URL)
				return nil
			},
		},
	)
	return cmd
}

func newSceneCreateCmd(a *app) *cobra.Command {
	var (
		order   int
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create <project-id> <prompt>",
		Short: "Submit a scene for generation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			scene, err := a.client.Store.CreateScene(cmd.Context(), projectID, models.SceneRequest{
				Prompt: args[1],
				Order:  order,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created scene %s (%s)\n", scene.ID, scene.Status)
			if !wait {
				return nil
			}
			return a.waitForScene(cmd.Context(), projectID, scene.ID, timeout)
		},
	}
	cmd.Flags().IntVar(&order, "order", 0, "position of the scene in the project")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the scene finishes rendering")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long --wait polls")
	return cmd
}

func newSceneShowCmd(a *app) *cobra.Command {
	var code bool

	cmd := &cobra.Command{
		Use:   "show <project-id> <scene-id>",
		Short: "Show a scene",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := a.client.Store.FetchScene(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return renderScene(a.out, scene, code)
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "print the generated animation code")
	return cmd
}

func newSceneEditCmd(a *app) *cobra.Command {
	var (
		prompt string
		order  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "edit <project-id> <scene-id>",
		Short: "Change the prompt, order or status of a scene",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update models.SceneUpdate
			flags := cmd.Flags()
			if flags.Changed("prompt") {
				update.Prompt = models.StringPtr(prompt)
			}
			if flags.Changed("order") {
				update.Order = models.IntPtr(order)
			}
			if flags.Changed("status") {
				update.Status = models.StatusPtr(models.SceneStatus(status))
			}
			if update.IsEmpty() {
				return errors.New("nothing to change: pass --prompt, --order or --status")
			}

			scene, err := a.client.Store.UpdateScene(cmd.Context(), args[0], args[1], update)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated scene %s (%s)\n", scene.ID, scene.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "new prompt; a changed prompt re-renders the scene")
	cmd.Flags().IntVar(&order, "order", 0, "new position")
	cmd.Flags().StringVar(&status, "status", "", "new status: pending, processing, completed, failed")
	return cmd
}

func newSceneRetryCmd(a *app) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "retry <project-id> <scene-id>",
		Short: "Render a scene again with its current prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, sceneID := args[0], args[1]
			if _, err := a.client.Store.FetchScene(cmd.Context(), projectID, sceneID); err != nil {
				return err
			}
			scene, err := a.client.Store.RetryScene(cmd.Context(), projectID, sceneID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Resubmitted scene %s (%s)\n", scene.ID, scene.Status)
			if !wait {
				return nil
			}
			return a.waitForScene(cmd.Context(), projectID, sceneID, timeout)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the scene finishes rendering")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long --wait polls")
	return cmd
}

// waitForScene polls one scene until it is terminal
func (a *app) waitForScene(ctx context.Context, projectID, sceneID string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := a.followScenes()
	defer stop()

	w := a.client.Poller.WatchScene(ctx, projectID, sceneID)
	if err := w.Wait(ctx); err != nil {
		w.Stop()
		<-w.Done()
		return err
	}

	scene := a.client.Store.CurrentScene()
	if scene == nil {
		return nil
	}
	if scene.Status == models.SceneStatusFailed {
		return fmt.Errorf("scene %s failed to render", sceneID)
	}
	if scene.VideoURL != "" {
		fmt.Fprintf(a.out, "Video: %s\n", scene.VideoURL)
	}
	return nil
}
