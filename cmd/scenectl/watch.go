package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/poller"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/routes"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/store"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <route-path>",
		Short: "Poll a project or scene until rendering finishes",
		Long: "Poll a project or scene until rendering finishes.\n\n" +
			"The path is a view path such as /projects/<id> or /projects/<id>/scenes/<scene-id>.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			route, err := routes.Parse(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if metricsAddr != "" {
				srv := metrics.NewServer(metricsAddr)
				go func() {
					if err := srv.Start(); err != nil {
						a.client.Logger.ErrorWithErr("Metrics server failed", err)
					}
				}()
				defer srv.Shutdown(context.Background())
			}

			var w *poller.Watch
			switch route.Kind {
			case routes.KindProjectDetail:
				w = a.client.Poller.WatchProject(ctx, route.ProjectID)
			case routes.KindSceneDetail:
				w = a.client.Poller.WatchScene(ctx, route.ProjectID, route.SceneID)
			default:
				return fmt.Errorf("cannot watch %s: pass a project or scene path", route.Kind)
			}

			unsubscribe := a.followScenes()
			defer unsubscribe()

			err = w.Wait(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.Stop()
				<-w.Done()
				return err
			}
			<-w.Done()

			fmt.Fprintf(a.out, "Done after %d polls\n", w.Ticks())
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits until done)")
	return cmd
}

// followScenes prints each scene status change seen in the store until the
// returned func is called
func (a *app) followScenes() func() {
	var mu sync.Mutex
	seen := make(map[string]models.SceneStatus)

	report := func(s models.Scene) {
		if prev, ok := seen[s.ID]; ok && prev == s.Status {
			return
		}
		seen[s.ID] = s.Status
		line := fmt.Sprintf("%s  scene %s  %s", time.Now().Format(time.TimeOnly), s.ID, s.Status)
		if s.VideoURL != "" {
			line += "  " + s.VideoURL
		}
		fmt.Fprintln(a.out, line)
	}

	return a.client.Store.Subscribe(func(snap store.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.CurrentScene != nil {
			report(snap.CurrentScene.Scene)
		}
		if snap.CurrentProject != nil {
			for _, s := range snap.CurrentProject.SortedScenes() {
				report(s)
			}
		}
	})
}
