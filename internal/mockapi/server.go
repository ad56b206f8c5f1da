// Package mockapi is an in-memory implementation of the scene generation
// backend. It serves the same REST contract as the real service and
// simulates the asynchronous render pipeline.
package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/config"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/middleware"
)

// APIPrefix is where the REST contract is mounted
const APIPrefix = "/api/v1"

const defaultTokenTTL = 24 * time.Hour

// Server is the mock backend
type Server struct {
	cfg     config.MockAPIConfig
	logger  *logging.Logger
	router  *gin.Engine
	limiter *middleware.RateLimiter
	now     func() time.Time

	mu sync.Mutex
	st *state
}

// New builds a mock backend. A zero RateLimit disables rate limiting.
func New(cfg config.MockAPIConfig, logger *logging.Logger) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.WithComponent("mockapi"),
		now:    time.Now,
		st:     newState(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.Burst)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(s.logger))

	router.GET("/", s.root)
	router.GET("/health", s.healthCheck)
	router.GET("/media/videos/:file", s.serveVideo)

	v1 := router.Group(APIPrefix)
	{
		auth := v1.Group("/auth")
		if s.limiter != nil {
			auth.Use(middleware.RateLimit(s.limiter))
		}
		auth.POST("/token", s.login)
		auth.POST("/register", s.register)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(s.cfg.JWTSecret))
		if s.limiter != nil {
			protected.Use(middleware.RateLimit(s.limiter))
		}

		// Projects
		protected.GET("/projects", s.listProjects)
		protected.POST("/projects", s.createProject)
		protected.GET("/projects/:id", s.getProject)
		protected.PUT("/projects/:id", s.updateProject)
		protected.DELETE("/projects/:id", s.deleteProject)

		// Scenes
		protected.GET("/projects/:id/scenes", s.listScenes)
		protected.POST("/projects/:id/scenes", s.createScene)
		protected.GET("/projects/:id/scenes/:sceneId", s.getScene)
		protected.PUT("/projects/:id/scenes/:sceneId", s.updateScene)
		protected.DELETE("/projects/:id/scenes/:sceneId", s.deleteScene)

		// AI helpers
		protected.POST("/ai/refine-prompt", s.refinePrompt)
		protected.POST("/ai/generate-code", s.generateCode)
	}

	return router
}

// Advance moves every unfinished scene one stage through the pipeline and
// returns how many changed
func (s *Server) Advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, r := range s.st.scenes {
		from := r.scene.Status
		if r.step() {
			changed++
			s.logger.LogSceneTransition(r.scene.ProjectID, r.scene.ID, string(from), string(r.scene.Status))
		}
	}
	return changed
}

// Run advances the pipeline every interval until ctx is done
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.StepInterval
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Advance()
		}
	}
}

// ListenAndServe serves on cfg.Host:cfg.Port, runs the pipeline, and shuts
// down gracefully when ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(runCtx, s.cfg.StepInterval)
	if s.limiter != nil {
		go s.limiter.CleanupLoop(runCtx, time.Minute, 10*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting mock API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down mock API server...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
