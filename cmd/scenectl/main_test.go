package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/client"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/config"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/mockapi"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/routes"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/store"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/tokenstore"
)

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

type cli struct {
	t          *testing.T
	baseURL    string
	configPath string
	tokens     tokenstore.Store
}

func setupCLI(t *testing.T) (*cli, *mockapi.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := mockapi.New(config.MockAPIConfig{JWTSecret: "test-secret"}, logging.NewNopLogger())
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("poll:\n  interval: 20ms\nlogging:\n  level: error\n"), 0o600))

	return &cli{
		t:          t,
		baseURL:    srv.URL + mockapi.APIPrefix,
		configPath: configPath,
		tokens:     tokenstore.NewMemoryStore(),
	}, backend
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, client.WithTokenStore(c.tokens))
	cmd.SetArgs(append([]string{"--config", c.configPath, "--api-url", c.baseURL}, args...))
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString(""))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "scenectl %v", args)
	return out
}

func TestCLIWorkflow(t *testing.T) {
	c, backend := setupCLI(t)

	out := c.mustRun("status")
	assert.Contains(t, out, "Authenticated: no")
	assert.Contains(t, out, c.baseURL)

	out = c.mustRun("register", "alice", "alice@example.com", "-p", "pw123456")
	assert.Contains(t, out, "Registered alice <alice@example.com>")
	assert.Contains(t, out, "Logged in as alice")

	out = c.mustRun("whoami")
	assert.Contains(t, out, "Authenticated: yes")

	out = c.mustRun("projects", "create", "Demo")
	projectID := idPattern.FindString(out)
	require.NotEmpty(t, projectID)

	out = c.mustRun("projects", "list")
	assert.Contains(t, out, "Demo")
	assert.Contains(t, out, projectID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go backend.Run(ctx, 20*time.Millisecond)

	out = c.mustRun("scenes", "create", projectID, "Draw a circle", "--wait", "--timeout", "5s")
	sceneID := idPattern.FindString(out)
	require.NotEmpty(t, sceneID)
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Video: "+mockapi.VideoPath(sceneID))

	out = c.mustRun("scenes", "show", projectID, sceneID, "--code")
	assert.Contains(t, out, "from manim import *")

	out = c.mustRun("scenes", "list", projectID)
	assert.Contains(t, out, "Draw a circle")

	out = c.mustRun("watch", "/projects/"+projectID)
	assert.Contains(t, out, "Done after 0 polls")

	out = c.mustRun("projects", "rename", projectID, "Renamed")
	assert.Contains(t, out, `"Renamed"`)

	out = c.mustRun("refine", "--title", "Orbits")
	assert.Contains(t, out, "Orbits")

	c.mustRun("scenes", "delete", projectID, sceneID)
	c.mustRun("projects", "delete", projectID)

	out = c.mustRun("logout")
	assert.Contains(t, out, "Logged out")
	out = c.mustRun("status")
	assert.Contains(t, out, "Authenticated: no")
}

func TestCLIErrors(t *testing.T) {
	c, _ := setupCLI(t)

	_, err := c.run("login", "ghost", "-p", "nope")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", describeError(err))

	// no password on stdin
	_, err = c.run("login", "ghost")
	require.Error(t, err)

	_, err = c.run("projects", "list")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Contains(t, describeError(err), "scenectl login")

	c.mustRun("register", "alice", "alice@example.com", "-p", "pw123456")

	_, err = c.run("projects", "show", "6f1c1a56-1f7b-4f0e-9a55-0d0c3b3f5e21")
	require.Error(t, err)
	var actionErr *store.ActionError
	assert.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "not found: Project not found", describeError(err))

	out := c.mustRun("projects", "create", "Demo")
	projectID := idPattern.FindString(out)
	out = c.mustRun("scenes", "create", projectID, "one")
	sceneID := idPattern.FindString(out)

	_, err = c.run("scenes", "edit", projectID, sceneID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")

	_, err = c.run("watch", "/dashboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot watch dashboard")

	_, err = c.run("watch", "/nowhere/at/all")
	assert.ErrorIs(t, err, routes.ErrUnknownRoute)
}

type closeCountingStore struct {
	tokenstore.Store
	closed int
}

func (s *closeCountingStore) Close() error {
	s.closed++
	return nil
}

func TestCLIClosesClientOnFailure(t *testing.T) {
	c, _ := setupCLI(t)
	tokens := &closeCountingStore{Store: tokenstore.NewMemoryStore()}

	runWith := func(args ...string) error {
		var out bytes.Buffer
		cmd := newRootCmd(&out, client.WithTokenStore(tokens))
		cmd.SetArgs(append([]string{"--config", c.configPath, "--api-url", c.baseURL}, args...))
		cmd.SetErr(io.Discard)
		cmd.SetIn(bytes.NewBufferString(""))
		return cmd.Execute()
	}

	require.Error(t, runWith("projects", "list"))
	assert.Equal(t, 1, tokens.closed)

	require.NoError(t, runWith("status"))
	assert.Equal(t, 2, tokens.closed)
}

func TestCLIStatusPingsRedisTokenStore(t *testing.T) {
	c, _ := setupCLI(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	redisStore, err := tokenstore.NewRedisStore(mr.Host(), mr.Server().Addr().Port, "", 0, "scenestudio")
	require.NoError(t, err)
	c.tokens = redisStore

	out := c.mustRun("status")
	assert.Contains(t, out, "Authenticated: no")
	assert.Contains(t, out, "Token store:   ok")
}

func TestCLIPasswordFromStdin(t *testing.T) {
	c, _ := setupCLI(t)
	c.mustRun("register", "alice", "alice@example.com", "-p", "pw123456")
	c.mustRun("logout")

	var out bytes.Buffer
	cmd := newRootCmd(&out, client.WithTokenStore(c.tokens))
	cmd.SetArgs([]string{"--config", c.configPath, "--api-url", c.baseURL, "login", "alice"})
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString("pw123456\n"))
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Logged in as alice")
}
