package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/client"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/config"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/store"
)

// app carries global flags and the client built for one invocation
type app struct {
	configPath string
	apiURL     string
	logLevel   string

	out    io.Writer
	opts   []client.Option
	client *client.Client
}

func newRootCmd(out io.Writer, opts ...client.Option) *cobra.Command {
	a := &app{out: out, opts: opts}

	root := &cobra.Command{
		Use:           "scenectl",
		Short:         "Generate animated scenes from text prompts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", os.Getenv("CONFIG_PATH"), "path to config file")
	flags.StringVar(&a.apiURL, "api-url", "", "backend base URL (overrides "+config.EnvAPIURL+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newProjectsCmd(a),
		newScenesCmd(a),
		newRefineCmd(a),
		newWatchCmd(a),
	)
	closeAfterRun(root, a)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	} else if level == "info" {
		// keep the terminal quiet unless asked
		level = "warn"
	}
	var logger *logging.Logger
	if cfg.Logging.Format == "console" && (cfg.Logging.Output == "" || cfg.Logging.Output == "stderr") {
		logger = logging.NewConsoleLogger(level)
	} else {
		logger, err = logging.NewLogger(logging.Config{
			Level:  level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}

	c, err := client.New(cfg, logger, a.opts...)
	if err != nil {
		return err
	}
	a.client = c
	return nil
}

// closeAfterRun makes every runnable command close the client when it
// returns. Cobra skips post-run hooks after a failed RunE.
func closeAfterRun(cmd *cobra.Command, a *app) {
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, a)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := a.teardown(); err == nil {
				err = closeErr
			}
		}()
		return run(cmd, args)
	}
}

func (a *app) teardown() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// describeError renders a failure for the terminal
func describeError(err error) string {
	var actionErr *store.ActionError
	msg := err.Error()
	if errors.As(err, &actionErr) {
		msg = actionErr.Message
	} else if api.StatusCode(err) != 0 {
		msg = api.ErrorMessage(err)
	}

	switch {
	case api.IsNotFound(err):
		return "not found: " + msg
	case api.IsUnauthorized(err):
		return msg + " (run `scenectl login`)"
	}
	return msg
}
