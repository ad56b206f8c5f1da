package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// pinger is implemented by token stores backed by a server
type pinger interface {
	Ping(ctx context.Context) error
}

// readPassword takes the flag value, or the first line of stdin
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

// sessionError prefers the message the session store recorded
func sessionError(a *app, err error) error {
	if msg := a.client.Session.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func newLoginCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			if err := a.client.Session.Login(cmd.Context(), args[0], pw); err != nil {
				return sessionError(a, err)
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <username> <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			user, err := a.client.Session.Register(cmd.Context(), args[0], args[1], pw)
			if err != nil {
				return sessionError(a, err)
			}
			fmt.Fprintf(a.out, "Registered %s <%s>\n", user.Username, user.Email)
			fmt.Fprintf(a.out, "Logged in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show the session state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticated := a.client.Session.CheckAuth(cmd.Context())
			state := "no"
			if authenticated {
				state = "yes"
			}
			fmt.Fprintf(a.out, "API:           %s\n", a.client.API.BaseURL())
			fmt.Fprintf(a.out, "Authenticated: %s\n", state)
			if p, ok := a.client.Tokens.(pinger); ok {
				health := "ok"
				if err := p.Ping(cmd.Context()); err != nil {
					health = "unreachable (" + err.Error() + ")"
				}
				fmt.Fprintf(a.out, "Token store:   %s\n", health)
			}
			return nil
		},
	}
}
