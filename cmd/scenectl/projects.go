package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				projects, err := a.client.Store.FetchProjects(cmd.Context())
				if err != nil {
					return err
				}
				return renderProjects(a.out, projects)
			},
		},
		&cobra.Command{
			Use:   "create <title>",
			Short: "Create a project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.client.Store.CreateProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Created project %q (%s)\n", p.Title, p.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <project-id>",
			Short: "Show a project and its scenes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.client.Store.FetchProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderProject(a.out, p)
			},
		},
		&cobra.Command{
			Use:   "rename <project-id> <title>",
			Short: "Rename a project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.client.Store.UpdateProject(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Renamed project %s to %q\n", p.ID, p.Title)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <project-id>",
			Short: "Delete a project and its scenes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.client.Store.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted project %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
