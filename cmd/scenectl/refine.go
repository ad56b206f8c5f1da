package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRefineCmd(a *app) *cobra.Command {
	var title, prompt string

	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Improve a prompt, or suggest one from a project title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			refined, err := a.client.Store.RefinePrompt(cmd.Context(), title, prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, refined)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to refine; empty suggests one from the title")
	return cmd
}
