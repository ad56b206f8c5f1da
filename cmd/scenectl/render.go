package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatTime(t models.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderProjects(w io.Writer, projects []models.Project) error {
	if len(projects) == 0 {
		_, err := fmt.Fprintln(w, "No projects yet.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Title, formatTime(p.CreatedAt))
	}
	return tw.Flush()
}

func renderScenes(w io.Writer, scenes []models.Scene) error {
	if len(scenes) == 0 {
		_, err := fmt.Fprintln(w, "No scenes yet.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ORDER\tID\tSTATUS\tPROMPT\tVIDEO")
	for _, s := range scenes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Order, s.ID, s.Status, shorten(s.Prompt, 48), orDash(s.VideoURL))
	}
	return tw.Flush()
}

func renderProject(w io.Writer, p *models.ProjectWithScenes) error {
	fmt.Fprintf(w, "Project: %s\n", p.Title)
	fmt.Fprintf(w, "ID:      %s\n", p.ID)
	fmt.Fprintf(w, "Created: %s\n\n", formatTime(p.CreatedAt))
	return renderScenes(w, p.SortedScenes())
}

func renderScene(w io.Writer, s *models.SceneDetail, withCode bool) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	fmt.Fprintf(tw, "Project:\t%s\n", s.ProjectID)
	fmt.Fprintf(tw, "Order:\t%d\n", s.Order)
	fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	fmt.Fprintf(tw, "Prompt:\t%s\n", s.Prompt)
	fmt.Fprintf(tw, "Video:\t%s\n", orDash(s.VideoURL))
	fmt.Fprintf(tw, "Created:\t%s\n", formatTime(s.CreatedAt))
	if err := tw.Flush(); err != nil {
		return err
	}
	if withCode && s.Code != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(s.Code, "\n"))
	}
	return nil
}
