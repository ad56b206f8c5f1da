// Package routes builds and parses the client's view paths.
package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Static paths
const (
	Home       = "/"
	Login      = "/login"
	Register   = "/register"
	Dashboard  = "/dashboard"
	Projects   = "/projects"
	NewProject = "/projects/new"
)

// ErrUnknownRoute is returned by Parse for paths no view handles
var ErrUnknownRoute = errors.New("unknown route")

// Kind identifies a view
type Kind int

// Kind constants
const (
	KindHome Kind = iota
	KindLogin
	KindRegister
	KindDashboard
	KindProjects
	KindNewProject
	KindProjectDetail
	KindSceneDetail
)

func (k Kind) String() string {
	switch k {
	case KindHome:
		return "home"
	case KindLogin:
		return "login"
	case KindRegister:
		return "register"
	case KindDashboard:
		return "dashboard"
	case KindProjects:
		return "projects"
	case KindNewProject:
		return "new-project"
	case KindProjectDetail:
		return "project-detail"
	case KindSceneDetail:
		return "scene-detail"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Route is a parsed view path
type Route struct {
	Kind      Kind
	ProjectID string
	SceneID   string
}

// ProjectDetail returns the path of a project view
func ProjectDetail(projectID string) string {
	return Projects + "/" + url.PathEscape(projectID)
}

// SceneDetail returns the path of a scene view
func SceneDetail(projectID, sceneID string) string {
	return ProjectDetail(projectID) + "/scenes/" + url.PathEscape(sceneID)
}

// Path renders the route back to a path
func (r Route) Path() string {
	switch r.Kind {
	case KindLogin:
		return Login
	case KindRegister:
		return Register
	case KindDashboard:
		return Dashboard
	case KindProjects:
		return Projects
	case KindNewProject:
		return NewProject
	case KindProjectDetail:
		return ProjectDetail(r.ProjectID)
	case KindSceneDetail:
		return SceneDetail(r.ProjectID, r.SceneID)
	default:
		return Home
	}
}

// RequiresAuth reports whether the view is only shown to logged-in users
func (r Route) RequiresAuth() bool {
	switch r.Kind {
	case KindHome, KindLogin, KindRegister:
		return false
	default:
		return true
	}
}

// Resolve follows redirects: the home page shows the dashboard
func (r Route) Resolve() Route {
	if r.Kind == KindHome {
		return Route{Kind: KindDashboard}
	}
	return r
}

// Parse maps a path to a route. Query strings, fragments and a trailing
// slash are ignored.
func Parse(path string) (Route, error) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == Home {
		return Route{Kind: KindHome}, nil
	}
	if !strings.HasPrefix(path, "/") {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		s, err := url.PathUnescape(seg)
		if err != nil || s == "" {
			return Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
		}
		segments[i] = s
	}

	switch len(segments) {
	case 1:
		switch segments[0] {
		case "login":
			return Route{Kind: KindLogin}, nil
		case "register":
			return Route{Kind: KindRegister}, nil
		case "dashboard":
			return Route{Kind: KindDashboard}, nil
		case "projects":
			return Route{Kind: KindProjects}, nil
		}
	case 2:
		if segments[0] == "projects" {
			if segments[1] == "new" {
				return Route{Kind: KindNewProject}, nil
			}
			return Route{Kind: KindProjectDetail, ProjectID: segments[1]}, nil
		}
	case 4:
		if segments[0] == "projects" && segments[2] == "scenes" {
			return Route{Kind: KindSceneDetail, ProjectID: segments[1], SceneID: segments[3]}, nil
		}
	}

	return Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
}
