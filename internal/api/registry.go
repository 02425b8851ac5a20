package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one library operation exposed both as an HTTP route and as a
// CLI command that calls that route on a running server.
type Endpoint interface {
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the route must wait for the cache index
	// to be rebuilt before serving.
	RequiresInit() bool

	// Command builds the client command. getServerURL is evaluated when the
	// command runs, after flags are parsed.
	Command(getServerURL func() string) *cobra.Command
}

// Route describes a registered endpoint.
type Route struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	Group        string `json:"group,omitempty"`
	RequiresInit bool   `json:"requires_init"`
}

type group struct {
	name  string
	short string
}

type registration struct {
	ep    Endpoint
	group string
}

// Registry keeps endpoints in registration order along with the command
// group each belongs to. Ungrouped endpoints become top-level commands.
type Registry struct {
	entries []registration
	groups  []group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds ungrouped endpoints.
func (r *Registry) Register(eps ...Endpoint) {
	for _, ep := range eps {
		r.entries = append(r.entries, registration{ep: ep})
	}
}

// RegisterGroup adds endpoints whose commands live under a "name"
// subcommand. Registering the same name again appends to the group.
func (r *Registry) RegisterGroup(name, short string, eps ...Endpoint) {
	known := false
	for _, g := range r.groups {
		if g.name == name {
			known = true
			break
		}
	}
	if !known {
		r.groups = append(r.groups, group{name: name, short: short})
	}
	for _, ep := range eps {
		r.entries = append(r.entries, registration{ep: ep, group: name})
	}
}

// RegisterRoutes mounts every route on mux. Routes that require
// initialization are wrapped with initMiddleware.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, e := range r.entries {
		method, path, handler := e.ep.Route()
		if e.ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Routes lists the registered routes in registration order.
func (r *Registry) Routes() []Route {
	routes := make([]Route, 0, len(r.entries))
	for _, e := range r.entries {
		method, path, _ := e.ep.Route()
		routes = append(routes, Route{
			Method:       method,
			Path:         path,
			Group:        e.group,
			RequiresInit: e.ep.RequiresInit(),
		})
	}
	return routes
}

// Commands builds the client command tree: ungrouped commands first, then
// one parent command per group. Endpoints without a command are skipped.
func (r *Registry) Commands(getServerURL func() string) []*cobra.Command {
	parents := make(map[string]*cobra.Command, len(r.groups))
	var out []*cobra.Command
	for _, e := range r.entries {
		if e.group != "" {
			continue
		}
		if cmd := e.ep.Command(getServerURL); cmd != nil {
			out = append(out, cmd)
		}
	}
	for _, g := range r.groups {
		parent := &cobra.Command{Use: g.name, Short: g.short}
		parents[g.name] = parent
		out = append(out, parent)
	}
	for _, e := range r.entries {
		if e.group == "" {
			continue
		}
		if cmd := e.ep.Command(getServerURL); cmd != nil {
			parents[e.group].AddCommand(cmd)
		}
	}
	return out
}
