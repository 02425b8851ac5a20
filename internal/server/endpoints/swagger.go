package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/version"
)

// SwaggerEndpoint serves the OpenAPI document generated by swag from the
// first of SpecPaths that exists. Without a generated document it serves a
// route index built from the registry so the API stays discoverable.
type SwaggerEndpoint struct {
	SpecPaths []string
	Routes    func() []api.Route
}

func (e *SwaggerEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/swagger.json", e.handler
}

func (e *SwaggerEndpoint) RequiresInit() bool { return false }

func (e *SwaggerEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	for _, p := range e.SpecPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}
	if e.Routes == nil {
		writeError(w, http.StatusNotFound, "swagger.json not found")
		return
	}
	writeJSON(w, http.StatusOK, routeIndex(e.Routes()))
}

// routeIndex renders routes as a minimal Swagger 2.0 document: paths and
// operations grouped by tag, without schemas.
func routeIndex(routes []api.Route) map[string]any {
	paths := make(map[string]map[string]any)
	for _, rt := range routes {
		ops, ok := paths[rt.Path]
		if !ok {
			ops = make(map[string]any)
			paths[rt.Path] = ops
		}
		tag := rt.Group
		if tag == "" {
			tag = strings.SplitN(strings.TrimPrefix(rt.Path, "/"), "/", 2)[0]
		}
		ops[strings.ToLower(rt.Method)] = map[string]any{
			"tags":      []string{tag},
			"responses": map[string]any{"200": map[string]string{"description": "OK"}},
		}
	}
	return map[string]any{
		"swagger":  "2.0",
		"info":     map[string]string{"title": "Library API", "version": version.GitRelease},
		"basePath": "/",
		"paths":    paths,
	}
}

func (e *SwaggerEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		outputFile string
		pathsOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "swagger",
		Short: "Fetch the OpenAPI document from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			var raw map[string]any
			if err := client.Get(cmd.Context(), "/swagger.json", &raw); err != nil {
				return err
			}
			if pathsOnly {
				for _, line := range operationLines(raw) {
					fmt.Println(line)
				}
				return nil
			}
			if outputFile != "" {
				return api.OutputToFile(raw, outputFile)
			}
			return api.Output(raw)
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the document to this file")
	cmd.Flags().BoolVar(&pathsOnly, "paths", false, "Only list methods and paths")
	return cmd
}

// operationLines lists "METHOD path" for every operation in doc, sorted.
func operationLines(doc map[string]any) []string {
	paths, _ := doc["paths"].(map[string]any)
	var lines []string
	for path, v := range paths {
		ops, _ := v.(map[string]any)
		for method := range ops {
			lines = append(lines, fmt.Sprintf("%-7s %s", strings.ToUpper(method), path))
		}
	}
	sort.Strings(lines)
	return lines
}

// SwaggerUIEndpoint serves Swagger UI pointed at /swagger.json.
type SwaggerUIEndpoint struct{}

func (e *SwaggerUIEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/swagger", e.handler
}

func (e *SwaggerUIEndpoint) RequiresInit() bool { return false }

const swaggerUIPage = `<!DOCTYPE html>
<html>
<head>
  <title>%[1]s</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: '%[2]s', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`

func (e *SwaggerUIEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, swaggerUIPage, "Library API "+version.GitRelease, "/swagger.json")
}

func (e *SwaggerUIEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:    "swagger-ui",
		Hidden: true,
		Short:  "Print the Swagger UI address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("Open in browser:", getServerURL()+"/swagger")
			return nil
		},
	}
}

// swaggerSpecPaths lists where swagger.json is looked for: the configured
// path, then docs/swagger next to the executable, then the working
// directory.
func swaggerSpecPaths(configured string) []string {
	var paths []string
	if configured != "" {
		paths = append(paths, configured)
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "docs", "swagger", "swagger.json"))
	}
	return append(paths, filepath.Join("docs", "swagger", "swagger.json"))
}
