package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/erazemk/foodmap/internal/foods"
	"github.com/erazemk/foodmap/internal/form"
	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	webembed "github.com/erazemk/foodmap/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"tagLabel": model.TagLabel,
		"selected": func(values url.Values, key, value string) bool {
			return slices.Contains(values[key], value)
		},
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	// Read layout.
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"index.html",
		"submit.html",
		"submitted.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given status code and data.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title string
	Error string
}

// SubmitData is passed to the submission form.
type SubmitData struct {
	PageData
	Locations   []model.Location
	Tags        []string
	Recurrences []model.Recurrence
	Values      url.Values
	Errors      form.Errors
}

// Images is the image storage the pages need: the offering store's
// collaborator plus read access for serving files.
type Images interface {
	media.Store
	Open(p string) (io.ReadSeekCloser, error)
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Images    Images
	Extractor foods.Extractor
	Templates *Templates
	JWTSecret string
	// Zone is the time zone naive form timestamps are read in.
	Zone *time.Location
}
