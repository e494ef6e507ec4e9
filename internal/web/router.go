package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/foodmap/internal/foods"
	webembed "github.com/erazemk/foodmap/web"
)

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, images Images, extractor foods.Extractor, jwtSecret string, zone *time.Location) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Images:    images,
		Extractor: extractor,
		Templates: templates,
		JWTSecret: jwtSecret,
		Zone:      zone,
	}

	mux := http.NewServeMux()

	// Static assets and stored images.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))
	mux.HandleFunc("GET /media/{path...}", s.MediaFile)

	// Map shell.
	mux.HandleFunc("GET /{$}", s.IndexPage)

	// Submission.
	mux.Handle("GET /submit", NoStore(http.HandlerFunc(s.SubmitPage)))
	mux.Handle("POST /submit", NoStore(http.HandlerFunc(s.SubmitOffering)))
	mux.Handle("GET /submitted", NoStore(http.HandlerFunc(s.SubmittedPage)))

	return mux, nil
}
