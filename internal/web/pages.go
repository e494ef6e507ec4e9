package web

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/erazemk/foodmap/internal/auth"
	"github.com/erazemk/foodmap/internal/form"
	"github.com/erazemk/foodmap/internal/imaging"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// FieldImage is the multipart field carrying an optional photo.
const FieldImage = "image"

// Messages for failures found when saving rather than when parsing.
const (
	msgInvalidImage = "Upload a JPEG, PNG or WebP image of at most 8 MB."
	msgRecurrence   = "A repeating offering needs an end date after its start time."
	msgNotSaved     = "Your offering could not be saved. Please try again."
)

// formMemory is how much of a multipart body is kept in memory; the rest
// spills to temporary files.
const formMemory = 1 << 20

// IndexPage handles GET /.
func (s *Server) IndexPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, http.StatusOK, "index.html", &PageData{Title: "Free Food Map"})
}

// SubmitPage handles GET /submit.
func (s *Server) SubmitPage(w http.ResponseWriter, r *http.Request) {
	s.renderSubmit(w, r, http.StatusOK, &SubmitData{})
}

// SubmitOffering handles POST /submit. The body is form-encoded, or
// multipart when it carries a photo.
func (s *Server) SubmitOffering(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+formMemory)

	upload, err := s.parseSubmission(r)
	if err != nil {
		slog.Warn("unreadable submission", "error", err, "remote", r.RemoteAddr)
		s.renderSubmit(w, r, http.StatusBadRequest, &SubmitData{
			PageData: PageData{Error: "We could not read your submission. Images must be at most 8 MB."},
		})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	data := &SubmitData{Values: r.PostForm}
	cleaned, errs := form.ParseOffering(r.Context(), r.PostForm, form.Deps{
		DB:        s.DB,
		Extractor: s.Extractor,
		Location:  s.Zone,
	})
	if errs != nil {
		data.Errors = errs
		s.renderSubmit(w, r, http.StatusBadRequest, data)
		return
	}

	created, err := store.CreateOffering(r.Context(), s.DB, s.Images, cleaned.Offering(), upload)
	if err != nil {
		status, errs := submitError(err)
		if status == http.StatusInternalServerError {
			slog.Error("failed to save offering", "error", err)
			data.Error = msgNotSaved
		}
		data.Errors = errs
		s.renderSubmit(w, r, status, data)
		return
	}

	token, _, err := auth.IssueReceipt(s.JWTSecret, created.ID)
	if err != nil {
		slog.Error("failed to issue receipt", "offering", created.ID, "error", err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	slog.Info("offering submitted", "offering", created.ID, "location", created.Location.Name, "title", created.Title)
	setReceiptCookie(w, token)
	http.Redirect(w, r, "/submitted", http.StatusSeeOther)
}

// SubmittedPage handles GET /submitted. It is shown once per accepted
// submission; without a fresh receipt it does not exist.
func (s *Server) SubmittedPage(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(receiptCookie)
	if err != nil || cookie.Value == "" {
		http.NotFound(w, r)
		return
	}
	clearReceiptCookie(w)

	claims, err := auth.ValidateReceipt(s.JWTSecret, cookie.Value)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	fresh, err := store.ConsumeReceipt(r.Context(), s.DB, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		slog.Error("failed to consume receipt", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !fresh {
		http.NotFound(w, r)
		return
	}

	s.Templates.Render(w, http.StatusOK, "submitted.html", &PageData{Title: "Thanks!"})
}

// MediaFile handles GET /media/{path...}.
func (s *Server) MediaFile(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	f, err := s.Images.Open(p)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, path.Base(p), time.Time{}, f)
}

func (s *Server) parseSubmission(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, r.ParseForm()
	}

	if err := r.ParseMultipartForm(formMemory); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile(FieldImage)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, imaging.MaxUploadSize+1))
}

func (s *Server) renderSubmit(w http.ResponseWriter, r *http.Request, status int, data *SubmitData) {
	locations, err := store.ListLocations(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list locations", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data.Title = "Submit an Offering"
	data.Locations = locations
	data.Tags = model.Tags()
	data.Recurrences = []model.Recurrence{model.RecurDaily, model.RecurWeekly, model.RecurMonthly}
	s.Templates.Render(w, status, "submit.html", data)
}

// submitError sorts a failed save into the field it concerns.
func submitError(err error) (int, form.Errors) {
	switch {
	case errors.Is(err, imaging.ErrUnsupported), errors.Is(err, imaging.ErrTooLarge):
		return http.StatusBadRequest, form.Errors{FieldImage: msgInvalidImage}
	case errors.Is(err, model.ErrRecurrence):
		return http.StatusBadRequest, form.Errors{form.FieldRecurEnd: msgRecurrence}
	case errors.Is(err, model.ErrLocationNotFound):
		return http.StatusBadRequest, form.Errors{form.FieldLocation: form.MsgInvalidChoice}
	case errors.Is(err, model.ErrUnknownTag):
		return http.StatusBadRequest, form.Errors{form.FieldTags: form.MsgInvalidChoice}
	}
	return http.StatusInternalServerError, nil
}
