package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/foodmap/internal/feed"
	"github.com/erazemk/foodmap/internal/foods"
	"github.com/erazemk/foodmap/internal/form"
	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// OfferingsHandler handles the public feed and operator offering endpoints.
type OfferingsHandler struct {
	DB        *sql.DB
	Images    media.Store
	Extractor foods.Extractor
	Now       func() time.Time
}

type createOfferingRequest struct {
	LocationID  int64      `json:"location_id"`
	Location    string     `json:"location"`
	Timestamp   *time.Time `json:"timestamp"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ThreadID    *string    `json:"thread_id"`
	Recur       string     `json:"recur"`
	RecurEnd    *time.Time `json:"recur_end"`
	Tags        []string   `json:"tags"`
	// Image is base64 in JSON.
	Image []byte `json:"image"`
}

type addTagRequest struct {
	Tag string `json:"tag"`
}

func (h *OfferingsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Feed handles GET /offerings/: the offerings posted within the freshness
// window, grouped by location.
func (h *OfferingsHandler) Feed(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	from, to := feed.Window(now)

	offerings, err := store.ListActiveOfferings(r.Context(), h.DB, from, to)
	if err != nil {
		slog.Error("failed to list active offerings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list offerings")
		return
	}
	jsonResponse(w, http.StatusOK, feed.Build(now, offerings))
}

// Create handles POST /api/offerings. The location is given by id, by name
// or alias, or found in the title and description; without a title, one is
// made from the foods in the description.
func (h *OfferingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOfferingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if req.LocationID == 0 {
		loc, err := h.locate(ctx, &req)
		if err != nil {
			slog.Error("failed to look up location", "error", err)
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		switch {
		case loc != nil:
			req.LocationID = loc.ID
		case req.Location != "":
			jsonError(w, http.StatusNotFound, "location not found")
			return
		default:
			jsonError(w, http.StatusBadRequest, "location_id or location required")
			return
		}
	}

	recur, err := model.ParseRecurrence(req.Recur)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	o := &model.Offering{
		Timestamp:   h.now(),
		LocationID:  req.LocationID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		ThreadID:    req.ThreadID,
		Recur:       recur,
		RecurEnd:    req.RecurEnd,
		Tags:        req.Tags,
	}
	if req.Timestamp != nil {
		o.Timestamp = *req.Timestamp
	}
	if o.Title == "" {
		o.Title = form.Title(h.Extractor.Extract(ctx, o.Description))
		if o.Title == "" {
			jsonError(w, http.StatusBadRequest, "no foods found in description")
			return
		}
	}

	created, err := store.CreateOffering(ctx, h.DB, h.Images, o, req.Image)
	if err != nil {
		storeError(w, err, "create offering")
		return
	}

	slog.Info("offering created", "offering", created.ID, "location", created.LocationID, "title", created.Title)
	jsonResponse(w, http.StatusCreated, created)
}

// locate finds the location of a request that has no location_id. An
// explicit location is looked up by exact name, then through the aliases;
// otherwise the title and description are searched.
func (h *OfferingsHandler) locate(ctx context.Context, req *createOfferingRequest) (*model.Location, error) {
	if req.Location == "" {
		return store.ResolveLocation(ctx, h.DB, req.Title+"\n"+req.Description)
	}

	loc, err := store.GetLocationByName(ctx, h.DB, req.Location)
	if err != nil || loc != nil {
		return loc, err
	}
	return store.ResolveLocation(ctx, h.DB, req.Location)
}

// Get handles GET /api/offerings/{id}.
func (h *OfferingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	o, err := store.GetOffering(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get offering", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get offering")
		return
	}
	if o == nil {
		jsonError(w, http.StatusNotFound, "offering not found")
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

// Delete handles DELETE /api/offerings/{id}.
func (h *OfferingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := store.DeleteOffering(r.Context(), h.DB, h.Images, id); err != nil {
		storeError(w, err, "delete offering")
		return
	}

	slog.Info("offering deleted", "offering", id, "by", GetClaims(r.Context()).Username)
	w.WriteHeader(http.StatusNoContent)
}

// Retract handles DELETE /api/threads/{thread_id}, removing the offering
// that was posted from a mailing-list thread.
func (h *OfferingsHandler) Retract(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")

	found, err := store.DeleteOfferingByThread(r.Context(), h.DB, h.Images, threadID)
	if err != nil {
		slog.Error("failed to retract offering", "thread", threadID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to retract offering")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "offering not found")
		return
	}

	slog.Info("offering retracted", "thread", threadID)
	w.WriteHeader(http.StatusNoContent)
}

// AddTag handles POST /api/offerings/{id}/tags.
func (h *OfferingsHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tag, err := store.AddTag(r.Context(), h.DB, id, req.Tag)
	if err != nil {
		storeError(w, err, "tag offering")
		return
	}
	jsonResponse(w, http.StatusCreated, tag)
}
