package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// LocationsHandler handles location endpoints.
type LocationsHandler struct {
	DB     *sql.DB
	Images media.Store
}

type createLocationRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type addAliasRequest struct {
	Kind    string `json:"kind"`
	Pattern string `json:"pattern"`
}

// List handles GET /api/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := store.ListLocations(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list locations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}

// Create handles POST /api/locations.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, err := store.CreateLocation(r.Context(), h.DB, req.Name, req.Lat, req.Lng)
	if err != nil {
		storeError(w, err, "create location")
		return
	}

	slog.Info("location created", "location", loc.Name, "id", loc.ID, "by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusCreated, loc)
}

// Delete handles DELETE /api/locations/{id}. Offerings at the location and
// their images go with it.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := store.DeleteLocation(r.Context(), h.DB, h.Images, id); err != nil {
		storeError(w, err, "delete location")
		return
	}

	slog.Info("location deleted", "location", id, "by", GetClaims(r.Context()).Username)
	w.WriteHeader(http.StatusNoContent)
}

// ListAliases handles GET /api/locations/{id}/aliases.
func (h *LocationsHandler) ListAliases(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	aliases, err := store.ListLocationAliases(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to list location aliases", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list aliases")
		return
	}
	if aliases == nil {
		aliases = []model.LocationAlias{}
	}
	jsonResponse(w, http.StatusOK, aliases)
}

// AddAlias handles POST /api/locations/{id}/aliases. Kind defaults to text.
func (h *LocationsHandler) AddAlias(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addAliasRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = model.AliasText
	}

	alias, err := store.AddLocationAlias(r.Context(), h.DB, id, req.Kind, req.Pattern)
	if err != nil {
		storeError(w, err, "add location alias")
		return
	}

	slog.Info("location alias added", "location", id, "kind", alias.Kind, "pattern", alias.Pattern)
	jsonResponse(w, http.StatusCreated, alias)
}
