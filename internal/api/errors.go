package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/foodmap/internal/imaging"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// storeError maps a store error to a response. Domain errors are the
// caller's fault; constraint violations mean the row conflicts with one
// already stored.
func storeError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, model.ErrOfferingNotFound):
		jsonError(w, http.StatusNotFound, "offering not found")
	case errors.Is(err, model.ErrLocationNotFound):
		jsonError(w, http.StatusNotFound, "location not found")
	case errors.Is(err, model.ErrFieldLength),
		errors.Is(err, model.ErrInvalidCoordinates),
		errors.Is(err, model.ErrThreadIDLength),
		errors.Is(err, model.ErrUnknownTag),
		errors.Is(err, model.ErrRecurrence),
		errors.Is(err, model.ErrInvalidAlias),
		errors.Is(err, imaging.ErrUnsupported),
		errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusBadRequest, err.Error())
	case store.IsConstraintViolation(err):
		jsonError(w, http.StatusConflict, "conflicts with an existing record")
	default:
		slog.Error("failed to "+action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
