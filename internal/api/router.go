package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/foodmap/internal/foods"
	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/sweep"
)

// NewRouter creates the API router with all endpoints registered. It serves
// the public feed under /offerings/ and everything else under /api/.
func NewRouter(db *sql.DB, images media.Store, extractor foods.Extractor, sweeper *sweep.Sweeper, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	locationsHandler := &LocationsHandler{DB: db, Images: images}
	offeringsHandler := &OfferingsHandler{DB: db, Images: images, Extractor: extractor}
	sweepHandler := &SweepHandler{DB: db, Sweeper: sweeper}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: map feed, locations, login.
	mux.HandleFunc("GET /offerings/{$}", offeringsHandler.Feed)
	mux.HandleFunc("GET /api/locations", locationsHandler.List)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Locations (operators).
	mux.Handle("POST /api/locations", authMW(http.HandlerFunc(locationsHandler.Create)))
	mux.Handle("DELETE /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Delete)))
	mux.Handle("GET /api/locations/{id}/aliases", authMW(http.HandlerFunc(locationsHandler.ListAliases)))
	mux.Handle("POST /api/locations/{id}/aliases", authMW(http.HandlerFunc(locationsHandler.AddAlias)))

	// Offerings (operators).
	mux.Handle("POST /api/offerings", authMW(http.HandlerFunc(offeringsHandler.Create)))
	mux.Handle("GET /api/offerings/{id}", authMW(http.HandlerFunc(offeringsHandler.Get)))
	mux.Handle("DELETE /api/offerings/{id}", authMW(http.HandlerFunc(offeringsHandler.Delete)))
	mux.Handle("POST /api/offerings/{id}/tags", authMW(http.HandlerFunc(offeringsHandler.AddTag)))
	mux.Handle("DELETE /api/threads/{thread_id}", authMW(http.HandlerFunc(offeringsHandler.Retract)))

	// Sweep (admin only).
	mux.Handle("GET /api/sweep", authMW(requireAdmin(http.HandlerFunc(sweepHandler.Status))))
	mux.Handle("POST /api/sweep", authMW(requireAdmin(http.HandlerFunc(sweepHandler.Run))))

	return mux
}
