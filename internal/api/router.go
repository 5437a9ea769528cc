// Package api serves the wardrobe catalog over HTTP as JSON.
package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/omara/internal/catalog"
)

// Options configures the router.
type Options struct {
	// RequireImage makes item creation fail without a photo.
	RequireImage bool
	Logger       *slog.Logger
}

// NewRouter creates the router with all endpoints registered.
func NewRouter(svc *catalog.Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{Catalog: svc, RequireImage: opts.RequireImage, Log: logger}
	outfitsHandler := &OutfitsHandler{Catalog: svc, Log: logger}
	suggestionsHandler := &SuggestionsHandler{Catalog: svc, Log: logger}
	systemHandler := &SystemHandler{Catalog: svc, Log: logger}

	// Items.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("POST /api/items", itemsHandler.Create)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /api/items/{id}", itemsHandler.Update)
	mux.HandleFunc("DELETE /api/items/{id}", itemsHandler.Delete)
	mux.HandleFunc("PUT /api/items/{id}/image", itemsHandler.UploadImage)

	// Outfits.
	mux.HandleFunc("GET /api/outfits", outfitsHandler.List)
	mux.HandleFunc("POST /api/outfits", outfitsHandler.Create)
	mux.HandleFunc("GET /api/outfits/{id}", outfitsHandler.Get)
	mux.HandleFunc("PUT /api/outfits/{id}", outfitsHandler.Update)
	mux.HandleFunc("DELETE /api/outfits/{id}", outfitsHandler.Delete)

	// Suggestions.
	mux.HandleFunc("POST /api/suggestions", suggestionsHandler.Suggest)
	mux.HandleFunc("POST /api/suggestions/save", suggestionsHandler.Save)

	// Stored images and health.
	mux.HandleFunc("GET /uploads/{file}", systemHandler.Upload)
	mux.HandleFunc("GET /healthz", systemHandler.Health)

	return mux
}
