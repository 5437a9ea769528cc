package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/omara/internal/catalog"
	"github.com/erazemk/omara/internal/suggest"
)

// SuggestionsHandler handles the outfit suggestion endpoints.
type SuggestionsHandler struct {
	Catalog *catalog.Service
	Log     *slog.Logger
}

// Suggest handles POST /api/suggestions.
func (h *SuggestionsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.Catalog.SuggestOutfits(r.Context())
	if err != nil {
		writeError(w, h.Log, err, "failed to get suggestions")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"outfits": suggestions})
}

// Save handles POST /api/suggestions/save, storing a suggestion as an outfit.
func (h *SuggestionsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req suggest.Suggestion
	if err := decodeJSON(w, r, &req); err != nil {
		bodyError(w, err)
		return
	}

	outfit, err := h.Catalog.SaveSuggestion(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err, "failed to save suggestion")
		return
	}
	jsonResponse(w, http.StatusCreated, outfit)
}
