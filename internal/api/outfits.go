package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/omara/internal/catalog"
	"github.com/erazemk/omara/internal/model"
)

// OutfitsHandler handles outfit CRUD endpoints.
type OutfitsHandler struct {
	Catalog *catalog.Service
	Log     *slog.Logger
}

type createOutfitRequest struct {
	Name    string       `json:"name"`
	Tags    []string     `json:"tags"`
	Season  model.Season `json:"season"`
	Notes   string       `json:"notes"`
	ItemIDs []string     `json:"itemIds"`
}

// List handles GET /api/outfits.
func (h *OutfitsHandler) List(w http.ResponseWriter, r *http.Request) {
	outfits, err := h.Catalog.ListOutfits(r.Context())
	if err != nil {
		writeError(w, h.Log, err, "failed to list outfits")
		return
	}
	jsonResponse(w, http.StatusOK, outfits)
}

// Create handles POST /api/outfits.
func (h *OutfitsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOutfitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		bodyError(w, err)
		return
	}

	outfit, err := h.Catalog.CreateOutfit(r.Context(), model.Outfit{
		Name:   req.Name,
		Tags:   req.Tags,
		Season: req.Season,
		Notes:  req.Notes,
	}, req.ItemIDs)
	if err != nil {
		writeError(w, h.Log, err, "failed to create outfit")
		return
	}
	jsonResponse(w, http.StatusCreated, outfit)
}

// Get handles GET /api/outfits/{id}.
func (h *OutfitsHandler) Get(w http.ResponseWriter, r *http.Request) {
	outfit, err := h.Catalog.GetOutfit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.Log, err, "failed to get outfit")
		return
	}
	if outfit == nil {
		jsonError(w, http.StatusNotFound, "outfit not found")
		return
	}
	jsonResponse(w, http.StatusOK, outfit)
}

// Update handles PUT /api/outfits/{id}. An "itemIds" array replaces the
// outfit's items.
func (h *OutfitsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.OutfitPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		bodyError(w, err)
		return
	}

	outfit, err := h.Catalog.UpdateOutfit(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, h.Log, err, "failed to update outfit")
		return
	}
	jsonResponse(w, http.StatusOK, outfit)
}

// Delete handles DELETE /api/outfits/{id}.
func (h *OutfitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteOutfit(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.Log, err, "failed to delete outfit")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "outfit deleted"})
}
