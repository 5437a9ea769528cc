package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/omara/internal/catalog"
	"github.com/erazemk/omara/internal/media"
)

// SystemHandler serves stored images and the health check.
type SystemHandler struct {
	Catalog *catalog.Service
	Log     *slog.Logger
}

// Upload handles GET /uploads/{file} for images kept on disk.
func (h *SystemHandler) Upload(w http.ResponseWriter, r *http.Request) {
	images := h.Catalog.Images()
	if images == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	data, mimeType, err := images.Open(r.Context(), "/uploads/"+r.PathValue("file"))
	if errors.Is(err, media.ErrUnknownReference) || errors.Is(err, fs.ErrNotExist) {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	if err != nil {
		writeError(w, h.Log, err, "failed to get image")
		return
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Health handles GET /healthz.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Catalog.Ping(ctx); err != nil {
		writeError(w, h.Log, err, "health check failed")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
