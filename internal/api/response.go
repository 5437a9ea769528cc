package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/suggest"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// maxJSONBody bounds JSON request bodies. It leaves room for an inline
// base64 image in imageUrl.
const maxJSONBody = 8 << 20

// decodeJSON decodes a JSON request body into the given target. Bodies over
// maxJSONBody fail with model.ErrPayloadTooLarge.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %w", model.ErrPayloadTooLarge, err)
		}
		return err
	}
	return nil
}

// bodyError writes the response for a request body decodeJSON rejected.
func bodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrPayloadTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	jsonError(w, http.StatusBadRequest, "invalid request body")
}

// writeError maps an error from the catalog to a status code and message.
// Unexpected errors are logged and reported as fallback.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, model.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, fallback+": not found")
	case errors.Is(err, model.ErrDuplicateKey):
		jsonError(w, http.StatusConflict, fallback+": already exists")
	case errors.Is(err, model.ErrUnsupportedMediaType):
		jsonError(w, http.StatusUnsupportedMediaType, "image must be JPEG, PNG, WebP or GIF")
	case errors.Is(err, model.ErrPayloadTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "image must be at most 5 MB")
	case errors.Is(err, model.ErrStorageUnavailable):
		logger.Error("storage unavailable", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, suggest.ErrNotEnoughItems):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, suggest.ErrNotConfigured):
		jsonError(w, http.StatusServiceUnavailable, "suggestions are not configured")
	case errors.Is(err, suggest.ErrInvalidResponse):
		logger.Warn("suggestion failed", "error", err)
		jsonError(w, http.StatusBadGateway, "the model returned an invalid response, try again")
	default:
		logger.Error(fallback, "error", err)
		jsonError(w, http.StatusInternalServerError, fallback)
	}
}
