package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/erazemk/omara/internal/catalog"
	"github.com/erazemk/omara/internal/imaging"
	"github.com/erazemk/omara/internal/media"
	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/query"
)

// maxFormOverhead is the room left for text fields next to the image in a
// multipart body.
const maxFormOverhead = 1 << 20

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	Catalog      *catalog.Service
	RequireImage bool
	Log          *slog.Logger
}

type itemRequest struct {
	Name     string         `json:"name"`
	Category model.Category `json:"category"`
	Color    string         `json:"color"`
	Brand    string         `json:"brand"`
	Season   model.Season   `json:"season"`
	Fit      model.Fit      `json:"fit"`
	Material string         `json:"material"`
	Tags     []string       `json:"tags"`
	ImageURL string         `json:"imageUrl"`
}

func (req itemRequest) item() model.Item {
	return model.Item{
		Name:     req.Name,
		Category: req.Category,
		Color:    req.Color,
		Brand:    req.Brand,
		Season:   req.Season,
		Fit:      req.Fit,
		Material: req.Material,
		Tags:     req.Tags,
		ImageURL: req.ImageURL,
	}
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.Filter{
		Category: model.Category(strings.ToUpper(strings.TrimSpace(q.Get("category")))),
		Season:   model.Season(strings.ToUpper(strings.TrimSpace(q.Get("season")))),
		Color:    strings.TrimSpace(q.Get("color")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if f.Category != "" && !slices.Contains(model.Categories, f.Category) {
		writeError(w, h.Log, &model.ValidationError{Field: "category", Message: "unknown category"}, "failed to list items")
		return
	}
	if f.Season != "" && !slices.Contains(model.Seasons, f.Season) {
		writeError(w, h.Log, &model.ValidationError{Field: "season", Message: "unknown season"}, "failed to list items")
		return
	}

	items, err := h.Catalog.ListItems(r.Context(), f)
	if err != nil {
		writeError(w, h.Log, err, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items. It accepts a multipart form with an
// "image" file and comma-separated tags, or a JSON body.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.Item
	var upload *media.Upload

	if isMultipart(r) {
		form, up, err := h.readForm(w, r)
		if err != nil {
			writeError(w, h.Log, err, "failed to create item")
			return
		}
		in = form
		upload = up
	} else {
		var req itemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			bodyError(w, err)
			return
		}
		in = req.item()
	}

	if h.RequireImage && upload == nil && strings.TrimSpace(in.ImageURL) == "" {
		writeError(w, h.Log, &model.ValidationError{Field: "image", Message: "image is required"}, "failed to create item")
		return
	}

	item, err := h.Catalog.CreateItem(r.Context(), in, upload)
	if err != nil {
		writeError(w, h.Log, err, "failed to create item")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.Log, err, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}. Only fields present in the body change.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		bodyError(w, err)
		return
	}

	item, err := h.Catalog.UpdateItem(r.Context(), r.PathValue("id"), patch, nil)
	if err != nil {
		writeError(w, h.Log, err, "failed to update item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.Log, err, "failed to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		jsonError(w, http.StatusBadRequest, "multipart form with an image file required")
		return
	}
	_, upload, err := h.readForm(w, r)
	if err != nil {
		writeError(w, h.Log, err, "failed to upload image")
		return
	}
	if upload == nil {
		writeError(w, h.Log, &model.ValidationError{Field: "image", Message: "image is required"}, "failed to upload image")
		return
	}

	item, err := h.Catalog.UpdateItem(r.Context(), r.PathValue("id"), model.ItemPatch{}, upload)
	if err != nil {
		writeError(w, h.Log, err, "failed to upload image")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// readForm parses a multipart item form. The upload is nil when no file was
// sent.
func (h *ItemsHandler) readForm(w http.ResponseWriter, r *http.Request) (model.Item, *media.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+maxFormOverhead)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Item{}, nil, model.ErrPayloadTooLarge
		}
		return model.Item{}, nil, &model.ValidationError{Message: "invalid multipart form"}
	}

	in := model.Item{
		Name:     r.FormValue("name"),
		Category: model.Category(strings.ToUpper(strings.TrimSpace(r.FormValue("category")))),
		Color:    r.FormValue("color"),
		Brand:    r.FormValue("brand"),
		Season:   model.Season(strings.ToUpper(strings.TrimSpace(r.FormValue("season")))),
		Fit:      model.Fit(strings.ToUpper(strings.TrimSpace(r.FormValue("fit")))),
		Material: r.FormValue("material"),
		Tags:     model.ParseTagList(r.FormValue("tags")),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, &model.ValidationError{Field: "image", Message: "invalid image file"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return in, nil, err
	}
	return in, &media.Upload{
		Data: data,
		MIME: header.Header.Get("Content-Type"),
		Size: header.Size,
	}, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}
