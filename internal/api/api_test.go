package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/omara/internal/catalog"
	"github.com/erazemk/omara/internal/db"
	"github.com/erazemk/omara/internal/imaging"
	"github.com/erazemk/omara/internal/media"
	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/store"
	"github.com/erazemk/omara/internal/suggest"
)

type stubSuggester struct {
	out []suggest.Suggestion
	err error
}

func (s *stubSuggester) Suggest(context.Context, []suggest.CatalogItem) ([]suggest.Suggestion, error) {
	return s.out, s.err
}

func setupTestServer(t *testing.T, requireImage bool) (*httptest.Server, *stubSuggester) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	disk, err := media.NewDiskStore(filepath.Join(t.TempDir(), "uploads"), "/uploads/")
	require.NoError(t, err)

	stub := &stubSuggester{}
	svc := catalog.NewService(store.New(db.NewTestDB(t), logger), media.NewResolver(disk, logger), stub, logger)

	server := httptest.NewServer(LoggingMiddleware(logger, NewRouter(svc, Options{RequireImage: requireImage, Logger: logger})))
	t.Cleanup(server.Close)
	return server, stub
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	img.Set(3, 3, color.RGBA{0, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a form with the given fields and, when data is
// non-nil, an "image" part declared as mimeType.
func multipartRequest(t *testing.T, method, url string, fields map[string]string, data []byte, mimeType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="photo"`)
		h.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func send(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateItemMultipartFlow(t *testing.T) {
	server, _ := setupTestServer(t, true)

	fields := map[string]string{
		"name":     "Denim Jacket",
		"category": "outerwear",
		"color":    "Blue",
		"season":   "FALL",
		"tags":     "casual, layering,,",
	}
	resp := send(t, multipartRequest(t, "POST", server.URL+"/api/items", fields, pngBytes(t), "image/png"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decode[model.Item](t, resp)
	assert.Equal(t, model.CategoryOuterwear, item.Category)
	assert.Equal(t, []string{"casual", "layering"}, item.Tags)
	require.True(t, strings.HasPrefix(item.ImageURL, "/uploads/"))

	// The stored image is served back.
	img := doJSON(t, "GET", server.URL+item.ImageURL, nil)
	require.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	data, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), data)

	got := doJSON(t, "GET", server.URL+"/api/items/"+item.ID, nil)
	require.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, item.ID, decode[model.Item](t, got).ID)
}

func TestCreateItemRequiresImage(t *testing.T) {
	server, _ := setupTestServer(t, true)

	resp := doJSON(t, "POST", server.URL+"/api/items", map[string]any{
		"name": "Tee", "category": "TOPS", "color": "White",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "image", decode[map[string]string](t, resp)["field"])
}

func TestCreateItemImageErrors(t *testing.T) {
	server, _ := setupTestServer(t, true)
	fields := map[string]string{"name": "Tee", "category": "TOPS", "color": "White"}

	resp := send(t, multipartRequest(t, "POST", server.URL+"/api/items", fields, []byte("BM bitmap"), "image/bmp"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	big := make([]byte, imaging.MaxUploadSize+1)
	resp = send(t, multipartRequest(t, "POST", server.URL+"/api/items", fields, big, "image/png"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	list := doJSON(t, "GET", server.URL+"/api/items", nil)
	assert.Empty(t, decode[[]model.Item](t, list))
}

func TestCreateItemValidationJSON(t *testing.T) {
	server, _ := setupTestServer(t, false)

	resp := doJSON(t, "POST", server.URL+"/api/items", map[string]any{"name": "Tee", "color": "White"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "category", decode[map[string]string](t, resp)["field"])

	resp = doJSON(t, "POST", server.URL+"/api/items", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItemsListFilterUpdateDelete(t *testing.T) {
	server, _ := setupTestServer(t, false)

	for _, body := range []map[string]any{
		{"name": "Linen Shirt", "category": "TOPS", "color": "White", "season": "SUMMER"},
		{"name": "Chinos", "category": "BOTTOMS", "color": "Khaki", "brand": "Acme"},
	} {
		resp := doJSON(t, "POST", server.URL+"/api/items", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	all := decode[[]model.Item](t, doJSON(t, "GET", server.URL+"/api/items", nil))
	require.Len(t, all, 2)
	assert.Equal(t, "Chinos", all[0].Name)

	tops := decode[[]model.Item](t, doJSON(t, "GET", server.URL+"/api/items?category=tops", nil))
	require.Len(t, tops, 1)
	assert.Equal(t, "Linen Shirt", tops[0].Name)

	acme := decode[[]model.Item](t, doJSON(t, "GET", server.URL+"/api/items?search=acme", nil))
	require.Len(t, acme, 1)

	bad := doJSON(t, "GET", server.URL+"/api/items?season=MONSOON", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	chinos := all[0]
	resp := doJSON(t, "PUT", server.URL+"/api/items/"+chinos.ID, map[string]any{"color": "Olive", "brand": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.Item](t, resp)
	assert.Equal(t, "Olive", updated.Color)
	assert.Empty(t, updated.Brand)
	assert.Equal(t, chinos.Name, updated.Name)

	resp = doJSON(t, "PUT", server.URL+"/api/items/missing", map[string]any{"color": "Olive"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, "DELETE", server.URL+"/api/items/"+chinos.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, "DELETE", server.URL+"/api/items/"+chinos.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, "GET", server.URL+"/api/items/"+chinos.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadImageReplacesPhoto(t *testing.T) {
	server, _ := setupTestServer(t, false)

	resp := doJSON(t, "POST", server.URL+"/api/items", map[string]any{"name": "Tee", "category": "TOPS", "color": "White"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decode[model.Item](t, resp)

	resp = send(t, multipartRequest(t, "PUT", server.URL+"/api/items/"+item.ID+"/image", nil, pngBytes(t), "image/png"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.Item](t, resp)
	assert.True(t, strings.HasPrefix(updated.ImageURL, "/uploads/"+item.ID+"-"))

	resp = send(t, multipartRequest(t, "PUT", server.URL+"/api/items/missing/image", nil, pngBytes(t), "image/png"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, "GET", server.URL+"/uploads/nothing-here.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOutfitsAPIFlow(t *testing.T) {
	server, _ := setupTestServer(t, false)

	var ids []string
	for _, name := range []string{"Shirt", "Trousers"} {
		resp := doJSON(t, "POST", server.URL+"/api/items", map[string]any{"name": name, "category": "TOPS", "color": "Grey"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		ids = append(ids, decode[model.Item](t, resp).ID)
	}

	resp := doJSON(t, "POST", server.URL+"/api/outfits", map[string]any{
		"name": "Office", "tags": []string{"work"}, "itemIds": []string{ids[0], "ghost", ids[1]},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	outfit := decode[model.Outfit](t, resp)
	assert.Equal(t, ids, outfit.ItemIDs())

	resp = doJSON(t, "POST", server.URL+"/api/outfits", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, "PUT", server.URL+"/api/outfits/"+outfit.ID, map[string]any{"itemIds": []string{ids[1]}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{ids[1]}, decode[model.Outfit](t, resp).ItemIDs())

	// Deleting the only item leaves the outfit empty.
	resp = doJSON(t, "DELETE", server.URL+"/api/items/"+ids[1], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, "GET", server.URL+"/api/outfits/"+outfit.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[model.Outfit](t, resp).Items)

	list := decode[[]model.Outfit](t, doJSON(t, "GET", server.URL+"/api/outfits", nil))
	require.Len(t, list, 1)

	resp = doJSON(t, "DELETE", server.URL+"/api/outfits/"+outfit.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, "GET", server.URL+"/api/outfits/"+outfit.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, "PUT", server.URL+"/api/outfits/"+outfit.ID, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSuggestionsAPI(t *testing.T) {
	server, stub := setupTestServer(t, false)

	var ids []string
	for _, name := range []string{"Shirt", "Trousers"} {
		resp := doJSON(t, "POST", server.URL+"/api/items", map[string]any{"name": name, "category": "TOPS", "color": "Grey"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		ids = append(ids, decode[model.Item](t, resp).ID)
	}

	stub.out = []suggest.Suggestion{{Name: "Smart", ItemIDs: ids, Reasoning: "grey on grey"}}
	resp := doJSON(t, "POST", server.URL+"/api/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string][]suggest.Suggestion](t, resp)
	assert.Equal(t, stub.out, body["outfits"])

	resp = doJSON(t, "POST", server.URL+"/api/suggestions/save", stub.out[0])
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, ids, decode[model.Outfit](t, resp).ItemIDs())

	for err, status := range map[error]int{
		suggest.ErrNotEnoughItems:  http.StatusBadRequest,
		suggest.ErrNotConfigured:   http.StatusServiceUnavailable,
		suggest.ErrInvalidResponse: http.StatusBadGateway,
	} {
		stub.err = err
		resp := doJSON(t, "POST", server.URL+"/api/suggestions", nil)
		assert.Equal(t, status, resp.StatusCode, err.Error())
	}
}

func TestHealthz(t *testing.T) {
	server, _ := setupTestServer(t, false)
	resp := doJSON(t, "GET", server.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestJSONBodyTooLarge(t *testing.T) {
	server, _ := setupTestServer(t, false)

	resp := doJSON(t, "POST", server.URL+"/api/outfits", map[string]any{"name": strings.Repeat("x", maxJSONBody)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	list := decode[[]model.Outfit](t, doJSON(t, "GET", server.URL+"/api/outfits", nil))
	assert.Empty(t, list)
}
