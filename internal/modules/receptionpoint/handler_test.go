package receptionpoint

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecos/internal/domain"
	"ecos/internal/identity"
	"ecos/internal/middleware"
	"ecos/internal/pkg/jwt"
	"ecos/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes is a 1x1 PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

type httpEnv struct {
	*env
	router *gin.Engine
	tokens *jwt.Service
}

func setupHTTP(t *testing.T) *httpEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := setup(t)
	tokens := jwt.New("test-secret", time.Hour, "ecos-test")
	provider := identity.NewLocalProvider(nil, tokens)

	r := gin.New()
	api := r.Group("/api/v1")
	protected := api.Group("", middleware.JWTAuth(provider))
	moderator := protected.Group("", middleware.ModeratorOnly())
	NewHandler(e.svc, upload.DefaultMaxBytes).RegisterRoutes(api, protected, moderator)
	return &httpEnv{env: e, router: r, tokens: tokens}
}

func (h *httpEnv) bearer(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := h.tokens.GenerateToken(id, "x@example.com", true, role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (h *httpEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, data any, images ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField(upload.DataField, string(raw)))
	for i, img := range images {
		fw, err := mw.CreateFormFile(ImagesField, "photo"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandler_CreateAndModerate(t *testing.T) {
	h := setupHTTP(t)

	body, ct := multipartBody(t, hubRequest(h.pet.ID), pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reception-points", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", h.bearer(t, h.owner.ID, identity.RoleUser))
	w := h.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created domain.ReceptionPoint
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, domain.PointUnderModeration, created.Status)
	require.Len(t, created.Images, 1)
	assert.True(t, strings.HasSuffix(created.Images[0].Filename, ".png"))

	path := "/api/v1/reception-points/" + created.ID.String() + "/status"
	status := `{"status":"APPROVED","comment":"ok"}`

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(status))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", h.bearer(t, h.owner.ID, identity.RoleUser))
	assert.Equal(t, http.StatusForbidden, h.do(req).Code)

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(status))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", h.bearer(t, uuid.New(), identity.RoleModerator))
	w = h.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), h.count(t, &domain.AccrualEntry{}))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reception-points?status=APPROVED&include=wastes&search=hub", nil)
	w = h.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, int64(1), env.Pagination.Total)
}

func TestHandler_CreateRejectsBadUploads(t *testing.T) {
	h := setupHTTP(t)
	auth := h.bearer(t, h.owner.ID, identity.RoleUser)

	body, ct := multipartBody(t, hubRequest(), []byte("plain text, not an image"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reception-points", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", auth)
	w := h.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)

	body, ct = multipartBody(t, hubRequest())
	req = httptest.NewRequest(http.MethodPost, "/api/v1/reception-points", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", auth)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(req).Code)

	body, ct = multipartBody(t, hubRequest(), pngBytes)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/reception-points", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusUnauthorized, h.do(req).Code)

	assert.Zero(t, h.count(t, &domain.ReceptionPoint{}))
}

func TestHandler_ListErrors(t *testing.T) {
	h := setupHTTP(t)

	for _, q := range []string{
		"colour=red",
		"include=secrets",
		"per_page=1000",
		"radius=100",
		"radius=abc&latitude=1&longitude=2",
	} {
		w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/reception-points?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "INVALID_FILTER", decode(t, w).Error.Code, q)
	}

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/reception-points/not-a-uuid", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/reception-points/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w).Error.Code)
}
