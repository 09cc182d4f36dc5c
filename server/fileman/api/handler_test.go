package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonauth "filevault/server/common/auth"
	"filevault/server/common/infra/object"
	commonlog "filevault/server/common/log"
	"filevault/server/fileman/domain"
	"filevault/server/fileman/realtime"
	"filevault/server/fileman/repository"
	"filevault/server/fileman/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	commonlog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testAPI struct {
	router *gin.Engine
	auth   *commonauth.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	users := repository.NewMemoryUserStore()
	files := service.NewFileService(
		object.NewMemoryStore("vault", "http://cdn.local"),
		repository.NewMemoryFileStore(users),
		users,
		nil,
		nil,
		service.Options{MaxUploadBytes: 1024},
	)
	auth := commonauth.NewService("test-secret", 60)
	r := gin.New()
	NewHandler(files, auth, realtime.NewHub(), nil).RegisterRoutes(r)
	return &testAPI{router: r, auth: auth}
}

func (a *testAPI) token(t *testing.T, userID, email string) string {
	t.Helper()
	tok, err := a.auth.GenerateToken(userID, email)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return a.do(t, method, path, token, bytes.NewReader(b), "application/json")
}

func (a *testAPI) upload(t *testing.T, token, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return a.do(t, http.MethodPost, "/api/v1/files", token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestFileLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	ann := a.token(t, "u1", "ann@example.com")
	bob := a.token(t, "u2", "bob@example.com")

	w := a.upload(t, ann, "notes.txt", bytes.Repeat([]byte("x"), 500))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.FileRecord](t, w)
	assert.Equal(t, domain.CategoryDocument, created.Category)
	assert.Equal(t, int64(500), created.Size)

	w = a.do(t, http.MethodGet, "/api/v1/files?types=document&sort=name-asc", ann, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Items []domain.FileRecord `json:"items"`
		Total int                 `json:"total"`
	}](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.ID, list.Items[0].ID)

	w = a.do(t, http.MethodGet, "/api/v1/files", bob, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())

	w = a.doJSON(t, http.MethodPut, "/api/v1/files/"+created.ID+"/users", ann, map[string]any{"emails": []string{"bob@example.com"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.doJSON(t, http.MethodPatch, "/api/v1/files/"+created.ID+"/name", bob, map[string]any{"name": "minutes", "extension": "txt"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "minutes.txt", decode[domain.FileRecord](t, w).Name)

	w = a.do(t, http.MethodDelete, "/api/v1/files/"+created.ID, bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/files/"+created.ID+"/download", bob, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 900, decode[map[string]any](t, w)["expires_in"])

	w = a.do(t, http.MethodGet, "/api/v1/usage", ann, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	usage := decode[usageResponse](t, w)
	assert.Equal(t, int64(500), usage.Used)
	assert.Equal(t, "500.00 Bytes", usage.Categories[domain.CategoryDocument].SizeLabel)
	assert.Equal(t, "2 GB", usage.AllLabel)

	w = a.do(t, http.MethodDelete, "/api/v1/files/"+created.ID, ann, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodDelete, "/api/v1/files/"+created.ID, ann, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t)
	ann := a.token(t, "u1", "ann@example.com")

	tests := []struct {
		name   string
		resp   func() *httptest.ResponseRecorder
		status int
	}{
		{"missing token", func() *httptest.ResponseRecorder {
			return a.do(t, http.MethodGet, "/api/v1/files", "", nil, "")
		}, http.StatusUnauthorized},
		{"bad token", func() *httptest.ResponseRecorder {
			return a.do(t, http.MethodGet, "/api/v1/files", "garbage", nil, "")
		}, http.StatusUnauthorized},
		{"unknown type", func() *httptest.ResponseRecorder {
			return a.do(t, http.MethodGet, "/api/v1/files?types=spreadsheet", ann, nil, "")
		}, http.StatusBadRequest},
		{"bad limit", func() *httptest.ResponseRecorder {
			return a.do(t, http.MethodGet, "/api/v1/files?limit=ten", ann, nil, "")
		}, http.StatusBadRequest},
		{"no file part", func() *httptest.ResponseRecorder {
			return a.do(t, http.MethodPost, "/api/v1/files", ann, nil, "")
		}, http.StatusBadRequest},
		{"too large", func() *httptest.ResponseRecorder {
			return a.upload(t, ann, "big.bin", bytes.Repeat([]byte("x"), 2048))
		}, http.StatusBadRequest},
		{"rename missing", func() *httptest.ResponseRecorder {
			return a.doJSON(t, http.MethodPatch, "/api/v1/files/nope/name", ann, map[string]any{"name": "x"})
		}, http.StatusNotFound},
		{"unknown account", func() *httptest.ResponseRecorder {
			return a.do(t, http.MethodGet, "/api/v1/accounts/me", ann, nil, "")
		}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.resp()
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAccounts(t *testing.T) {
	a := newTestAPI(t)

	w := a.doJSON(t, http.MethodPost, "/api/v1/accounts", "", map[string]any{"fullName": "Ann Lee", "email": "Ann@Example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[domain.User](t, w)
	assert.Equal(t, "ann@example.com", user.Email)

	w = a.do(t, http.MethodGet, "/api/v1/accounts/me", a.token(t, user.ID, user.Email), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, decode[domain.User](t, w).ID)

	w = a.doJSON(t, http.MethodPost, "/api/v1/accounts", "", map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/live", "", nil, "").Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/ready", "", nil, "").Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/metrics", "", nil, "").Code)
}
