package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KING-DAVIDX/cdn-example/models"
	"github.com/KING-DAVIDX/cdn-example/storage"
	"github.com/KING-DAVIDX/cdn-example/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	os.Setenv("TELEGRAM_CHANNEL_ID", "-1001234567890")
	gin.SetMode(gin.TestMode)
	utils.Logger = zap.NewNop()
	utils.Sugar = utils.Logger.Sugar()
	os.Exit(m.Run())
}

// stubRegistry is an in-memory Registry with failure injection and call counting.
type stubRegistry struct {
	mu           sync.Mutex
	records      map[string]*models.FileRecord
	insertCalls  int
	findCalls    int
	dupFirstN    int
	insertErr    error
	attemptedIDs []string
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{records: map[string]*models.FileRecord{}}
}

func (s *stubRegistry) Insert(_ context.Context, rec *models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	s.attemptedIDs = append(s.attemptedIDs, rec.FileID)
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.insertCalls <= s.dupFirstN {
		return storage.ErrDuplicateID
	}
	if _, exists := s.records[rec.FileID]; exists {
		return storage.ErrDuplicateID
	}
	cp := *rec
	s.records[rec.FileID] = &cp
	return nil
}

func (s *stubRegistry) FindByID(_ context.Context, fileID string) (*models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	rec, ok := s.records[fileID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// spyBlob keeps stored blobs in memory and mints a fresh location per resolve.
type spyBlob struct {
	mu           sync.Mutex
	blobs        map[string][]byte
	storeCalls   int
	resolveCalls int
	storeErr     error
	resolveErr   error
	baseURL      string
	nextHandle   int
}

func newSpyBlob(baseURL string) *spyBlob {
	return &spyBlob{blobs: map[string][]byte{}, baseURL: baseURL}
}

func (s *spyBlob) Store(_ context.Context, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeCalls++
	if s.storeErr != nil {
		return "", s.storeErr
	}
	s.nextHandle++
	handle := fmt.Sprintf("tg-handle-%d", s.nextHandle)
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[handle] = cp
	return handle, nil
}

func (s *spyBlob) Resolve(_ context.Context, handle string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	if _, ok := s.blobs[handle]; !ok {
		return "", storage.ErrHandleNotFound
	}
	// A new location each time, like an expiring capability
	return fmt.Sprintf("%s/dl/%s?issue=%d", s.baseURL, handle, s.resolveCalls), nil
}

func newTestRouter(reg storage.Registry, blob storage.BlobStore, maxMB int) *gin.Engine {
	r := gin.New()
	fc := NewFileController(reg, blob, maxMB)
	r.POST("/upload", fc.Upload)
	r.GET("/file/:id", fc.Fetch)
	return r
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", "report.pdf", data)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Host = "cdn.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadMissingFile(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, w.Body.String())
	assert.Equal(t, 0, blob.storeCalls)
	assert.Equal(t, 0, reg.insertCalls)
}

func TestUploadWrongFieldName(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	body, contentType := multipartBody(t, "attachment", "x.bin", []byte("abc"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, blob.storeCalls)
}

func TestUploadSuccess(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	w := doUpload(t, r, []byte("hello bytes"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		FileID     string `json:"file_id"`
		FileURL    string `json:"file_url"`
		UploadedBy string `json:"uploaded_by"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), resp.FileID)
	assert.Equal(t, "http://cdn.example.com/file/"+resp.FileID, resp.FileURL)
	assert.Equal(t, "King David", resp.UploadedBy)

	rec, err := reg.FindByID(context.Background(), resp.FileID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tg-handle-1", rec.TelegramFileID)
	assert.Equal(t, resp.FileURL, rec.FileURL)
}

func TestUploadForwardedProtoInURL(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	body, contentType := multipartBody(t, "file", "x.bin", []byte("abc"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Host = "cdn.example.com"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://cdn.example.com/file/"+resp["file_id"], resp["file_url"])
}

func TestUploadStoreFailureWritesNoRecord(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	blob.storeErr = storage.ErrUpstreamUnavailable
	r := newTestRouter(reg, blob, 50)

	w := doUpload(t, r, []byte("doomed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Upload failed"}`, w.Body.String())
	assert.Equal(t, 1, blob.storeCalls)
	assert.Equal(t, 0, reg.insertCalls)
	assert.Empty(t, reg.records)
}

func TestUploadDuplicateIDRetry(t *testing.T) {
	reg := newStubRegistry()
	reg.dupFirstN = 1
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	w := doUpload(t, r, []byte("retry me"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 2, reg.insertCalls)
	require.Len(t, reg.attemptedIDs, 2)
	assert.NotEqual(t, reg.attemptedIDs[0], reg.attemptedIDs[1])
	assert.Equal(t, reg.attemptedIDs[1], resp["file_id"])
	assert.Len(t, reg.records, 1)
}

func TestUploadGivesUpAfterBoundedRetries(t *testing.T) {
	reg := newStubRegistry()
	reg.dupFirstN = 10
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	w := doUpload(t, r, []byte("never lands"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Upload failed"}`, w.Body.String())
	assert.Equal(t, 3, reg.insertCalls)
	assert.Empty(t, reg.records)
}

func TestUploadRegistryUnavailable(t *testing.T) {
	reg := newStubRegistry()
	reg.insertErr = storage.ErrRegistryUnavailable
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	w := doUpload(t, r, []byte("nope"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Upload failed"}`, w.Body.String())
}

func TestUploadTooLarge(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 1)

	w := doUpload(t, r, make([]byte, 1<<20+1))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"File too large"}`, w.Body.String())
	assert.Equal(t, 0, blob.storeCalls)
	assert.Equal(t, 0, reg.insertCalls)
}

func TestFetchUnknownID(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	req := httptest.NewRequest(http.MethodGet, "/file/deadbeefdeadbeef", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"File not found"}`, w.Body.String())
	assert.Equal(t, 0, blob.resolveCalls)
}

func TestFetchRedirects(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	r := newTestRouter(reg, blob, 50)

	handle, err := blob.Store(context.Background(), []byte("bytes"), "a.bin")
	require.NoError(t, err)
	require.NoError(t, reg.Insert(context.Background(), &models.FileRecord{
		FileID:         "aaaabbbbccccdddd",
		TelegramFileID: handle,
		FileURL:        "http://cdn.example.com/file/aaaabbbbccccdddd",
	}))

	req := httptest.NewRequest(http.MethodGet, "/file/aaaabbbbccccdddd", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "http://upstream/dl/"+handle)
}

func TestFetchResolveFailure(t *testing.T) {
	reg := newStubRegistry()
	blob := newSpyBlob("http://upstream")
	blob.resolveErr = storage.ErrUpstreamRejected
	r := newTestRouter(reg, blob, 50)

	require.NoError(t, reg.Insert(context.Background(), &models.FileRecord{
		FileID:         "aaaabbbbccccdddd",
		TelegramFileID: "tg-handle-1",
	}))

	req := httptest.NewRequest(http.MethodGet, "/file/aaaabbbbccccdddd", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Fetch failed"}`, w.Body.String())
}

// Round-trip: uploaded bytes come back byte-identical through the redirect.
func TestUploadFetchRoundTrip(t *testing.T) {
	var blob *spyBlob
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle := r.URL.Path[len("/dl/"):]
		blob.mu.Lock()
		data, ok := blob.blobs[handle]
		blob.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer upstream.Close()

	reg := newStubRegistry()
	blob = newSpyBlob(upstream.URL)
	r := newTestRouter(reg, blob, 50)

	payload := []byte{0x00, 0x01, 0xfe, 0xff, 'c', 'd', 'n'}
	w := doUpload(t, r, payload)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/file/"+resp["file_id"], nil)
	redir := httptest.NewRecorder()
	r.ServeHTTP(redir, req)
	require.Equal(t, http.StatusFound, redir.Code)

	loc := redir.Header().Get("Location")
	got, err := http.Get(loc)
	require.NoError(t, err)
	defer got.Body.Close()
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)

	// Resolving again mints a different location, both backed by the same handle
	req2 := httptest.NewRequest(http.MethodGet, "/file/"+resp["file_id"], nil)
	redir2 := httptest.NewRecorder()
	r.ServeHTTP(redir2, req2)
	require.Equal(t, http.StatusFound, redir2.Code)
	assert.NotEqual(t, loc, redir2.Header().Get("Location"))
}
