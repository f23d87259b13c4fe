package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/KING-DAVIDX/cdn-example/models"
	"github.com/KING-DAVIDX/cdn-example/storage"
	"github.com/KING-DAVIDX/cdn-example/utils"
)

// uploadedBy is echoed in every successful upload response.
const uploadedBy = "King David"

// maxInsertAttempts bounds id regeneration on duplicate-key conflicts. With
// 64 bits of id entropy a single conflict is already a freak event.
const maxInsertAttempts = 3

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdn_uploads_total",
		Help: "Upload requests by outcome.",
	}, []string{"outcome"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdn_fetches_total",
		Help: "File fetch requests by outcome.",
	}, []string{"outcome"})
)

// FileController brokers uploads into the backing store and redeems public
// ids for temporary download locations. It never stores or streams the
// bytes itself.
type FileController struct {
	registry storage.Registry
	store    storage.BlobStore
	maxBytes int64
}

// NewFileController creates a new FileController instance.
func NewFileController(registry storage.Registry, store storage.BlobStore, maxUploadMB int) *FileController {
	return &FileController{
		registry: registry,
		store:    store,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// Upload accepts a multipart form with field 'file', stores the bytes in the
// backing store, then binds a fresh public id to the returned handle. The
// registry row is only written after the store succeeded, so a failed upload
// never leaves metadata behind.
func (f *FileController) Upload(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		uploadsTotal.WithLabelValues("bad_request").Inc()
		utils.FileError(ctx, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > 0 && header.Size > f.maxBytes {
		uploadsTotal.WithLabelValues("too_large").Inc()
		utils.FileError(ctx, http.StatusBadRequest, "File too large")
		return
	}

	// Enforce the cap even when the declared size lies
	data, err := io.ReadAll(io.LimitReader(file, f.maxBytes+1))
	if err != nil {
		utils.Sugar.Errorf("upload: reading form file failed: %v", err)
		uploadsTotal.WithLabelValues("error").Inc()
		utils.FileError(ctx, http.StatusInternalServerError, "Upload failed")
		return
	}
	if int64(len(data)) > f.maxBytes {
		uploadsTotal.WithLabelValues("too_large").Inc()
		utils.FileError(ctx, http.StatusBadRequest, "File too large")
		return
	}

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == "/" || filename == "" {
		filename = fmt.Sprintf("file_%d", time.Now().UnixNano())
	}

	reqCtx := ctx.Request.Context()
	handle, err := f.store.Store(reqCtx, data, filename)
	if err != nil {
		utils.Sugar.Errorf("upload: backing store failed: %v", err)
		uploadsTotal.WithLabelValues("store_error").Inc()
		utils.FileError(ctx, http.StatusInternalServerError, "Upload failed")
		return
	}

	var rec *models.FileRecord
	for attempt := 1; ; attempt++ {
		fileID := utils.GenerateFileID()
		rec = &models.FileRecord{
			FileID:         fileID,
			TelegramFileID: handle,
			FileURL:        buildFileURL(ctx, fileID),
		}
		err = f.registry.Insert(reqCtx, rec)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrDuplicateID) && attempt < maxInsertAttempts {
			utils.Sugar.Warnf("upload: file id collision on attempt %d, regenerating", attempt)
			continue
		}
		// The blob now exists upstream with no record pointing at it.
		// Accepted failure mode; log the handle so it can be traced.
		utils.Sugar.Errorf("upload: registry insert failed, orphaned handle %s: %v", handle, err)
		uploadsTotal.WithLabelValues("registry_error").Inc()
		utils.FileError(ctx, http.StatusInternalServerError, "Upload failed")
		return
	}

	utils.CountUpload()
	uploadsTotal.WithLabelValues("ok").Inc()
	ctx.JSON(http.StatusOK, gin.H{
		"file_id":     rec.FileID,
		"file_url":    rec.FileURL,
		"uploaded_by": uploadedBy,
	})
}

// Fetch redeems a public id for a fresh temporary location and redirects.
// Locations expire upstream, so every request resolves again; nothing from
// a previous resolve is reused.
func (f *FileController) Fetch(ctx *gin.Context) {
	fileID := ctx.Param("id")
	reqCtx := ctx.Request.Context()

	rec, err := f.registry.FindByID(reqCtx, fileID)
	if err != nil {
		utils.Sugar.Errorf("fetch: registry lookup failed for %s: %v", fileID, err)
		fetchesTotal.WithLabelValues("registry_error").Inc()
		utils.FileError(ctx, http.StatusInternalServerError, "Fetch failed")
		return
	}
	if rec == nil {
		fetchesTotal.WithLabelValues("not_found").Inc()
		utils.FileError(ctx, http.StatusNotFound, "File not found")
		return
	}

	location, err := f.store.Resolve(reqCtx, rec.TelegramFileID)
	if err != nil {
		utils.Sugar.Errorf("fetch: resolve failed for %s: %v", fileID, err)
		fetchesTotal.WithLabelValues("resolve_error").Inc()
		utils.FileError(ctx, http.StatusInternalServerError, "Fetch failed")
		return
	}

	utils.CountFetch()
	fetchesTotal.WithLabelValues("ok").Inc()
	ctx.Redirect(http.StatusFound, location)
}

// buildFileURL derives the public URL from the request's own scheme and
// host, so the returned link matches whatever hostname the client used.
func buildFileURL(ctx *gin.Context, fileID string) string {
	scheme := "http"
	if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if ctx.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/file/%s", scheme, ctx.Request.Host, fileID)
}
