package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artmarket/internal/storage"
)

// UploadRecorder cuenta las subidas por bucket.
type UploadRecorder interface {
	RecordUpload(bucket string, err error)
}

// UploadHandler recibe avatares e imágenes de obras.
type UploadHandler struct {
	logger   *zap.Logger
	storage  *storage.Storage
	maxBytes int64
	recorder UploadRecorder
}

func NewUploadHandler(logger *zap.Logger, store *storage.Storage, maxBytes int64, recorder UploadRecorder) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &UploadHandler{logger: logger, storage: store, maxBytes: maxBytes, recorder: recorder}
}

// Upload maneja POST /storage/:bucket con un campo multipart "file".
func (h *UploadHandler) Upload(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	bucket := c.Param("bucket")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+(1<<20))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(c, http.StatusBadRequest, "missing file")
		return
	}
	if fileHeader.Size > h.maxBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	obj, err := h.storage.Upload(c.Request.Context(), bucket, claims.UserID, fileHeader.Filename, file, fileHeader.Size, contentType)
	if h.recorder != nil {
		h.recorder.RecordUpload(bucket, err)
	}
	if err != nil {
		h.writeStorageError(c, err, "upload failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"object": obj})
}

// URL maneja GET /storage/:bucket/url?path=.
func (h *UploadHandler) URL(c *gin.Context) {
	url, err := h.storage.URL(c.Param("bucket"), c.Query("path"))
	if err != nil {
		h.writeStorageError(c, err, "resolve url failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Delete maneja DELETE /storage/:bucket?path=.
func (h *UploadHandler) Delete(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	err := h.storage.Delete(c.Request.Context(), c.Param("bucket"), claims.UserID, c.Query("path"))
	if err != nil {
		h.writeStorageError(c, err, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UploadHandler) writeStorageError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, storage.ErrUnknownBucket):
		writeError(c, http.StatusNotFound, "unknown bucket")
	case errors.Is(err, storage.ErrInvalidPath):
		writeError(c, http.StatusBadRequest, "invalid path")
	case errors.Is(err, storage.ErrObjectMissing):
		writeError(c, http.StatusNotFound, "object not found")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		writeError(c, http.StatusBadGateway, "storage unavailable")
	}
}
