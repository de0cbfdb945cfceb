package handlers

import (
	"bufio"
	"fmt"
	"io"
	"net/http"

	"github.com/anonto42/garage-club/backend/internal/middleware"
	"github.com/anonto42/garage-club/backend/internal/uploads"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// multipartOverhead is the room left in the request body limit for the
// multipart envelope and any other form fields.
const multipartOverhead = 1 << 20

// UploadHandler accepts image uploads for post and profile media
type UploadHandler struct {
	uploader uploads.Uploader
	maxBytes int64
}

// NewUploadHandler creates a new UploadHandler. uploader may be nil when no
// bucket is configured.
func NewUploadHandler(uploader uploads.Uploader, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxBytes: maxBytes}
}

// RegisterUploadRoutes registers upload routes
func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	mw := []echo.MiddlewareFunc{auth}
	if h.maxBytes > 0 {
		mw = append(mw, eMiddleware.BodyLimit(fmt.Sprintf("%dB", h.maxBytes+multipartOverhead)))
	}
	g.POST("/uploads", h.Upload, mw...)
}

// Upload streams the multipart "file" field to storage and returns its URL
func (h *UploadHandler) Upload(c echo.Context) error {
	if h.uploader == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Uploads are not configured")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing file field")
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable file")
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable file")
	}
	contentType := http.DetectContentType(head)
	if fh.Header.Get("Content-Type") == "image/heic" {
		// net/http does not sniff HEIC.
		contentType = "image/heic"
	}
	if _, ok := uploads.AllowedTypes[contentType]; !ok {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Only JPEG, PNG, WebP and HEIC images are accepted")
	}

	actorID := middleware.ActorID(c)
	url, err := h.uploader.Upload(c.Request().Context(), actorID, contentType, br)
	if err != nil {
		log.WithError(err).WithField("actor_id", actorID).Error("upload failed")
		return echo.NewHTTPError(http.StatusBadGateway, "Upload failed")
	}
	return success(c, http.StatusCreated, echo.Map{"url": url, "content_type": contentType})
}
