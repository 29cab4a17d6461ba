package uploads

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/pkg/response"
	"github.com/volunteerhub/backend/pkg/storage"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 64 * 1024

// Uploader stores objects and returns their URL.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64, publicRead bool) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	KeyForURL(url string) (string, bool)
	MediaBucket() string
}

// Handler handles image upload endpoints.
type Handler struct {
	store  Uploader
	logger *zap.Logger
}

// NewHandler creates an uploads handler. store may be nil when S3 is not configured.
func NewHandler(store Uploader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Avatar handles POST /uploads/avatar (form field: avatar).
func (h *Handler) Avatar(c *gin.Context) {
	h.upload(c, "avatar", storage.AvatarKey)
}

// OpportunityImage handles POST /uploads/opportunity (form field: image).
func (h *Handler) OpportunityImage(c *gin.Context) {
	h.upload(c, "image", storage.OpportunityImageKey)
}

func (h *Handler) upload(c *gin.Context, field string, keyFor func(ownerID, filename string) string) {
	if h.store == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+formOverhead)

	file, err := c.FormFile(field)
	if err != nil {
		response.BadRequest(c, "missing file (form field: "+field+")")
		return
	}
	if file.Size > storage.MaxImageSize {
		response.BadRequest(c, "file size exceeds 5MB limit")
		return
	}
	declared := file.Header.Get("Content-Type")
	if !storage.ValidateImageType(declared, file.Filename) {
		response.BadRequest(c, "only image files are allowed (jpeg, jpg, png, gif)")
		return
	}

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	p := middleware.PrincipalFrom(c)
	key := keyFor(p.ID.String(), file.Filename)
	url, err := h.store.Upload(c.Request.Context(), h.store.MediaBucket(), key, storage.ContentTypeForFilename(file.Filename), rc, file.Size, true)
	if err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	response.OK(c, gin.H{
		"url":       url,
		"s3_key":    key,
		"file_size": file.Size,
	})
}

// Discard deletes a previously uploaded media object by its public URL. It is
// best effort: URLs outside the media bucket are ignored and failures are only logged.
func (h *Handler) Discard(ctx context.Context, url string) {
	if h.store == nil || url == "" {
		return
	}
	key, ok := h.store.KeyForURL(url)
	if !ok {
		return
	}
	if err := h.store.DeleteObject(ctx, h.store.MediaBucket(), key); err != nil {
		h.logger.Warn("delete replaced media failed", zap.Error(err), zap.String("key", key))
	}
}
