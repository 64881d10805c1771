package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lxl66566/img-server/images/application"
	"github.com/lxl66566/img-server/images/domain"
)

// ImageHandler adapts the image service to gin.
type ImageHandler struct {
	svc *application.ImageService
}

// Upload handles POST /images.
func (h *ImageHandler) Upload(c *gin.Context) {
	form, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form"})
		return
	}

	rec, err := h.svc.Upload(c.Request.Context(), form)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// List handles GET /images.
func (h *ImageHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	c.JSON(http.StatusOK, h.svc.List(page, pageSize))
}

// Download handles GET /images/:id. The thumb query flag selects the
// derived copy instead of the original.
func (h *ImageHandler) Download(c *gin.Context) {
	thumb, _ := strconv.ParseBool(c.DefaultQuery("thumb", "false"))

	file, hash, err := h.svc.Download(c.Param("id"), thumb)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer file.Close()

	// Content type is left opaque; clients decide how to render.
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", hash))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to stream image")
	}
}

// Delete handles DELETE /images/:id, matching records by name.
func (h *ImageHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// abortWithError maps classified service errors onto HTTP statuses.
// Unclassified errors are logged and surface as a bare 500.
func abortWithError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
	case errors.Is(err, domain.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrForbidden.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
