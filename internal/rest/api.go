package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/lxl66566/img-server/images/application"
	"github.com/lxl66566/img-server/internal/middleware"
)

// NewApi registers the image routes on router. Every route is gated by the
// blacklist; upload and delete additionally require an admin token.
func NewApi(router *gin.Engine, svc *application.ImageService, acl middleware.ACL, maxBytes int64) {
	h := &ImageHandler{svc: svc}

	images := router.Group("/images", middleware.BlacklistGate(acl))
	{
		images.POST("", middleware.TokenGate(acl), middleware.BodyLimit(maxBytes), h.Upload)
		images.GET("", h.List)
		images.GET("/:id", h.Download)
		images.DELETE("/:id", middleware.TokenGate(acl), h.Delete)
	}
}
