package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storybook-orderflow/internal/validation"
)

// RegisterUploadRoutes hands out presigned upload URLs for checkout.
func RegisterUploadRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	logger := cfg.logger().WithField("handler", "uploads")

	r.POST("/uploads", func(c *gin.Context) {
		var req validation.UploadURLRequest
		// the body is optional
		if c.Request.ContentLength != 0 {
			if err := validation.BindAndValidate(c, &req, v); err != nil {
				return
			}
		}
		ticket, err := cfg.Uploads.RequestUploadURL(c.Request.Context(), req.ContentType)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if cfg.Metrics != nil {
			cfg.Metrics.UploadURLsIssued(1)
		}
		c.JSON(http.StatusOK, ticket)
	})

	r.POST("/uploads/batch", func(c *gin.Context) {
		var req validation.UploadBatchRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		tickets, err := cfg.Uploads.RequestUploadURLs(c.Request.Context(), req.Count, req.ContentType)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if cfg.Metrics != nil {
			cfg.Metrics.UploadURLsIssued(len(tickets))
		}
		c.JSON(http.StatusOK, gin.H{"tickets": tickets})
	})
}
