package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

// writeError maps service errors onto status codes and JSON error codes.
func writeError(c *gin.Context, logger *log.Entry, err error) {
	var ve *orders.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "fields": ve.Fields})
	case errors.Is(err, orders.ErrValidation), errors.Is(err, orders.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": err.Error()})
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, orders.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "msg": err.Error()})
	case errors.Is(err, orders.ErrStatusMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "status_conflict"})
	case errors.Is(err, blobstore.ErrPresign):
		logger.WithError(err).Error("issue upload url")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload_url_failed"})
	default:
		logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_fault"})
	}
}
