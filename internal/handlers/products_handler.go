package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
)

// RegisterProductRoutes serves the read-only catalog.
func RegisterProductRoutes(r *gin.Engine) {
	r.GET("/products", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"products": catalog.All()})
	})

	r.GET("/products/:id", func(c *gin.Context) {
		p, ok := catalog.Lookup(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
			return
		}
		c.JSON(http.StatusOK, p)
	})
}
