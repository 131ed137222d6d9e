package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storybook-orderflow/internal/orders"
	"github.com/imrishuroy/storybook-orderflow/internal/validation"
)

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	svc := cfg.Orders
	logger := cfg.logger().WithField("handler", "orders")

	r.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		in := newOrderFromRequest(req)

		// Idempotency-Key is optional: with it a retried POST returns the first order.
		if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" {
			id, replayed, err := svc.CreateOrderIdempotent(ctx, key, in)
			if err != nil {
				writeError(c, logger, err)
				return
			}
			c.Header("Location", fmt.Sprintf("/orders/%s", id))
			if replayed {
				c.Header("Idempotent-Replayed", "true")
				c.JSON(http.StatusOK, gin.H{"order_id": id, "status": orders.StatusPending})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"order_id": id, "status": orders.StatusPending})
			return
		}

		id, err := svc.CreateOrder(ctx, in)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.Header("Location", fmt.Sprintf("/orders/%s", id))
		c.JSON(http.StatusCreated, gin.H{"order_id": id, "status": orders.StatusPending})
	})

	r.GET("/orders/:id", func(c *gin.Context) {
		order, err := svc.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.GET("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			list []orders.Order
			err  error
		)
		switch {
		case c.Query("email") != "":
			list, err = svc.GetOrdersByEmail(ctx, c.Query("email"))
		case c.Query("status") != "":
			status, perr := orders.ParseStatus(c.Query("status"))
			if perr != nil {
				writeError(c, logger, perr)
				return
			}
			list, err = svc.GetOrdersByStatus(ctx, status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_query", "msg": "email or status is required"})
			return
		}
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	})

	r.PUT("/orders/:id/files", func(c *gin.Context) {
		var req validation.UpdateFilesRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		upd := orders.FilesUpdate{
			Images:         req.Images,
			VideoStorageID: req.VideoStorageID,
			Shipping: orders.Shipping{
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Email:     req.Email,
				Address:   req.Address,
				City:      req.City,
				State:     req.State,
				Zip:       req.Zip,
			},
		}
		id := c.Param("id")
		if err := svc.UpdateOrderWithFiles(c.Request.Context(), id, upd); err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": id, "images": len(upd.Images)})
	})

	r.PATCH("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		id := c.Param("id")
		status := orders.Status(req.Status)
		if err := svc.UpdateOrderStatus(c.Request.Context(), id, status); err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": id, "status": status})
	})
}

func newOrderFromRequest(req validation.CreateOrderRequest) orders.NewOrder {
	return orders.NewOrder{
		Arrangement: orders.Arrangement{
			Title:         req.Title,
			Subtitle:      req.Subtitle,
			Message:       req.Message,
			ProductID:     req.ProductID,
			ProductName:   req.ProductName,
			ProductPhotos: req.ProductPhotos,
			ProductPrice:  req.ProductPrice,
		},
		Shipping: orders.Shipping{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Address:   req.Address,
			City:      req.City,
			State:     req.State,
			Zip:       req.Zip,
		},
		Images:         req.Images,
		VideoStorageID: req.VideoStorageID,
		Status:         orders.Status(req.Status),
	}
}
