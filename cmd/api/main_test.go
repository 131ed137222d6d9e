package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/storybook-orderflow/internal/handlers"
	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/logging"
	"github.com/imrishuroy/storybook-orderflow/internal/metrics"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
	"github.com/imrishuroy/storybook-orderflow/internal/testutil"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := testutil.NewFakeDynamoDB(testutil.Tables{"orders": testutil.OrderKey, "idempotency": testutil.IdempotencyKey})
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	svc := orders.NewService(orders.NewStore(fake, "orders"),
		orders.WithIdempotency(idempotency.NewStore(fake, "idempotency", time.Hour)),
		orders.WithRecorder(m),
		orders.WithLogger(logging.Discard()),
	)
	r := setupRouter(handlers.HandlerConfig{Orders: svc, Metrics: m, Logger: logging.Discard()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"title":"T","product_id":"essential"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `storybook_orders_created_total{product_id="essential"} 1`)
	assert.Contains(t, body, `storybook_http_requests_total{code="200",method="GET",route="/health"} 1`)
}
