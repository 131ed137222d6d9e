// Package apiclient talks to the storybook HTTP API. Error responses are
// mapped back onto the sentinel errors of the orders and blobstore packages
// so callers can treat a remote service like a local one.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

// Error is a non-2xx answer from the API.
type Error struct {
	Status int
	Code   string
	Msg    string
	Fields map[string]string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("api %d %s", e.Status, e.Code)
}

// Unwrap exposes the domain error matching the response code.
func (e *Error) Unwrap() error {
	switch e.Code {
	case "validation_failed", "invalid_request_body", "missing_query":
		if len(e.Fields) > 0 {
			return &orders.ValidationError{Fields: e.Fields}
		}
		return orders.ErrValidation
	case "order_not_found":
		return orders.ErrNotFound
	case "invalid_transition":
		return orders.ErrInvalidTransition
	case "status_conflict":
		return orders.ErrStatusMismatch
	case "upload_url_failed":
		return blobstore.ErrPresign
	case "storage_fault":
		return orders.ErrStorageFault
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	var out struct {
		Products []catalog.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/products", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// CreateOrder posts a new order. A non-empty idempotencyKey makes retries
// return the same order id.
func (c *Client) CreateOrder(ctx context.Context, in orders.NewOrder, idempotencyKey string) (string, error) {
	body := map[string]interface{}{
		"title":          in.Title,
		"subtitle":       in.Subtitle,
		"message":        in.Message,
		"product_id":     in.ProductID,
		"product_name":   in.ProductName,
		"product_photos": in.ProductPhotos,
		"product_price":  in.ProductPrice,
	}
	if in.Email != "" {
		body["email"] = in.Email
	}
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", body, headers, &out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

// GetOrder returns (nil, nil) when the order does not exist.
func (c *Client) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var out orders.Order
	err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &out)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrdersByEmail(ctx context.Context, email string) ([]orders.Order, error) {
	var out struct {
		Orders []orders.Order `json:"orders"`
	}
	q := url.Values{"email": {email}}
	if err := c.do(ctx, http.MethodGet, "/orders?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Orders == nil {
		out.Orders = []orders.Order{}
	}
	return out.Orders, nil
}

func (c *Client) UpdateOrderWithFiles(ctx context.Context, id string, upd orders.FilesUpdate) error {
	body := map[string]interface{}{
		"images":     upd.Images,
		"first_name": upd.Shipping.FirstName,
		"last_name":  upd.Shipping.LastName,
		"email":      upd.Shipping.Email,
		"address":    upd.Shipping.Address,
		"city":       upd.Shipping.City,
		"state":      upd.Shipping.State,
		"zip":        upd.Shipping.Zip,
	}
	if upd.VideoStorageID != "" {
		body["video_storage_id"] = upd.VideoStorageID
	}
	return c.do(ctx, http.MethodPut, "/orders/"+url.PathEscape(id)+"/files", body, nil, nil)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status orders.Status) error {
	body := map[string]string{"status": string(status)}
	return c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/status", body, nil, nil)
}

// RequestUploadURL satisfies blobstore.TicketIssuer.
func (c *Client) RequestUploadURL(ctx context.Context, contentType string) (blobstore.Ticket, error) {
	var body interface{}
	if contentType != "" {
		body = map[string]string{"content_type": contentType}
	}
	var t blobstore.Ticket
	if err := c.do(ctx, http.MethodPost, "/uploads", body, nil, &t); err != nil {
		return blobstore.Ticket{}, err
	}
	return t, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, headers map[string]string, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Error  string            `json:"error"`
			Msg    string            `json:"msg"`
			Fields map[string]string `json:"fields"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code, apiErr.Msg, apiErr.Fields = payload.Error, payload.Msg, payload.Fields
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
