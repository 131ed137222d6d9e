package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUploadRejected is returned when the upload endpoint answers non-2xx.
var ErrUploadRejected = errors.New("upload rejected")

const maxResponseBody = 64 << 10

// HTTPUploader sends file bytes to the URL of a Ticket.
type HTTPUploader struct {
	client *http.Client
}

func NewHTTPUploader(client *http.Client) *HTTPUploader {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPUploader{client: client}
}

// Upload sends body to the ticket URL and returns the storage id of the
// stored blob. A JSON response carrying storageId takes precedence over the
// id the ticket was issued with.
func (u *HTTPUploader) Upload(ctx context.Context, t Ticket, contentType string, body io.Reader, size int64) (string, error) {
	method := t.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, t.URL, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send upload: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		StorageID string `json:"storageId"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil && parsed.StorageID != "" {
		return parsed.StorageID, nil
	}
	if t.StorageID == "" {
		return "", fmt.Errorf("%w: no storage id in response", ErrUploadRejected)
	}
	return t.StorageID, nil
}
