package blobstore

import (
	"context"
	"io"
)

// TicketIssuer hands out upload tickets. S3Store implements it directly;
// the CLI uses the API client.
type TicketIssuer interface {
	RequestUploadURL(ctx context.Context, contentType string) (Ticket, error)
}

// Client pairs a ticket issuer with an uploader so callers can request a
// destination and send bytes through one value.
type Client struct {
	Issuer   TicketIssuer
	Uploader *HTTPUploader
}

func (c *Client) RequestUploadURL(ctx context.Context, contentType string) (Ticket, error) {
	return c.Issuer.RequestUploadURL(ctx, contentType)
}

func (c *Client) Upload(ctx context.Context, t Ticket, contentType string, body io.Reader, size int64) (string, error) {
	return c.Uploader.Upload(ctx, t, contentType, body, size)
}
