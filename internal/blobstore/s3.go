package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	awsclient "github.com/imrishuroy/storybook-orderflow/internal/aws"
)

// ErrPresign is returned when an upload URL could not be issued.
var ErrPresign = errors.New("issue upload url")

// Ticket is a single-use upload destination. StorageID names the blob once
// the bytes have been sent to URL.
type Ticket struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	StorageID string            `json:"storage_id"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// S3Store issues presigned PUT URLs into one bucket and answers existence
// checks for stored blobs.
type S3Store struct {
	presign awsclient.S3PresignAPI
	objects awsclient.S3API
	bucket  string
	prefix  string
	ttl     time.Duration
	nowFunc func() time.Time
	newID   func() string
}

func NewS3Store(presign awsclient.S3PresignAPI, objects awsclient.S3API, bucket, prefix string, ttl time.Duration) *S3Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Store{
		presign: presign,
		objects: objects,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		ttl:     ttl,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

func (s *S3Store) Bucket() string { return s.bucket }

// RequestUploadURL presigns a PUT for a fresh key. When contentType is set
// it is part of the signature and the uploader must send the same value.
func (s *S3Store) RequestUploadURL(ctx context.Context, contentType string) (Ticket, error) {
	key := s.newKey()
	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}
	if contentType != "" {
		input.ContentType = &contentType
	}

	issued := s.nowFunc().UTC()
	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: presign put %s: %w", ErrPresign, key, err)
	}

	headers := map[string]string{}
	for name, values := range req.SignedHeader {
		if strings.EqualFold(name, "host") || len(values) == 0 {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = values[0]
	}
	method := req.Method
	if method == "" {
		method = http.MethodPut
	}
	return Ticket{
		URL:       req.URL,
		Method:    method,
		StorageID: key,
		Headers:   headers,
		ExpiresAt: issued.Add(s.ttl),
	}, nil
}

// RequestUploadURLs issues n tickets. It fails as a whole if any one fails.
func (s *S3Store) RequestUploadURLs(ctx context.Context, n int, contentType string) ([]Ticket, error) {
	if n <= 0 {
		return []Ticket{}, nil
	}
	tickets := make([]Ticket, 0, n)
	for i := 0; i < n; i++ {
		t, err := s.RequestUploadURL(ctx, contentType)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// Exists reports whether a blob was stored under storageID.
func (s *S3Store) Exists(ctx context.Context, storageID string) (bool, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &storageID,
	})
	if err == nil {
		return true, nil
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", storageID, err)
}

func (s *S3Store) newKey() string {
	if s.prefix == "" {
		return s.newID()
	}
	return path.Join(s.prefix, s.newID())
}
