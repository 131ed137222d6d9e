package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_UsesTicketStorageID(t *testing.T) {
	var gotBody, gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.Client())
	id, err := u.Upload(context.Background(), Ticket{URL: srv.URL, StorageID: "uploads/x"}, "image/png", strings.NewReader("pixels"), 6)
	require.NoError(t, err)
	assert.Equal(t, "uploads/x", id)
	assert.Equal(t, "pixels", gotBody)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestUpload_ResponseStorageIDWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"storageId":"kg2abc"}`))
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.Client())
	ticket := Ticket{URL: srv.URL, Method: http.MethodPost, StorageID: "uploads/x", Headers: map[string]string{"X-Extra": "yes"}}
	id, err := u.Upload(context.Background(), ticket, "video/mp4", strings.NewReader("frames"), 6)
	require.NoError(t, err)
	assert.Equal(t, "kg2abc", id)
}

func TestUpload_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signature expired", http.StatusForbidden)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.Client())
	_, err := u.Upload(context.Background(), Ticket{URL: srv.URL, StorageID: "uploads/x"}, "image/png", strings.NewReader("p"), 1)
	require.ErrorIs(t, err, ErrUploadRejected)
	assert.Contains(t, err.Error(), "403")
}

func TestUpload_NoStorageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.Client())
	_, err := u.Upload(context.Background(), Ticket{URL: srv.URL}, "image/png", strings.NewReader("p"), 1)
	assert.ErrorIs(t, err, ErrUploadRejected)
}
