package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveOrder means the session holds no order to check out.
	ErrNoActiveOrder = errors.New("no active order")
	// ErrOrderGone means the session's order no longer exists.
	ErrOrderGone = errors.New("order no longer exists")
	// ErrSubmissionInFlight is returned to a second concurrent Submit.
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrUploadFailure      = errors.New("upload failed")
)

// UploadError reports which attachment failed. It matches ErrUploadFailure.
type UploadError struct {
	File  string
	Video bool
	// Index is the position of the image in the submission, -1 for the video.
	Index int
	Err   error
}

func (e *UploadError) Error() string {
	kind := "image"
	if e.Video {
		kind = "video"
	}
	return fmt.Sprintf("upload %s %q: %v", kind, e.File, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUploadFailure }
