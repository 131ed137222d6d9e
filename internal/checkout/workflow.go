package checkout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	validatorv10 "github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
	"github.com/imrishuroy/storybook-orderflow/internal/validation"
)

// OrderService is the part of the order lifecycle checkout drives.
// orders.Service and apiclient.Client both satisfy it.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	UpdateOrderWithFiles(ctx context.Context, id string, upd orders.FilesUpdate) error
	UpdateOrderStatus(ctx context.Context, id string, status orders.Status) error
}

// BlobStore issues upload tickets and sends bytes to them.
type BlobStore interface {
	RequestUploadURL(ctx context.Context, contentType string) (blobstore.Ticket, error)
	Upload(ctx context.Context, t blobstore.Ticket, contentType string, body io.Reader, size int64) (string, error)
}

// Submission is everything the customer provides on the checkout step.
type Submission struct {
	Images   []File
	Video    *File
	Shipping orders.Shipping
}

type Stage string

const (
	StageLoading         Stage = "loading"
	StageValidating      Stage = "validating"
	StageUploadingImages Stage = "uploading_images"
	StageUploadingVideo  Stage = "uploading_video"
	StageSaving          Stage = "saving"
	StageSubmitting      Stage = "submitting"
	StageDone            Stage = "done"
)

// Progress is reported as the submission advances. Done and Total count
// uploads during the upload stages.
type Progress struct {
	Stage Stage
	Done  int
	Total int
}

// Workflow turns a pending order plus picked files into a submitted order.
type Workflow struct {
	orders      OrderService
	blobs       BlobStore
	session     *Session
	store       *SessionStore
	concurrency int
	progress    func(Progress)
	logger      *log.Entry
	validate    *validatorv10.Validate

	inFlight   atomic.Bool
	mu         sync.Mutex // guards session.Staged
	progressMu sync.Mutex // serializes progress calls
}

type Option func(*Workflow)

// WithConcurrency uploads up to n images at once. Slot order always
// follows the order of the submitted images.
func WithConcurrency(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithProgress registers fn for progress reports. Calls never overlap, even
// with concurrent uploads, and Done only grows within a stage, so fn need
// not be safe for concurrent use.
func WithProgress(fn func(Progress)) Option {
	return func(w *Workflow) { w.progress = fn }
}

// WithSessionStore persists the session after every change.
func WithSessionStore(store *SessionStore) Option {
	return func(w *Workflow) { w.store = store }
}

func WithLogger(l *log.Entry) Option {
	return func(w *Workflow) { w.logger = l }
}

func New(svc OrderService, blobs BlobStore, session *Session, opts ...Option) *Workflow {
	if session == nil {
		session = &Session{}
	}
	w := &Workflow{
		orders:      svc,
		blobs:       blobs,
		session:     session,
		concurrency: 1,
		progress:    func(Progress) {},
		logger:      log.NewEntry(log.StandardLogger()),
		validate:    validation.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithField("component", "checkout")
	return w
}

func (w *Workflow) Session() *Session { return w.session }

// Submit uploads the files, attaches them with the shipping details and
// moves the order to processing. On failure the session keeps its order id
// so the customer can retry; confirmed uploads are reused by the retry.
func (w *Workflow) Submit(ctx context.Context, sub Submission) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}
	defer w.inFlight.Store(false)

	orderID := w.session.OrderID
	if orderID == "" {
		return ErrNoActiveOrder
	}
	logger := w.logger.WithField("order_id", orderID)

	w.report(Progress{Stage: StageLoading})
	order, err := w.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		w.session.OrderID = ""
		w.persist()
		return ErrOrderGone
	}

	w.report(Progress{Stage: StageValidating})
	sub.Shipping = trimShipping(sub.Shipping)
	if err := w.check(order, sub); err != nil {
		return err
	}

	imageIDs, err := w.uploadImages(ctx, sub.Images)
	if err != nil {
		w.persist()
		logger.WithError(err).Warn("image upload failed")
		return err
	}

	var videoID string
	if sub.Video != nil {
		w.report(Progress{Stage: StageUploadingVideo, Total: 1})
		videoID, err = w.upload(ctx, *sub.Video)
		if err != nil {
			w.persist()
			logger.WithError(err).Warn("video upload failed")
			return &UploadError{File: sub.Video.Name, Video: true, Index: -1, Err: err}
		}
		w.report(Progress{Stage: StageUploadingVideo, Done: 1, Total: 1})
	}
	w.persist()

	images := make(map[string]string, len(imageIDs))
	for i, id := range imageIDs {
		images[orders.ImageSlotKey(i)] = id
	}

	w.report(Progress{Stage: StageSaving})
	err = w.orders.UpdateOrderWithFiles(ctx, orderID, orders.FilesUpdate{
		Images:         images,
		VideoStorageID: videoID,
		Shipping:       sub.Shipping,
	})
	if err != nil {
		return fmt.Errorf("attach files: %w", err)
	}

	w.report(Progress{Stage: StageSubmitting})
	if err := w.orders.UpdateOrderStatus(ctx, orderID, orders.StatusProcessing); err != nil {
		return fmt.Errorf("submit order: %w", err)
	}

	w.session.Reset()
	w.persist()
	logger.WithFields(log.Fields{"images": len(images), "has_video": videoID != ""}).Info("order submitted")
	w.report(Progress{Stage: StageDone})
	return nil
}

// check runs before any upload so a rejected submission costs nothing.
func (w *Workflow) check(order *orders.Order, sub Submission) error {
	fields := map[string]string{}
	if err := w.validate.Struct(sub.Shipping); err != nil {
		fields = validation.FieldErrors(err)
	}

	limit := catalog.MaxImagesForDescriptor(order.ProductPhotos)
	switch n := len(sub.Images); {
	case n < catalog.MinImages:
		fields["images"] = fmt.Sprintf("Please upload at least %d images.", catalog.MinImages)
	case n > limit:
		fields["images"] = fmt.Sprintf("You can upload a maximum of %d images.", limit)
	default:
		for _, f := range sub.Images {
			if !f.IsImage() {
				fields["images"] = fmt.Sprintf("%s is not an image", f.Name)
				break
			}
		}
	}
	if sub.Video != nil && !sub.Video.IsVideo() {
		fields["video"] = fmt.Sprintf("%s is not a video", sub.Video.Name)
	}

	if len(fields) > 0 {
		return &orders.ValidationError{Fields: fields}
	}
	return nil
}

func (w *Workflow) uploadImages(ctx context.Context, files []File) ([]string, error) {
	total := len(files)
	ids := make([]string, total)
	w.report(Progress{Stage: StageUploadingImages, Total: total})

	if w.concurrency <= 1 {
		for i, f := range files {
			id, err := w.upload(ctx, f)
			if err != nil {
				return nil, &UploadError{File: f.Name, Index: i, Err: err}
			}
			ids[i] = id
			w.report(Progress{Stage: StageUploadingImages, Done: i + 1, Total: total})
		}
		return ids, nil
	}

	done := 0 // guarded by progressMu
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, f := range files {
		g.Go(func() error {
			id, err := w.upload(gctx, f)
			if err != nil {
				return &UploadError{File: f.Name, Index: i, Err: err}
			}
			ids[i] = id
			w.progressMu.Lock()
			done++
			w.progress(Progress{Stage: StageUploadingImages, Done: done, Total: total})
			w.progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (w *Workflow) report(p Progress) {
	w.progressMu.Lock()
	defer w.progressMu.Unlock()
	w.progress(p)
}

// upload reuses a staged id for content that was already confirmed.
func (w *Workflow) upload(ctx context.Context, f File) (string, error) {
	fp := f.Fingerprint()
	if id, ok := w.staged(fp); ok {
		return id, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ticket, err := w.blobs.RequestUploadURL(ctx, f.ContentType)
	if err != nil {
		return "", fmt.Errorf("request upload url: %w", err)
	}
	id, err := w.blobs.Upload(ctx, ticket, f.ContentType, bytes.NewReader(f.Data), f.Size())
	if err != nil {
		return "", err
	}
	w.stage(fp, id)
	return id, nil
}

func (w *Workflow) staged(fp string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.session.Staged[fp]
	return id, ok
}

func (w *Workflow) stage(fp, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session.Staged == nil {
		w.session.Staged = map[string]string{}
	}
	w.session.Staged[fp] = id
}

func (w *Workflow) persist() {
	if w.store == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.store.Save(w.session); err != nil {
		w.logger.WithError(err).Warn("save session")
	}
}

func trimShipping(sh orders.Shipping) orders.Shipping {
	return orders.Shipping{
		FirstName: strings.TrimSpace(sh.FirstName),
		LastName:  strings.TrimSpace(sh.LastName),
		Email:     strings.TrimSpace(sh.Email),
		Address:   strings.TrimSpace(sh.Address),
		City:      strings.TrimSpace(sh.City),
		State:     strings.TrimSpace(sh.State),
		Zip:       strings.TrimSpace(sh.Zip),
	}
}
