package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/storybook-orderflow/internal/apiclient"
	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
	"github.com/imrishuroy/storybook-orderflow/internal/checkout"
	"github.com/imrishuroy/storybook-orderflow/internal/config"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

// errSubmitFailed is returned after the notification was already printed.
var errSubmitFailed = errors.New("checkout did not complete")

type app struct {
	api      *apiclient.Client
	sessions *checkout.SessionStore
	logger   *log.Entry
	out      io.Writer
}

func newApp(cfg config.Config, logger *log.Entry, out io.Writer) (*app, error) {
	path := cfg.SessionPath
	if path == "" {
		p, err := checkout.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &app{
		api:      apiclient.New(cfg.APIURL, nil),
		sessions: checkout.NewSessionStore(path),
		logger:   logger,
		out:      out,
	}, nil
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	products, err := a.api.Products(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tPHOTOS\t")
	for _, p := range products {
		name := p.Name
		if p.Popular {
			name += " (most popular)"
		}
		fmt.Fprintf(tw, "%s\t%s\t$%d\t%s\t\n", p.ID, name, p.Price, p.Photos)
	}
	return tw.Flush()
}

func (a *app) arrange(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("arrange", flag.ContinueOnError)
	productID := fs.String("product", catalog.TierEssential, "product tier: essential, signature or legacy")
	title := fs.String("title", "", "book title (required)")
	subtitle := fs.String("subtitle", "", "book subtitle")
	message := fs.String("message", "", "dedication message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	product, ok := catalog.Lookup(*productID)
	if !ok {
		return fmt.Errorf("unknown product %q, see `storybook products`", *productID)
	}
	if strings.TrimSpace(*title) == "" {
		return errors.New("-title is required")
	}

	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}
	sess.Reset()
	sess.Draft = &checkout.Draft{
		Title:     *title,
		Subtitle:  *subtitle,
		Message:   *message,
		ProductID: product.ID,
		Product:   product,
	}

	id, err := a.api.CreateOrder(ctx, orders.NewOrder{
		Arrangement: orders.Arrangement{
			Title:         *title,
			Subtitle:      *subtitle,
			Message:       *message,
			ProductID:     product.ID,
			ProductName:   product.Name,
			ProductPhotos: product.Photos,
			ProductPrice:  product.Price,
		},
	}, uuid.NewString())
	if err != nil {
		return err
	}
	sess.OrderID = id
	if err := a.sessions.Save(sess); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Order %s opened for %s (%s, $%d).\n", id, product.Name, product.Photos, product.Price)
	fmt.Fprintf(a.out, "Next: storybook checkout -images DIR (between %d and %d photos).\n", catalog.MinImages, product.MaxImages)
	return nil
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	imagesDir := fs.String("images", "", "directory holding the photos, used in name order")
	videoPath := fs.String("video", "", "optional video message")
	concurrency := fs.Int("concurrency", 1, "photos uploaded at once")
	var sh orders.Shipping
	fs.StringVar(&sh.FirstName, "first-name", "", "first name")
	fs.StringVar(&sh.LastName, "last-name", "", "last name")
	fs.StringVar(&sh.Email, "email", "", "email address")
	fs.StringVar(&sh.Address, "address", "", "street address")
	fs.StringVar(&sh.City, "city", "", "city")
	fs.StringVar(&sh.State, "state", "", "state")
	fs.StringVar(&sh.Zip, "zip", "", "zip code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *imagesDir == "" {
		return errors.New("-images is required")
	}

	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}
	if sess.OrderID != "" {
		// details saved on an earlier attempt fill any flag left out
		order, err := a.api.GetOrder(ctx, sess.OrderID)
		if err != nil {
			a.logger.WithError(err).Debug("load order for shipping defaults")
		} else if order != nil {
			sh = fillShipping(sh, order.Shipping)
		}
	}
	sub := checkout.Submission{Shipping: sh}
	if sub.Images, err = checkout.ReadImageDir(*imagesDir); err != nil {
		return err
	}
	if *videoPath != "" {
		v, err := checkout.ReadFile(*videoPath)
		if err != nil {
			return err
		}
		sub.Video = &v
	}

	blobs := &blobstore.Client{Issuer: a.api, Uploader: blobstore.NewHTTPUploader(nil)}
	wf := checkout.New(a.api, blobs, sess,
		checkout.WithConcurrency(*concurrency),
		checkout.WithSessionStore(a.sessions),
		checkout.WithLogger(a.logger),
		checkout.WithProgress(a.printProgress),
	)

	submitErr := wf.Submit(ctx, sub)
	n := checkout.Notify(submitErr)
	fmt.Fprintf(a.out, "%s\n%s\n", n.Title, n.Description)
	if submitErr == nil {
		return nil
	}
	a.logger.WithError(submitErr).Debug("checkout failed")
	switch {
	case n.Redirect == "/shop":
		fmt.Fprintln(a.out, "Start with: storybook products, then storybook arrange.")
	case n.Redirect != "":
		fmt.Fprintln(a.out, "Start again with: storybook arrange.")
	case n.Retryable:
		fmt.Fprintln(a.out, "Run the same checkout command again to retry; finished uploads are reused.")
	}
	return errSubmitFailed
}

// fillShipping returns sh with each blank field taken from saved.
func fillShipping(sh, saved orders.Shipping) orders.Shipping {
	pick := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}
	return orders.Shipping{
		FirstName: pick(sh.FirstName, saved.FirstName),
		LastName:  pick(sh.LastName, saved.LastName),
		Email:     pick(sh.Email, saved.Email),
		Address:   pick(sh.Address, saved.Address),
		City:      pick(sh.City, saved.City),
		State:     pick(sh.State, saved.State),
		Zip:       pick(sh.Zip, saved.Zip),
	}
}

func (a *app) printProgress(p checkout.Progress) {
	switch p.Stage {
	case checkout.StageUploadingImages:
		if p.Total > 0 && p.Done > 0 {
			fmt.Fprintf(a.out, "\ruploading photos %d/%d", p.Done, p.Total)
			if p.Done == p.Total {
				fmt.Fprintln(a.out)
			}
		}
	case checkout.StageUploadingVideo:
		if p.Done == 0 {
			fmt.Fprintln(a.out, "uploading video")
		}
	case checkout.StageSubmitting:
		fmt.Fprintln(a.out, "submitting order")
	}
}

func (a *app) orders(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	email := fs.String("email", "", "email address used at checkout (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}
	list, err := a.api.GetOrdersByEmail(ctx, *email)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(a.out, "No orders for %s.\n", *email)
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tTITLE\tPRODUCT\tPHOTOS\tSTATUS\tPLACED\t")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t\n",
			o.OrderID, o.Title, o.ProductName, len(o.Images), o.Status, o.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}
