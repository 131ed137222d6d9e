package checkout

import (
	"errors"
	"sort"
	"strings"

	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

// Notification is what the customer is told after a submission attempt.
// Redirect, when set, names where the flow should continue.
type Notification struct {
	Title       string
	Description string
	Redirect    string
	Retryable   bool
}

// Notify converts the result of Submit into a customer-facing message.
func Notify(err error) Notification {
	var (
		ve *orders.ValidationError
		ue *UploadError
	)
	switch {
	case err == nil:
		return Notification{
			Title:       "Order Placed Successfully!",
			Description: "Thank you for your order. You'll receive a confirmation email shortly.",
			Redirect:    "/",
		}
	case errors.Is(err, ErrNoActiveOrder):
		return Notification{
			Title:       "No order in progress",
			Description: "Choose a product and arrange your storybook first.",
			Redirect:    "/shop",
		}
	case errors.Is(err, ErrOrderGone), errors.Is(err, orders.ErrNotFound):
		return Notification{
			Title:       "Error",
			Description: "Order not found. Please start again.",
			Redirect:    "/",
		}
	case errors.Is(err, orders.ErrInvalidTransition):
		return Notification{
			Title:       "Order can no longer be submitted",
			Description: "This order was closed. Please start a new order.",
			Redirect:    "/shop",
		}
	case errors.Is(err, ErrSubmissionInFlight):
		return Notification{
			Title:       "Please wait",
			Description: "Your order is already being submitted.",
		}
	case errors.As(err, &ve):
		return validationNotification(ve)
	case errors.As(err, &ue):
		if ue.Video {
			return Notification{
				Title:       "Error uploading video",
				Description: "Failed to upload video. Please try again.",
				Retryable:   true,
			}
		}
		return Notification{
			Title:       "Error uploading image",
			Description: "Failed to upload image. Please try again.",
			Retryable:   true,
		}
	default:
		return Notification{
			Title:       "Error",
			Description: "Failed to process order. Please try again.",
			Retryable:   true,
		}
	}
}

func validationNotification(ve *orders.ValidationError) Notification {
	if msg, ok := ve.Fields["images"]; ok {
		title := "Invalid images"
		switch {
		case strings.HasPrefix(msg, "Please upload at least"):
			title = "Not enough images"
		case strings.HasPrefix(msg, "You can upload a maximum"):
			title = "Too many images"
		}
		return Notification{Title: title, Description: msg, Retryable: true}
	}
	fields := make([]string, 0, len(ve.Fields))
	for k := range ve.Fields {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return Notification{
		Title:       "Missing details",
		Description: "Please check: " + strings.Join(fields, ", "),
		Retryable:   true,
	}
}
