package orders

import (
	"fmt"
	"time"
)

// Status is the order lifecycle state.
type Status string

// Order statuses
const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus rejects anything outside the closed set of statuses.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

// Arrangement is what the customer picks on the customization step.
// Product display fields are filled from the catalog on create.
type Arrangement struct {
	Title         string `dynamodbav:"title" json:"title" validate:"required"`
	Subtitle      string `dynamodbav:"subtitle,omitempty" json:"subtitle,omitempty"`
	Message       string `dynamodbav:"message,omitempty" json:"message,omitempty"`
	ProductID     string `dynamodbav:"product_id" json:"product_id" validate:"required,product_tier"`
	ProductName   string `dynamodbav:"product_name" json:"product_name"`
	ProductPhotos string `dynamodbav:"product_photos" json:"product_photos"`
	ProductPrice  int    `dynamodbav:"product_price" json:"product_price"`
}

// Shipping holds customer and address fields. They may be empty while the
// order is pending but all are required to finalize it. Attributes are
// omitted when empty: email is a GSI key and DynamoDB rejects empty keys.
type Shipping struct {
	FirstName string `dynamodbav:"first_name,omitempty" json:"first_name" validate:"required"`
	LastName  string `dynamodbav:"last_name,omitempty" json:"last_name" validate:"required"`
	Email     string `dynamodbav:"email,omitempty" json:"email" validate:"required,email"`
	Address   string `dynamodbav:"address,omitempty" json:"address" validate:"required"`
	City      string `dynamodbav:"city,omitempty" json:"city" validate:"required"`
	State     string `dynamodbav:"state,omitempty" json:"state" validate:"required"`
	Zip       string `dynamodbav:"zip,omitempty" json:"zip" validate:"required"`
}

// Order represents the item stored in the orders DynamoDB table.
type Order struct {
	OrderID string `dynamodbav:"order_id" json:"order_id"` // PK
	Arrangement
	Shipping
	Images         map[string]string `dynamodbav:"images,omitempty" json:"images,omitempty"` // slot key -> storage id
	VideoStorageID string            `dynamodbav:"video_storage_id,omitempty" json:"video_storage_id,omitempty"`
	Status         Status            `dynamodbav:"status" json:"status"`
	CreatedAt      time.Time         `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `dynamodbav:"updated_at" json:"updated_at"`
}

// NewOrder is the input of CreateOrder. Status is accepted for wire
// compatibility and ignored: new orders always start pending.
type NewOrder struct {
	Arrangement
	Shipping
	Images         map[string]string
	VideoStorageID string
	Status         Status
}

// FilesUpdate replaces the attachments and shipping fields of an order.
// An empty VideoStorageID removes any previously attached video.
type FilesUpdate struct {
	Images         map[string]string
	VideoStorageID string
	Shipping       Shipping
}

// SubmittedEvent is published to the orders queue when an order enters
// processing.
type SubmittedEvent struct {
	EventID     string    `json:"event_id"`
	OrderID     string    `json:"order_id"`
	Status      Status    `json:"status"`
	ProductID   string    `json:"product_id"`
	ImageCount  int       `json:"image_count"`
	HasVideo    bool      `json:"has_video"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ImageSlotKey names the attachment slot of the i-th image (zero based).
func ImageSlotKey(i int) string {
	return fmt.Sprintf("image-%02d", i+1)
}
