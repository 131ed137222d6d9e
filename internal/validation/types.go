package validation

// CreateOrderRequest is the payload for POST /orders. Shipping fields are
// optional here and become required on PUT /orders/:id/files.
type CreateOrderRequest struct {
	Title     string `json:"title" validate:"required"`
	Subtitle  string `json:"subtitle,omitempty"`
	Message   string `json:"message,omitempty"`
	ProductID string `json:"product_id" validate:"required,product_tier"`
	// display fields echoed by the arrange step; the catalog stays authoritative
	ProductName   string `json:"product_name,omitempty"`
	ProductPhotos string `json:"product_photos,omitempty"`
	ProductPrice  int    `json:"product_price,omitempty" validate:"omitempty,gt=0"`

	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`

	Images         map[string]string `json:"images,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	VideoStorageID string            `json:"video_storage_id,omitempty"`
	// accepted and ignored: new orders always start pending
	Status string `json:"status,omitempty" validate:"omitempty,order_status"`
}

// UpdateFilesRequest is the payload for PUT /orders/:id/files.
type UpdateFilesRequest struct {
	Images         map[string]string `json:"images" validate:"required,min=24,max=48,dive,keys,required,endkeys,required"`
	VideoStorageID string            `json:"video_storage_id,omitempty"`

	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Zip       string `json:"zip" validate:"required"`
}

// UpdateStatusRequest is the payload for PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// UploadURLRequest is the optional payload for POST /uploads.
type UploadURLRequest struct {
	ContentType string `json:"content_type,omitempty" validate:"omitempty,media_type"`
}

// UploadBatchRequest is the payload for POST /uploads/batch.
type UploadBatchRequest struct {
	Count       int    `json:"count" validate:"required,min=1,max=48"`
	ContentType string `json:"content_type,omitempty" validate:"omitempty,media_type"`
}
