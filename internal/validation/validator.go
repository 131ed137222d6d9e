package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
)

// New returns a configured validator with the custom tags and struct-level
// validation registered. Field errors are reported under their JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("product_tier", func(fl validatorv10.FieldLevel) bool {
		_, ok := catalog.Lookup(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		switch fl.Field().String() {
		case "draft", "pending", "processing", "completed", "cancelled":
			return true
		}
		return false
	})
	_ = v.RegisterValidation("media_type", func(fl validatorv10.FieldLevel) bool {
		ct := fl.Field().String()
		return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
	})

	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// createOrderStructValidation checks the request against the chosen tier:
// an echoed price must match the catalog and attachments must fit the tier.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	product, ok := catalog.Lookup(req.ProductID)
	if !ok {
		// reported by the product_tier tag
		return
	}
	if req.ProductPrice != 0 && req.ProductPrice != product.Price {
		sl.ReportError(req.ProductPrice, "product_price", "ProductPrice", "price_match_product",
			fmt.Sprintf("price %d != catalog price %d", req.ProductPrice, product.Price))
	}
	if len(req.Images) > product.MaxImages {
		sl.ReportError(req.Images, "images", "Images", "max_images_for_tier",
			fmt.Sprintf("%d images exceed the %s limit of %d", len(req.Images), product.ID, product.MaxImages))
	}
}
