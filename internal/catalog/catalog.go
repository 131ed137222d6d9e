// Package catalog holds the three Storybook product tiers and the rules that
// derive photo limits from them.
package catalog

import "strings"

// MinImages is the number of photos every finalized order must carry,
// whatever the tier.
const MinImages = 24

const (
	TierEssential = "essential"
	TierSignature = "signature"
	TierLegacy    = "legacy"
)

// Product is one purchasable tier. Price is in whole currency units.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int      `json:"price"`
	Photos      string   `json:"photos"`
	MaxImages   int      `json:"max_images"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

var products = []Product{
	{
		ID:          TierEssential,
		Name:        "Essential",
		Description: "Perfect for capturing your most treasured moments",
		Price:       79,
		Photos:      "24 photos",
		MaxImages:   24,
		Features: []string{
			"24 high-quality photos",
			"1 video message",
			"Hardcover binding",
			"Standard delivery",
		},
	},
	{
		ID:          TierSignature,
		Name:        "Signature",
		Description: "Our most popular choice for family stories",
		Price:       129,
		Photos:      "36 photos",
		MaxImages:   36,
		Features: []string{
			"36 high-quality photos",
			"1 video message",
			"Premium linen cover",
			"Gift box included",
			"Priority delivery",
		},
		Popular: true,
	},
	{
		ID:          TierLegacy,
		Name:        "Legacy",
		Description: "The ultimate keepsake for generations to come",
		Price:       199,
		Photos:      "48 photos",
		MaxImages:   48,
		Features: []string{
			"48 high-quality photos",
			"1 video message",
			"Leather-bound cover",
			"Luxury gift box",
			"Express delivery",
			"Archival-quality paper",
		},
	},
}

// All returns the tiers in display order.
func All() []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

func Lookup(id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// MaxImages returns the photo limit of a tier. Unknown tiers get the minimum.
func MaxImages(tierID string) int {
	if p, ok := Lookup(tierID); ok {
		return p.MaxImages
	}
	return MinImages
}

// MaxImagesForDescriptor derives the photo limit from a stored descriptor
// such as "36 photos". Orders only keep the descriptor, so checkout reads
// the limit from it.
func MaxImagesForDescriptor(desc string) int {
	switch {
	case strings.Contains(desc, "48"):
		return 48
	case strings.Contains(desc, "36"):
		return 36
	default:
		return MinImages
	}
}
