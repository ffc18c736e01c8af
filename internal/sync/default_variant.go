package sync

import (
	"catsync/internal/models"
)

// DefaultVariantSelector picks the remote item to submit as a group's
// default_product_id. existing maps retailer ID to remote item ID for the
// variants confirmed to exist in the catalog; only those are candidates.
type DefaultVariantSelector interface {
	Select(parent *models.Product, existing map[string]string) string
}

// DefaultVariantFilter may override the selected default after computation.
// It receives the final value, not intermediate candidates. Returning ""
// suppresses the default_product_id submission.
type DefaultVariantFilter func(selected string, parent *models.Product, groupID string, existing map[string]string) string

// BestMatchSelector is the built-in selection algorithm: score each
// remote-confirmed variant by how many of its attribute pairs match the
// parent's configured default attributes. A variant matching all of its own
// attributes wins immediately; otherwise the highest partial count wins,
// with ties going to the first variant in enumeration order.
type BestMatchSelector struct{}

func (BestMatchSelector) Select(parent *models.Product, existing map[string]string) string {
	defaults := parent.DefaultAttributes
	if len(defaults) == 0 {
		return ""
	}

	var selected string
	bestMatchCount := 0

	for _, variant := range parent.Variants {
		itemID, ok := existing[variant.RetailerID()]
		if !ok {
			// Not confirmed in the catalog; never a candidate.
			continue
		}

		attrs := variant.VariantAttributes
		matching := 0
		for name, value := range attrs {
			if defaults[name] == value {
				matching++
			}
		}

		if matching == len(attrs) && len(attrs) > 0 {
			// Exact match, no need to look further.
			return itemID
		}
		if matching > bestMatchCount {
			bestMatchCount = matching
			selected = itemID
		}
	}

	return selected
}
