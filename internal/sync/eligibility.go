package sync

import (
	"catsync/internal/config"
	"catsync/internal/models"
)

// Evaluator decides whether a product belongs in the remote catalog. Pure
// decision logic: no side effects, and ineligibility is a normal outcome,
// never an error.
type Evaluator struct {
	cfg *config.Config
}

func NewEvaluator(cfg *config.Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// ShouldSync runs the exclusion chain; any failing rule short-circuits.
func (e *Evaluator) ShouldSync(p *models.Product) bool {
	if !e.cfg.SyncEnabled {
		return false
	}
	if !p.Published {
		return false
	}
	if intersects(p.Categories, e.cfg.ExcludedCategories) {
		return false
	}
	if intersects(p.Tags, e.cfg.ExcludedTags) {
		return false
	}
	if p.Virtual && !e.cfg.SyncVirtualProducts {
		return false
	}
	// Minimum fields for catalog submission. Variable parents carry no
	// price of their own; their variants are validated individually.
	if p.Title == "" {
		return false
	}
	if !p.IsVariable() && p.Price <= 0 {
		return false
	}
	return true
}

// Excluded reports whether the product is ruled out by the store-wide
// excluded category/tag sets. Excluded products are never enumerated for
// sync, whatever their stock or visibility state.
func (e *Evaluator) Excluded(p *models.Product) bool {
	return intersects(p.Categories, e.cfg.ExcludedCategories) ||
		intersects(p.Tags, e.cfg.ExcludedTags)
}

// ShouldDelete reports whether the product's current state mandates removal
// from the catalog rather than an update.
func (e *Evaluator) ShouldDelete(p *models.Product) bool {
	return e.cfg.DeleteOnOutOfStock && p.StockStatus == models.StockOutOfStock
}

// Visibility derives the catalog visibility for a product from its publish
// state and explicit catalog-visibility flag. Recomputed on every pass.
func (e *Evaluator) Visibility(p *models.Product) string {
	if p.Published && p.CatalogVisible {
		return models.VisibilityVisible
	}
	return models.VisibilityHidden
}

func intersects(values, excluded []string) bool {
	if len(values) == 0 || len(excluded) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(excluded))
	for _, v := range excluded {
		set[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
