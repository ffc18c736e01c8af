package sync

import (
	"context"
	"errors"
	"fmt"

	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/logger"
	"catsync/internal/models"
	"catsync/internal/store"
)

// Outcome is the result of one reconciliation pass for one product.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
	OutcomeSkipped Outcome = "skipped"

	// OutcomeHealed means a create hit a duplicate-retailer-ID error and the
	// existing remote IDs were adopted; the next pass updates instead.
	OutcomeHealed Outcome = "healed"
)

// Reconciler drives create-vs-update decisions for a single product against
// the remote catalog. API failures leave the product in its prior recorded
// state so the next pass retries from scratch.
type Reconciler struct {
	cfg      *config.Config
	store    *store.Store
	api      CatalogAPI
	cache    *IDCache
	eval     *Evaluator
	logger   *logger.Logger
	selector DefaultVariantSelector
	filter   DefaultVariantFilter
	runner   Runner
}

func NewReconciler(cfg *config.Config, st *store.Store, api CatalogAPI, cache *IDCache, eval *Evaluator, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		store:    st,
		api:      api,
		cache:    cache,
		eval:     eval,
		logger:   logger,
		selector: BestMatchSelector{},
	}
}

// SetRunner makes variant fan-out go through the background queue instead
// of inline processing.
func (r *Reconciler) SetRunner(runner Runner) {
	r.runner = runner
}

// SetDefaultVariantSelector substitutes the default-variant algorithm.
func (r *Reconciler) SetDefaultVariantSelector(selector DefaultVariantSelector) {
	if selector != nil {
		r.selector = selector
	}
}

// SetDefaultVariantFilter installs a post-selection override hook.
func (r *Reconciler) SetDefaultVariantFilter(filter DefaultVariantFilter) {
	r.filter = filter
}

// SyncProduct runs one reconciliation pass for the given product,
// dispatching to the simple- or variable-product track.
func (r *Reconciler) SyncProduct(ctx context.Context, productID string) (Outcome, error) {
	product, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}

	switch {
	case product.IsVariable():
		return r.syncVariable(ctx, product)
	case product.IsVariant():
		return r.syncVariant(ctx, product)
	default:
		return r.syncSimple(ctx, product)
	}
}

func (r *Reconciler) syncSimple(ctx context.Context, product *models.Product) (Outcome, error) {
	if r.eval.ShouldDelete(product) {
		return r.deleteRemote(ctx, product)
	}
	if !r.eval.ShouldSync(product) {
		return OutcomeSkipped, nil
	}
	// Standalone items live directly under the catalog.
	return r.syncItem(ctx, product, r.cfg.CatalogID)
}

func (r *Reconciler) syncVariant(ctx context.Context, variant *models.Product) (Outcome, error) {
	if r.eval.ShouldDelete(variant) {
		return r.deleteRemote(ctx, variant)
	}
	if !r.eval.ShouldSync(variant) {
		return OutcomeSkipped, nil
	}
	if variant.ParentID == nil {
		return "", fmt.Errorf("variant %s has no parent", variant.ID)
	}

	parent, err := r.store.GetProduct(ctx, *variant.ParentID)
	if err != nil {
		return "", fmt.Errorf("failed to load parent of variant %s: %w", variant.ID, err)
	}

	// The parent's group must exist remotely before any of its items.
	groupID := r.cache.GroupID(ctx, parent)
	if groupID == "" {
		groupID, err = r.createGroup(ctx, parent)
		if err != nil {
			return "", err
		}
	}

	return r.syncItem(ctx, variant, groupID)
}

// syncItem is the shared create-or-update track for simple products and
// variants. Updates resubmit the full payload and are idempotent.
func (r *Reconciler) syncItem(ctx context.Context, product *models.Product, containerID string) (Outcome, error) {
	payload := buildItemPayload(product, r.eval.Visibility(product))

	if itemID := r.cache.ItemID(ctx, product); itemID != "" {
		requests := []catalog.BatchRequest{{
			Method:     catalog.BatchUpdate,
			RetailerID: product.RetailerID(),
			Data:       payload,
		}}
		if _, err := r.api.SendBatch(ctx, r.cfg.CatalogID, requests); err != nil {
			return r.apiFailure(product, "update item", err)
		}
		return OutcomeUpdated, nil
	}

	resp, err := r.api.CreateItem(ctx, containerID, payload)
	if err != nil {
		if r.adoptExistingIDs(ctx, product, err) {
			return OutcomeHealed, nil
		}
		return r.apiFailure(product, "create item", err)
	}

	if resp.ID != "" {
		if err := r.store.SaveRemoteItemID(ctx, product.ID, resp.ID); err != nil {
			return "", err
		}
		product.RemoteItemID = &resp.ID
	}
	return OutcomeCreated, nil
}

func (r *Reconciler) syncVariable(ctx context.Context, parent *models.Product) (Outcome, error) {
	if r.eval.ShouldDelete(parent) {
		return r.deleteRemote(ctx, parent)
	}
	if !r.eval.ShouldSync(parent) {
		return OutcomeSkipped, nil
	}

	created := false
	var groupErr error
	groupID := r.cache.GroupID(ctx, parent)
	if groupID == "" {
		var err error
		groupID, err = r.createGroup(ctx, parent)
		if err != nil {
			return r.apiFailure(parent, "create group", err)
		}
		created = true
	} else {
		// Resubmit the variants list and default product on every pass;
		// the update is idempotent and authoritative.
		if err := r.updateGroup(ctx, parent, groupID); err != nil {
			r.logger.Error("Failed to update product group %s: %v", groupID, err)
			groupErr = fmt.Errorf("failed to update group for product %s: %w", parent.ID, err)
		}
	}

	var pushed bool
	for _, variant := range parent.Variants {
		if r.eval.ShouldDelete(variant) {
			if _, err := r.deleteRemote(ctx, variant); err != nil {
				r.logger.Error("Failed to delete variant %s: %v", variant.ID, err)
			}
			continue
		}
		if !r.eval.ShouldSync(variant) {
			continue
		}

		if r.runner != nil {
			r.runner.Push(variant.ID)
			pushed = true
			continue
		}
		if _, err := r.syncItem(ctx, variant, groupID); err != nil {
			r.logger.Error("Failed to sync variant %s: %v", variant.ID, err)
		}
	}

	if pushed {
		if err := r.runner.SaveAndDispatch(ctx); err != nil {
			r.logger.Error("Failed to dispatch variant batch for product %s: %v", parent.ID, err)
		}
	}

	if groupErr != nil {
		// The children were still reconciled; the group resubmission is
		// retried on the next pass.
		return "", groupErr
	}
	if created {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

func (r *Reconciler) createGroup(ctx context.Context, parent *models.Product) (string, error) {
	data := catalog.GroupData{
		RetailerID: parent.RetailerID(),
		Variants:   buildGroupVariants(parent),
	}

	resp, err := r.api.CreateGroup(ctx, r.cfg.CatalogID, data)
	if err != nil {
		if r.adoptExistingIDs(ctx, parent, err) && parent.RemoteGroupID != nil {
			return *parent.RemoteGroupID, nil
		}
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create group for product %s returned no ID", parent.ID)
	}

	if err := r.store.SaveRemoteGroupID(ctx, parent.ID, resp.ID); err != nil {
		return "", err
	}
	parent.RemoteGroupID = &resp.ID
	return resp.ID, nil
}

func (r *Reconciler) updateGroup(ctx context.Context, parent *models.Product, groupID string) error {
	variants := buildGroupVariants(parent)
	if len(variants) == 0 {
		r.logger.Debug("Nothing to update for product group %s", groupID)
		return nil
	}

	data := catalog.GroupData{Variants: variants}

	// Stored metadata answers for most variants; only the ones missing an
	// item ID trigger a remote walk of the group.
	byVariant := r.cache.VariationItemIDs(ctx, parent, groupID)
	existing := make(map[string]string, len(byVariant))
	for _, v := range parent.Variants {
		if itemID, ok := byVariant[v.ID]; ok {
			existing[v.RetailerID()] = itemID
		}
	}

	selected := r.selector.Select(parent, existing)
	if r.filter != nil {
		selected = r.filter(selected, parent, groupID, existing)
	}
	if selected != "" {
		data.DefaultProductID = selected
	}

	_, err := r.api.UpdateGroup(ctx, groupID, data)
	return err
}

// DeleteProduct removes the product's remote entities and clears local
// remote-ID metadata. Exposed for delete triggers; the reconciler also
// routes here when the deletion policy mandates removal.
func (r *Reconciler) DeleteProduct(ctx context.Context, productID string) (Outcome, error) {
	product, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	return r.deleteRemote(ctx, product)
}

func (r *Reconciler) deleteRemote(ctx context.Context, product *models.Product) (Outcome, error) {
	if product.IsVariable() {
		for _, variant := range product.Variants {
			if variant.RemoteItemID == nil || *variant.RemoteItemID == "" {
				continue
			}
			if err := r.api.DeleteItem(ctx, *variant.RemoteItemID); err != nil {
				return r.apiFailure(variant, "delete item", err)
			}
			if err := r.store.ClearRemoteIDs(ctx, variant.ID); err != nil {
				return "", err
			}
		}
	} else if product.RemoteItemID != nil && *product.RemoteItemID != "" {
		if err := r.api.DeleteItem(ctx, *product.RemoteItemID); err != nil {
			return r.apiFailure(product, "delete item", err)
		}
	}

	if err := r.store.ClearRemoteIDs(ctx, product.ID); err != nil {
		return "", err
	}
	product.RemoteGroupID = nil
	product.RemoteItemID = nil
	return OutcomeDeleted, nil
}

// UpdateVisibility flips only the visibility of an already-synced product,
// without a full resync. Products never synced are left alone.
func (r *Reconciler) UpdateVisibility(ctx context.Context, productID string, visible bool) error {
	product, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	product.CatalogVisible = visible
	if err := r.store.SaveProduct(ctx, product); err != nil {
		return err
	}

	visibility := models.VisibilityHidden
	if visible {
		visibility = models.VisibilityVisible
	}

	targets := []*models.Product{product}
	if product.IsVariable() {
		// Groups carry no visibility of their own; flip the children.
		targets = product.Variants
	}

	for _, target := range targets {
		if target.RemoteItemID == nil || *target.RemoteItemID == "" {
			continue
		}
		if _, err := r.api.UpdateItemVisibility(ctx, *target.RemoteItemID, visibility); err != nil {
			r.logger.Error("Failed to update visibility for item %s: %v", *target.RemoteItemID, err)
		}
	}
	return nil
}

// adoptExistingIDs handles the duplicate-retailer-ID race: the remote
// service already has an entity for the ID we tried to create. Capture the
// embedded existing IDs so the next pass updates instead of creating again.
func (r *Reconciler) adoptExistingIDs(ctx context.Context, product *models.Product, err error) bool {
	var apiErr *catalog.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsDuplicateRetailerID() {
		return false
	}

	adopted := false
	if apiErr.ExistingGroupID != "" {
		if err := r.store.SaveRemoteGroupID(ctx, product.ID, apiErr.ExistingGroupID); err == nil {
			product.RemoteGroupID = &apiErr.ExistingGroupID
			adopted = true
		}
	}
	if apiErr.ExistingItemID != "" {
		if err := r.store.SaveRemoteItemID(ctx, product.ID, apiErr.ExistingItemID); err == nil {
			product.RemoteItemID = &apiErr.ExistingItemID
			adopted = true
		}
	}

	if adopted {
		r.logger.Info("Adopted existing remote IDs for product %s after duplicate retailer ID error", product.ID)
	}
	return adopted
}

func (r *Reconciler) apiFailure(product *models.Product, operation string, err error) (Outcome, error) {
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) && apiErr.IsExpiredCredential() {
		r.logger.Error("Failed to %s for product %s: the catalog connection has expired", operation, product.ID)
	} else {
		r.logger.Error("Failed to %s for product %s: %v", operation, product.ID, err)
	}
	// No state change: the product stays in its prior recorded state and
	// the next pass retries from scratch.
	return "", fmt.Errorf("failed to %s for product %s: %w", operation, product.ID, err)
}
