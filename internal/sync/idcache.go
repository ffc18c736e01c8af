package sync

import (
	"context"

	"catsync/internal/catalog"
	"catsync/internal/logger"
	"catsync/internal/models"
	"catsync/internal/store"
)

// Extra pages fetched per remote variation-ID lookup. Bounded to avoid an
// unbounded blocking walk of very large groups in one call.
const maxExtraPages = 2

// IDCache resolves a product's remote group/item IDs. Local persisted
// metadata wins; on a miss it falls back to querying the catalog by
// retailer ID and persists the answer. The fallback exists because local
// metadata can be lost (e.g. a re-import) while the remote entity still
// exists, and creating again would duplicate it.
type IDCache struct {
	store     *store.Store
	api       CatalogAPI
	catalogID string
	logger    *logger.Logger
}

func NewIDCache(st *store.Store, api CatalogAPI, catalogID string, logger *logger.Logger) *IDCache {
	return &IDCache{
		store:     st,
		api:       api,
		catalogID: catalogID,
		logger:    logger,
	}
}

// GroupID returns the product's remote group ID, or "" when none can be
// found. Lookup failures are logged and treated as not-found; the caller
// proceeds to create.
func (c *IDCache) GroupID(ctx context.Context, p *models.Product) string {
	if p.RemoteGroupID != nil && *p.RemoteGroupID != "" {
		return *p.RemoteGroupID
	}

	entry := c.lookup(ctx, p)
	if entry == nil || entry.ProductGroup.ID == "" {
		return ""
	}

	groupID := entry.ProductGroup.ID
	if err := c.store.SaveRemoteGroupID(ctx, p.ID, groupID); err != nil {
		c.logger.Error("Failed to persist recovered group ID for product %s: %v", p.ID, err)
	}
	p.RemoteGroupID = &groupID
	return groupID
}

// ItemID returns the product's remote item ID, or "" when none can be found.
func (c *IDCache) ItemID(ctx context.Context, p *models.Product) string {
	if p.RemoteItemID != nil && *p.RemoteItemID != "" {
		return *p.RemoteItemID
	}

	entry := c.lookup(ctx, p)
	if entry == nil || entry.ID == "" {
		return ""
	}

	itemID := entry.ID
	if err := c.store.SaveRemoteItemID(ctx, p.ID, itemID); err != nil {
		c.logger.Error("Failed to persist recovered item ID for product %s: %v", p.ID, err)
	}
	p.RemoteItemID = &itemID
	return itemID
}

func (c *IDCache) lookup(ctx context.Context, p *models.Product) *catalog.ProductIDEntry {
	// A variable parent has no catalog item of its own; correlate through
	// its first variant, whose entry carries the group ID.
	retailerID := p.RetailerID()
	if p.IsVariable() && len(p.Variants) > 0 {
		retailerID = p.Variants[0].RetailerID()
	}

	resp, err := c.api.GetProductIDs(ctx, c.catalogID, retailerID)
	if err != nil {
		c.logger.Error("Remote ID lookup failed for retailer ID %s: %v", retailerID, err)
		return nil
	}
	if len(resp.Data) == 0 {
		return nil
	}
	return &resp.Data[0]
}

// FindVariationItemIDs walks the group's items remotely and returns a
// retailer_id -> item_id map. Fetches at most maxExtraPages pages beyond
// the first; errors are logged and the partial result returned.
func (c *IDCache) FindVariationItemIDs(ctx context.Context, groupID string) map[string]string {
	itemIDs := make(map[string]string)

	resp, err := c.api.GetGroupProducts(ctx, groupID, "")
	if err != nil {
		c.logger.Error("Failed to find item IDs in product group %s: %v", groupID, err)
		return itemIDs
	}

	for retailerID, itemID := range resp.IDs() {
		itemIDs[retailerID] = itemID
	}

	for page := 0; page < maxExtraPages && resp.HasNextPage(); page++ {
		resp, err = c.api.GetGroupProducts(ctx, groupID, resp.Paging.Cursors.After)
		if err != nil {
			c.logger.Error("Failed to page item IDs in product group %s: %v", groupID, err)
			break
		}
		for retailerID, itemID := range resp.IDs() {
			itemIDs[retailerID] = itemID
		}
	}

	return itemIDs
}

// VariationItemIDs returns the item ID for each of a parent's variants,
// keyed by variant ID. Metadata is consulted first; variants without a
// stored item ID are repaired in one bulk remote lookup, and recovered IDs
// are persisted for future passes.
func (c *IDCache) VariationItemIDs(ctx context.Context, parent *models.Product, groupID string) map[string]string {
	itemIDsByVariant := make(map[string]string, len(parent.Variants))
	missing := make(map[string]*models.Product)

	for _, variant := range parent.Variants {
		if variant.RemoteItemID != nil && *variant.RemoteItemID != "" {
			itemIDsByVariant[variant.ID] = *variant.RemoteItemID
		} else {
			missing[variant.RetailerID()] = variant
		}
	}

	if len(missing) == 0 {
		return itemIDsByVariant
	}

	remoteIDs := c.FindVariationItemIDs(ctx, groupID)
	for retailerID, variant := range missing {
		itemID, ok := remoteIDs[retailerID]
		if !ok {
			continue
		}
		if err := c.store.SaveRemoteItemID(ctx, variant.ID, itemID); err != nil {
			c.logger.Error("Failed to persist recovered item ID for variant %s: %v", variant.ID, err)
			continue
		}
		variant.RemoteItemID = &itemID
		itemIDsByVariant[variant.ID] = itemID
	}

	return itemIDsByVariant
}
