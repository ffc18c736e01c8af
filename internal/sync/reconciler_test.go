package sync

import (
	"context"
	"testing"

	"catsync/internal/catalog"
	"catsync/internal/logger"
	"catsync/internal/models"
	"catsync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T, st *store.Store, api *fakeAPI) *Reconciler {
	t.Helper()
	cfg := testConfig()
	log := logger.New("error")
	eval := NewEvaluator(cfg)
	cache := NewIDCache(st, api, cfg.CatalogID, log)
	return NewReconciler(cfg, st, api, cache, eval, log)
}

func seedSimple(t *testing.T, st *store.Store, id string) *models.Product {
	t.Helper()
	return seedProduct(t, st, &models.Product{
		ID:             id,
		Type:           models.TypeSimple,
		SKU:            "sku-" + id,
		Title:          "Product " + id,
		Price:          10,
		Published:      true,
		CatalogVisible: true,
		StockStatus:    models.StockInStock,
	})
}

func seedVariable(t *testing.T, st *store.Store, id string, variantAttrs ...map[string]string) *models.Product {
	t.Helper()
	parent := seedProduct(t, st, &models.Product{
		ID:             id,
		Type:           models.TypeVariable,
		SKU:            "sku-" + id,
		Title:          "Product " + id,
		Published:      true,
		CatalogVisible: true,
		StockStatus:    models.StockInStock,
	})
	for i, attrs := range variantAttrs {
		seedProduct(t, st, &models.Product{
			ID:                parent.ID + "-v" + string(rune('a'+i)),
			ParentID:          &parent.ID,
			Type:              models.TypeVariant,
			SKU:               parent.SKU,
			Title:             parent.Title,
			Price:             10,
			Published:         true,
			CatalogVisible:    true,
			StockStatus:       models.StockInStock,
			Position:          i + 1,
			VariantAttributes: attrs,
		})
	}
	return parent
}

func TestSyncSimpleCreatesItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")

	outcome, err := rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	saved, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.RemoteItemID)
	assert.Equal(t, "item-1", *saved.RemoteItemID)
	assert.Equal(t, p.RetailerID(), api.createdItems[0].RetailerID)
}

func TestSyncSimpleUpdatesExistingItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")
	require.NoError(t, st.SaveRemoteItemID(ctx, p.ID, "item-9"))

	outcome, err := rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	// No create: the update goes out as a single-entry batch.
	assert.Equal(t, -1, api.callIndex("create_item"))
	require.Len(t, api.batches, 1)
	require.Len(t, api.batches[0], 1)
	assert.Equal(t, catalog.BatchUpdate, api.batches[0][0].Method)
	assert.Equal(t, p.RetailerID(), api.batches[0][0].RetailerID)
}

func TestSyncSimpleUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")
	require.NoError(t, st.SaveRemoteItemID(ctx, p.ID, "item-9"))

	_, err := rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)

	require.Len(t, api.batches, 2)
	assert.Equal(t, api.batches[0], api.batches[1], "unchanged snapshot resubmits an identical payload")
}

func TestSyncSimpleSkipsIneligible(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	p := seedProduct(t, st, &models.Product{
		ID:        "p1",
		Type:      models.TypeSimple,
		Title:     "Unpublished",
		Price:     10,
		Published: false,
	})

	outcome, err := rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, api.calls, "ineligible products never reach the API")
}

func TestSyncSimpleFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	api.createItemErr = transientError()
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")

	_, err := rec.SyncProduct(ctx, p.ID)
	require.Error(t, err)

	saved, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, saved.RemoteItemID, "a failed create records nothing; the next pass retries")
}

func TestSyncSimpleHealsDuplicateRetailerID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	api.createItemErr = &catalog.APIError{
		StatusCode:     400,
		Code:           catalog.CodeDuplicateRetailerID,
		Message:        "duplicate retailer id",
		ExistingItemID: "item-42",
	}
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")

	outcome, err := rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHealed, outcome)

	saved, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.RemoteItemID)
	assert.Equal(t, "item-42", *saved.RemoteItemID)

	// Next pass updates the adopted item instead of creating again.
	outcome, err = rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	require.Len(t, api.batches, 1)
	assert.Equal(t, catalog.BatchUpdate, api.batches[0][0].Method)
}

func TestSyncVariableCreatesGroupBeforeItems(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red"},
		map[string]string{"color": "blue"},
	)

	outcome, err := rec.SyncProduct(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	groupIdx := api.callIndex("create_group")
	itemIdx := api.callIndex("create_item")
	require.GreaterOrEqual(t, groupIdx, 0)
	require.GreaterOrEqual(t, itemIdx, 0)
	assert.Less(t, groupIdx, itemIdx, "the group must exist before any of its items")

	assert.Len(t, api.createdItems, 2)

	saved, err := st.GetProduct(ctx, parent.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.RemoteGroupID)
	assert.Equal(t, "group-1", *saved.RemoteGroupID)
	for _, v := range saved.Variants {
		assert.NotNil(t, v.RemoteItemID)
	}
}

func TestSyncVariableUpdatesGroupWithDefaultVariant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red", "size": "S"},
		map[string]string{"color": "red", "size": "M"},
	)
	parent.DefaultAttributes = map[string]string{"color": "red", "size": "M"}
	require.NoError(t, st.SaveProduct(ctx, parent))
	require.NoError(t, st.SaveRemoteGroupID(ctx, parent.ID, "group-7"))

	variants, err := st.GetVariants(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[0].ID, "item-a"))
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[1].ID, "item-b"))

	page := &catalog.GroupProductsResponse{}
	page.Data = []catalog.GroupProductEntry{
		{ID: "item-a", RetailerID: variants[0].RetailerID()},
		{ID: "item-b", RetailerID: variants[1].RetailerID()},
	}
	api.groupPages[""] = page

	outcome, err := rec.SyncProduct(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	require.Len(t, api.groupUpdates, 1)
	assert.Equal(t, "item-b", api.groupUpdates[0].DefaultProductID,
		"the variant matching the configured defaults becomes the group default")
	assert.NotEmpty(t, api.groupUpdates[0].Variants)
}

func TestSyncVariableGroupUpdateUsesStoredItemIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red", "size": "S"},
		map[string]string{"color": "red", "size": "M"},
	)
	parent.DefaultAttributes = map[string]string{"color": "red", "size": "M"}
	require.NoError(t, st.SaveProduct(ctx, parent))
	require.NoError(t, st.SaveRemoteGroupID(ctx, parent.ID, "group-7"))

	variants, err := st.GetVariants(ctx, parent.ID)
	require.NoError(t, err)
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[0].ID, "item-a"))
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[1].ID, "item-b"))

	_, err = rec.SyncProduct(ctx, parent.ID)
	require.NoError(t, err)

	assert.Equal(t, -1, api.callIndex("get_group_products"),
		"variants with stored item IDs never trigger a remote group walk")
	require.Len(t, api.groupUpdates, 1)
	assert.Equal(t, "item-b", api.groupUpdates[0].DefaultProductID)
}

func TestSyncVariableGroupUpdateRepairsMissingItemIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red", "size": "S"},
		map[string]string{"color": "red", "size": "M"},
	)
	parent.DefaultAttributes = map[string]string{"color": "red", "size": "M"}
	require.NoError(t, st.SaveProduct(ctx, parent))
	require.NoError(t, st.SaveRemoteGroupID(ctx, parent.ID, "group-7"))

	variants, err := st.GetVariants(ctx, parent.ID)
	require.NoError(t, err)
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[0].ID, "item-a"))

	page := &catalog.GroupProductsResponse{}
	page.Data = []catalog.GroupProductEntry{
		{ID: "item-b", RetailerID: variants[1].RetailerID()},
	}
	api.groupPages[""] = page

	_, err = rec.SyncProduct(ctx, parent.ID)
	require.NoError(t, err)

	require.Len(t, api.groupUpdates, 1)
	assert.Equal(t, "item-b", api.groupUpdates[0].DefaultProductID,
		"the remotely repaired variant is still a default candidate")

	saved, err := st.GetProduct(ctx, variants[1].ID)
	require.NoError(t, err)
	require.NotNil(t, saved.RemoteItemID)
	assert.Equal(t, "item-b", *saved.RemoteItemID)
}

func TestSyncVariableGroupUpdateFailureCountsAsFailed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	api.updateGroupErr = transientError()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red"},
		map[string]string{"color": "blue"},
	)
	require.NoError(t, st.SaveRemoteGroupID(ctx, parent.ID, "group-7"))

	_, err := rec.SyncProduct(ctx, parent.ID)
	require.Error(t, err, "a failed group resubmission surfaces in the batch accounting")

	assert.Len(t, api.createdItems, 2, "the children are still reconciled")
}

func TestSyncVariableDefaultVariantFilterOverrides(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)
	rec.SetDefaultVariantFilter(func(selected string, parent *models.Product, groupID string, existing map[string]string) string {
		return "item-override"
	})

	parent := seedVariable(t, st, "p1", map[string]string{"color": "red"})
	require.NoError(t, st.SaveRemoteGroupID(ctx, parent.ID, "group-7"))

	_, err := rec.SyncProduct(ctx, parent.ID)
	require.NoError(t, err)

	require.Len(t, api.groupUpdates, 1)
	assert.Equal(t, "item-override", api.groupUpdates[0].DefaultProductID)
}

func TestSyncVariablePushesVariantsToRunner(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)
	runner := &fakeRunner{}
	rec.SetRunner(runner)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red"},
		map[string]string{"color": "blue"},
	)

	_, err := rec.SyncProduct(ctx, parent.ID)
	require.NoError(t, err)

	assert.Len(t, runner.pushed, 2, "variant fan-out goes through the queue")
	assert.True(t, runner.dispatched)
	assert.Empty(t, api.createdItems, "no inline item writes when a runner is installed")
}

func TestSyncVariantEnsuresParentGroup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1", map[string]string{"color": "red"})
	variants, err := st.GetVariants(ctx, parent.ID)
	require.NoError(t, err)

	outcome, err := rec.SyncProduct(ctx, variants[0].ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	assert.Less(t, api.callIndex("create_group"), api.callIndex("create_item"))

	saved, err := st.GetProduct(ctx, parent.ID)
	require.NoError(t, err)
	assert.NotNil(t, saved.RemoteGroupID)
}

func TestDeleteOnOutOfStock(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)
	rec.cfg.DeleteOnOutOfStock = true

	p := seedSimple(t, st, "p1")
	require.NoError(t, st.SaveRemoteItemID(ctx, p.ID, "item-9"))

	loaded, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	loaded.StockStatus = models.StockOutOfStock
	require.NoError(t, st.SaveProduct(ctx, loaded))

	outcome, err := rec.SyncProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Equal(t, []string{"item-9"}, api.deletedItems)

	saved, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, saved.RemoteItemID, "local remote-ID metadata is cleared with the remote item")
}

func TestDeleteProductVariable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	parent := seedVariable(t, st, "p1",
		map[string]string{"color": "red"},
		map[string]string{"color": "blue"},
	)
	require.NoError(t, st.SaveRemoteGroupID(ctx, parent.ID, "group-7"))
	variants, err := st.GetVariants(ctx, parent.ID)
	require.NoError(t, err)
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[0].ID, "item-a"))
	require.NoError(t, st.SaveRemoteItemID(ctx, variants[1].ID, "item-b"))

	outcome, err := rec.DeleteProduct(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.ElementsMatch(t, []string{"item-a", "item-b"}, api.deletedItems)

	saved, err := st.GetProduct(ctx, parent.ID)
	require.NoError(t, err)
	assert.Nil(t, saved.RemoteGroupID)
	for _, v := range saved.Variants {
		assert.Nil(t, v.RemoteItemID)
	}
}

func TestUpdateVisibility(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")
	require.NoError(t, st.SaveRemoteItemID(ctx, p.ID, "item-9"))

	require.NoError(t, rec.UpdateVisibility(ctx, p.ID, false))

	assert.Equal(t, []string{"update_item_visibility"}, api.calls,
		"visibility flips touch only the visibility endpoint")

	saved, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, saved.CatalogVisible)
}

func TestUpdateVisibilitySkipsUnsynced(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	api := newFakeAPI()
	rec := newTestReconciler(t, st, api)

	p := seedSimple(t, st, "p1")

	require.NoError(t, rec.UpdateVisibility(ctx, p.ID, false))
	assert.Equal(t, -1, api.callIndex("update_item_visibility"),
		"products never synced have no remote item to touch")
}
