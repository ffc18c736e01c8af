package sync

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/logger"
	"catsync/internal/models"
	"catsync/internal/store"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		CatalogID:          "catalog-1",
		CatalogAccessToken: "token",
		SyncEnabled:        true,
		SyncLockTimeout:    time.Minute,
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.BatchJob{}))

	return store.New(db, logger.New("error"))
}

func seedProduct(t *testing.T, st *store.Store, p *models.Product) *models.Product {
	t.Helper()
	if p.Currency == "" {
		p.Currency = "USD"
	}
	require.NoError(t, st.CreateProduct(context.Background(), p))
	return p
}

func strPtr(s string) *string {
	return &s
}

// fakeAPI is an in-memory CatalogAPI recording every call in order.
type fakeAPI struct {
	calls []string

	createGroupErr error
	createItemErr  error
	updateGroupErr error
	sendBatchErr   error
	deleteItemErr  error

	nextGroupID int
	nextItemID  int

	// retailer_id -> entry returned by GetProductIDs
	productIDs map[string]catalog.ProductIDEntry

	// pages returned by GetGroupProducts, keyed by after-cursor ("" first)
	groupPages map[string]*catalog.GroupProductsResponse

	catalogResp *catalog.Catalog
	catalogErr  error

	batches      [][]catalog.BatchRequest
	createdItems []catalog.ItemPayload
	groupUpdates []catalog.GroupData
	deletedItems []string

	lastRetailerLookup string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		productIDs:  make(map[string]catalog.ProductIDEntry),
		groupPages:  make(map[string]*catalog.GroupProductsResponse),
		catalogResp: &catalog.Catalog{ID: "catalog-1", Name: "Test Catalog"},
	}
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) CreateGroup(ctx context.Context, catalogID string, data catalog.GroupData) (*catalog.IDResponse, error) {
	f.record("create_group")
	if f.createGroupErr != nil {
		return nil, f.createGroupErr
	}
	f.nextGroupID++
	return &catalog.IDResponse{ID: fmt.Sprintf("group-%d", f.nextGroupID)}, nil
}

func (f *fakeAPI) UpdateGroup(ctx context.Context, groupID string, data catalog.GroupData) (*catalog.SuccessResponse, error) {
	f.record("update_group")
	if f.updateGroupErr != nil {
		return nil, f.updateGroupErr
	}
	f.groupUpdates = append(f.groupUpdates, data)
	return &catalog.SuccessResponse{Success: true}, nil
}

func (f *fakeAPI) CreateItem(ctx context.Context, containerID string, payload catalog.ItemPayload) (*catalog.IDResponse, error) {
	f.record("create_item")
	if f.createItemErr != nil {
		return nil, f.createItemErr
	}
	f.createdItems = append(f.createdItems, payload)
	f.nextItemID++
	return &catalog.IDResponse{ID: fmt.Sprintf("item-%d", f.nextItemID)}, nil
}

func (f *fakeAPI) UpdateItemVisibility(ctx context.Context, itemID, visibility string) (*catalog.SuccessResponse, error) {
	f.record("update_item_visibility")
	return &catalog.SuccessResponse{Success: true}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, itemID string) error {
	f.record("delete_item")
	if f.deleteItemErr != nil {
		return f.deleteItemErr
	}
	f.deletedItems = append(f.deletedItems, itemID)
	return nil
}

func (f *fakeAPI) GetProductIDs(ctx context.Context, catalogID, retailerID string) (*catalog.ProductIDsResponse, error) {
	f.record("get_product_ids")
	f.lastRetailerLookup = retailerID
	resp := &catalog.ProductIDsResponse{}
	if entry, ok := f.productIDs[retailerID]; ok {
		resp.Data = append(resp.Data, entry)
	}
	return resp, nil
}

func (f *fakeAPI) GetGroupProducts(ctx context.Context, groupID, after string) (*catalog.GroupProductsResponse, error) {
	f.record("get_group_products")
	if page, ok := f.groupPages[after]; ok {
		return page, nil
	}
	return &catalog.GroupProductsResponse{}, nil
}

func (f *fakeAPI) SendBatch(ctx context.Context, catalogID string, requests []catalog.BatchRequest) (*catalog.BatchResponse, error) {
	f.record("send_batch")
	if f.sendBatchErr != nil {
		return nil, f.sendBatchErr
	}
	f.batches = append(f.batches, requests)
	return &catalog.BatchResponse{Handles: []string{"handle-1"}}, nil
}

func (f *fakeAPI) GetCatalog(ctx context.Context, catalogID string) (*catalog.Catalog, error) {
	f.record("get_catalog")
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalogResp, nil
}

func (f *fakeAPI) callIndex(call string) int {
	for i, c := range f.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func transientError() *catalog.APIError {
	return &catalog.APIError{StatusCode: http.StatusServiceUnavailable, Message: "try again later"}
}

// fakeRunner records pushed IDs without doing any work.
type fakeRunner struct {
	pushed      []string
	dispatched  bool
	updating    bool
	remaining   int
	healthcheck int
}

func (r *fakeRunner) Push(productID string) {
	r.pushed = append(r.pushed, productID)
}

func (r *fakeRunner) SaveAndDispatch(ctx context.Context) error {
	r.dispatched = true
	return nil
}

func (r *fakeRunner) IsUpdating(ctx context.Context) bool {
	return r.updating
}

func (r *fakeRunner) RemainingCount(ctx context.Context) int {
	return r.remaining
}

func (r *fakeRunner) HandleHealthcheck(ctx context.Context) {
	r.healthcheck++
}
