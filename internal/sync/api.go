package sync

import (
	"context"

	"catsync/internal/catalog"
)

// CatalogAPI is the slice of the remote catalog client the sync engine
// consumes. *catalog.Client satisfies it.
type CatalogAPI interface {
	CreateGroup(ctx context.Context, catalogID string, data catalog.GroupData) (*catalog.IDResponse, error)
	UpdateGroup(ctx context.Context, groupID string, data catalog.GroupData) (*catalog.SuccessResponse, error)
	CreateItem(ctx context.Context, containerID string, payload catalog.ItemPayload) (*catalog.IDResponse, error)
	UpdateItemVisibility(ctx context.Context, itemID, visibility string) (*catalog.SuccessResponse, error)
	DeleteItem(ctx context.Context, itemID string) error
	GetProductIDs(ctx context.Context, catalogID, retailerID string) (*catalog.ProductIDsResponse, error)
	GetGroupProducts(ctx context.Context, groupID, after string) (*catalog.GroupProductsResponse, error)
	SendBatch(ctx context.Context, catalogID string, requests []catalog.BatchRequest) (*catalog.BatchResponse, error)
	GetCatalog(ctx context.Context, catalogID string) (*catalog.Catalog, error)
}

// Runner is the durable background queue the orchestrator hands work to.
// Implementations must survive process restarts and guarantee at most one
// active drain loop per job.
type Runner interface {
	// Push appends a product ID to the pending batch.
	Push(productID string)

	// SaveAndDispatch persists the pending batch and kicks off processing.
	SaveAndDispatch(ctx context.Context) error

	// IsUpdating reports whether a batch is currently being drained.
	IsUpdating(ctx context.Context) bool

	// RemainingCount is the authoritative number of items left to process.
	RemainingCount(ctx context.Context) int

	// HandleHealthcheck resumes stalled processing; invoked by the host
	// scheduler and after dispatch.
	HandleHealthcheck(ctx context.Context)
}
