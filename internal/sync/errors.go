package sync

import (
	"errors"
	"fmt"
)

// Batch-level precondition errors. These abort a full sync before anything
// is enqueued and are never retried automatically.
var (
	ErrSyncDisabled   = errors.New("product sync is disabled")
	ErrNotConfigured  = errors.New("the catalog connection is not configured or the catalog ID is missing")
	ErrCatalogInvalid = errors.New("the remote product catalog is no longer valid")
	ErrSyncInProgress = errors.New("a product sync is in progress; wait until it finishes before starting a new one")
)

// ItemError records a single product's failure during a batch run. Per-item
// failures never abort the batch.
type ItemError struct {
	ProductID string
	Err       error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BatchSummary aggregates the outcome of one full-catalog sync.
type BatchSummary struct {
	Total   int  `json:"total"`
	New     int  `json:"new"`
	Synced  int  `json:"synced"`
	Deleted int  `json:"deleted"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	Async   bool `json:"async"`

	Errors []ItemError `json:"-"`
}

func (s *BatchSummary) record(productID string, outcome Outcome, err error) {
	if err != nil {
		s.Failed++
		s.Errors = append(s.Errors, ItemError{ProductID: productID, Err: err})
		return
	}
	switch outcome {
	case OutcomeDeleted:
		s.Deleted++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Synced++
	}
}
