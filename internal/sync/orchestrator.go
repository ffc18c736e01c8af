package sync

import (
	"context"
	"errors"
	"fmt"

	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/logger"
	"catsync/internal/store"
)

// Orchestrator drives a full-catalog sync: precondition checks, product
// enumeration, and either a foreground reconciliation loop or a hand-off to
// the durable background queue.
type Orchestrator struct {
	cfg    *config.Config
	store  *store.Store
	api    CatalogAPI
	eval   *Evaluator
	rec    *Reconciler
	lock   *Lock
	runner Runner
	logger *logger.Logger
}

func NewOrchestrator(cfg *config.Config, st *store.Store, api CatalogAPI, eval *Evaluator, rec *Reconciler, lock *Lock, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		store:  st,
		api:    api,
		eval:   eval,
		rec:    rec,
		lock:   lock,
		logger: logger,
	}
}

// SetRunner enables asynchronous mode: SyncAll enqueues work and returns
// instead of looping inline.
func (o *Orchestrator) SetRunner(runner Runner) {
	o.runner = runner
}

// Lock exposes the sync lock for status reporting.
func (o *Orchestrator) Lock() *Lock {
	return o.lock
}

// SyncAll reconciles the whole catalog. Precondition failures return a
// typed error before anything is enqueued; per-product failures are
// aggregated in the summary and never abort the batch.
func (o *Orchestrator) SyncAll(ctx context.Context) (*BatchSummary, error) {
	if !o.cfg.SyncEnabled {
		o.logger.Debug("Not syncing, product sync is disabled")
		return nil, ErrSyncDisabled
	}
	if !o.cfg.IsConfigured() {
		o.logger.Debug("Not syncing, the catalog connection is not configured")
		return nil, ErrNotConfigured
	}

	// The remote catalog can be deleted out from under us; abort when the
	// presence check fails or comes back without an ID.
	cat, err := o.api.GetCatalog(ctx, o.cfg.CatalogID)
	if err != nil {
		var apiErr *catalog.APIError
		if errors.As(err, &apiErr) && apiErr.IsExpiredCredential() {
			return nil, fmt.Errorf("%w: the catalog connection has expired, reconnect and update the access token", ErrCatalogInvalid)
		}
		o.logger.Error("Not syncing, catalog lookup failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}
	if cat.ID == "" {
		o.logger.Error("Not syncing, invalid product catalog")
		return nil, ErrCatalogInvalid
	}

	if o.runner != nil && o.runner.IsUpdating(ctx) {
		o.runner.HandleHealthcheck(ctx)
		o.logger.Debug("Not syncing again, sync already in progress")
		return nil, ErrSyncInProgress
	}
	if !o.lock.TryAcquire() {
		o.logger.Debug("Not syncing again, sync already in progress")
		return nil, ErrSyncInProgress
	}

	productIDs, totalNew, err := o.enumerate(ctx)
	if err != nil {
		o.lock.Release()
		return nil, err
	}

	total := len(productIDs)
	o.logger.Info("Attempting to sync %d products (%d new)", total, totalNew)

	summary := &BatchSummary{Total: total, New: totalNew}

	if o.runner != nil {
		return o.syncInBackground(ctx, summary, productIDs)
	}
	return o.syncForeground(ctx, summary, productIDs)
}

// enumerate lists every eligible product exactly once: never-synced first,
// then previously-synced, each partition in original enumeration order.
func (o *Orchestrator) enumerate(ctx context.Context) ([]string, int, error) {
	newIDs, err := o.store.ListUnsyncedParentIDs(ctx)
	if err != nil {
		return nil, 0, err
	}
	oldIDs, err := o.store.ListSyncedParentIDs(ctx)
	if err != nil {
		return nil, 0, err
	}

	eligibleNew := o.filterEligible(ctx, newIDs)
	eligibleOld := o.filterEligible(ctx, oldIDs)

	return append(eligibleNew, eligibleOld...), len(eligibleNew), nil
}

func (o *Orchestrator) filterEligible(ctx context.Context, ids []string) []string {
	eligible := make([]string, 0, len(ids))
	for _, id := range ids {
		product, err := o.store.GetProduct(ctx, id)
		if err != nil {
			o.logger.Error("Skipping product %s, snapshot load failed: %v", id, err)
			continue
		}
		if o.eval.Excluded(product) {
			continue
		}
		// Deletion candidates stay in the list so the pass can remove them
		// remotely.
		if o.eval.ShouldSync(product) || o.eval.ShouldDelete(product) {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

// syncInBackground pushes the full ordered ID list into the durable queue
// and returns immediately. The queue's own remaining-count is authoritative
// from here on; the lock simply expires on its fixed timeout.
func (o *Orchestrator) syncInBackground(ctx context.Context, summary *BatchSummary, productIDs []string) (*BatchSummary, error) {
	o.logger.Info("Starting background sync: %d products", summary.Total)

	for _, id := range productIDs {
		o.logger.Debug("Pushing product to queue: %s", id)
		o.runner.Push(id)
	}

	if err := o.runner.SaveAndDispatch(ctx); err != nil {
		o.lock.Release()
		return nil, fmt.Errorf("failed to dispatch background sync: %w", err)
	}

	// Re-assert the total after dispatch; the queue's internal accounting
	// may race with an enqueue-in-progress read.
	o.lock.SetRemaining(summary.Total)
	o.runner.HandleHealthcheck(ctx)

	summary.Async = true
	return summary, nil
}

// syncForeground loops the reconciler over every product inline, blocking
// the caller for the full catalog walk.
func (o *Orchestrator) syncForeground(ctx context.Context, summary *BatchSummary, productIDs []string) (*BatchSummary, error) {
	o.lock.SetRemaining(summary.Total)

	for i, id := range productIDs {
		if ctx.Err() != nil {
			o.logger.Warn("Sync interrupted after %d of %d products", i, summary.Total)
			break
		}

		// Keep the lock alive while in the loop.
		o.lock.Refresh()

		outcome, err := o.rec.SyncProduct(ctx, id)
		summary.record(id, outcome, err)

		o.lock.IncrementProgress()
		o.lock.SetRemaining(summary.Total - i - 1)
	}

	o.logger.Info("Product sync complete: %d synced, %d deleted, %d skipped, %d failed",
		summary.Synced, summary.Deleted, summary.Skipped, summary.Failed)
	o.lock.Release()
	return summary, nil
}
