package handlers

import (
	"errors"
	"net/http"

	"catsync/internal/config"
	"catsync/internal/logger"
	"catsync/internal/store"
	"catsync/internal/sync"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	cfg    *config.Config
	orch   *sync.Orchestrator
	rec    *sync.Reconciler
	store  *store.Store
	runner sync.Runner
	logger *logger.Logger
}

func NewSyncHandler(cfg *config.Config, orch *sync.Orchestrator, rec *sync.Reconciler, st *store.Store, runner sync.Runner, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		cfg:    cfg,
		orch:   orch,
		rec:    rec,
		store:  st,
		runner: runner,
		logger: logger,
	}
}

// SyncAll triggers a full catalog sync.
func (h *SyncHandler) SyncAll(c *gin.Context) {
	summary, err := h.orch.SyncAll(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, sync.ErrSyncDisabled), errors.Is(err, sync.ErrNotConfigured), errors.Is(err, sync.ErrCatalogInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// Status reports background-queue state, the shape the admin UI polls.
func (h *SyncHandler) Status(c *gin.Context) {
	connected := h.cfg.IsConfigured()
	if !connected {
		c.JSON(http.StatusOK, gin.H{"connected": false, "background": false})
		return
	}

	if h.runner == nil {
		c.JSON(http.StatusOK, gin.H{"connected": true, "background": false})
		return
	}

	ctx := c.Request.Context()
	h.runner.HandleHealthcheck(ctx)

	c.JSON(http.StatusOK, gin.H{
		"connected":  true,
		"background": true,
		"processing": h.runner.IsUpdating(ctx) || h.orch.Lock().IsLocked(),
		"remaining":  h.runner.RemainingCount(ctx),
	})
}

// SyncProduct reconciles a single product on demand.
func (h *SyncHandler) SyncProduct(c *gin.Context) {
	id := c.Param("id")

	outcome, err := h.rec.SyncProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"outcome": outcome}})
}

// DeleteRemote removes a product's remote catalog entities.
func (h *SyncHandler) DeleteRemote(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.rec.DeleteProduct(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// SetVisibility flips catalog visibility without a full resync.
func (h *SyncHandler) SetVisibility(c *gin.Context) {
	id := c.Param("id")

	var body struct {
		Visible *bool `json:"visible" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rec.UpdateVisibility(c.Request.Context(), id, *body.Visible); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"visible": *body.Visible}})
}

// ResetAll clears remote-ID metadata for every product. The remote catalog
// is left untouched.
func (h *SyncHandler) ResetAll(c *gin.Context) {
	if err := h.store.ClearAllRemoteIDs(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reset": true}})
}

// ResetProduct clears remote-ID metadata for one product.
func (h *SyncHandler) ResetProduct(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.ClearRemoteIDs(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reset": true}})
}
