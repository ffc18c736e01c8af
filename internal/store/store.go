package store

import (
	"context"
	"errors"
	"fmt"

	"catsync/internal/logger"
	"catsync/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("product not found")

// Store is the product store: product snapshots plus per-product remote
// catalog identity metadata.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

func New(db *gorm.DB, logger *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// GetProduct loads a product snapshot. Variable parents come back with
// their variants attached in enumeration order.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}

	if product.IsVariable() {
		variants, err := s.GetVariants(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		product.Variants = variants
	}

	return &product, nil
}

// GetVariants returns the children of a variable parent in enumeration order.
func (s *Store) GetVariants(ctx context.Context, parentID string) ([]*models.Product, error) {
	var variants []*models.Product
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("position asc, created_at asc").
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variants: %w", err)
	}
	return variants, nil
}

// ListUnsyncedParentIDs enumerates published top-level products with no
// remote identity recorded, in creation order.
func (s *Store) ListUnsyncedParentIDs(ctx context.Context) ([]string, error) {
	return s.listParentIDs(ctx, "remote_group_id IS NULL AND remote_item_id IS NULL")
}

// ListSyncedParentIDs enumerates published top-level products that already
// carry a remote identity, in creation order.
func (s *Store) ListSyncedParentIDs(ctx context.Context) ([]string, error) {
	return s.listParentIDs(ctx, "remote_group_id IS NOT NULL OR remote_item_id IS NOT NULL")
}

func (s *Store) listParentIDs(ctx context.Context, condition string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("parent_id IS NULL AND published = ?", true).
		Where(condition).
		Order("created_at asc, id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate products: %w", err)
	}
	return ids, nil
}

func (s *Store) SaveRemoteGroupID(ctx context.Context, productID, groupID string) error {
	return s.updateColumn(ctx, productID, "remote_group_id", groupID)
}

func (s *Store) SaveRemoteItemID(ctx context.Context, productID, itemID string) error {
	return s.updateColumn(ctx, productID, "remote_item_id", itemID)
}

func (s *Store) updateColumn(ctx context.Context, productID, column, value string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update(column, value).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", column, err)
	}
	return nil
}

// ClearRemoteIDs drops both remote IDs for a product; the remote side is
// left untouched.
func (s *Store) ClearRemoteIDs(ctx context.Context, productID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{"remote_group_id": nil, "remote_item_id": nil}).Error
	if err != nil {
		return fmt.Errorf("failed to clear remote IDs: %w", err)
	}
	return nil
}

// ClearAllRemoteIDs resets remote identity metadata for the whole store.
func (s *Store) ClearAllRemoteIDs(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("remote_group_id IS NOT NULL OR remote_item_id IS NOT NULL").
		Updates(map[string]interface{}{"remote_group_id": nil, "remote_item_id": nil}).Error
	if err != nil {
		return fmt.Errorf("failed to reset remote IDs: %w", err)
	}
	return nil
}

// ListProducts pages through top-level products for the API.
func (s *Store) ListProducts(ctx context.Context, page, limit int, search string) ([]*models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{}).Where("parent_id IS NULL")

	if search != "" {
		query = query.Where("title LIKE ? OR sku LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var products []*models.Product
	offset := (page - 1) * limit
	if err := query.Order("created_at asc").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

func (s *Store) SaveProduct(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Save(product).Error; err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	err := s.db.WithContext(ctx).
		Where("id = ? OR parent_id = ?", productID, productID).
		Delete(&models.Product{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
