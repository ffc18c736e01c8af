package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductType string

const (
	TypeSimple   ProductType = "simple"
	TypeVariable ProductType = "variable"
	TypeVariant  ProductType = "variant"
	TypeOther    ProductType = "other"
)

type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
	StockBackorder  StockStatus = "BACKORDER"
)

const (
	VisibilityVisible = "published"
	VisibilityHidden  = "staging"
)

type Product struct {
	ID          string      `json:"id" gorm:"type:uuid;primary_key"`
	ParentID    *string     `json:"parent_id" gorm:"index"`
	Type        ProductType `json:"type" gorm:"not null;default:simple"`
	SKU         string      `json:"sku"`
	Title       string      `json:"title" gorm:"not null"`
	Description *string     `json:"description"`
	URL         *string     `json:"url"`
	Price       float64     `json:"price" gorm:"type:decimal(10,2)"`
	Currency    string      `json:"currency" gorm:"default:USD"`
	Published   bool        `json:"published" gorm:"default:true"`
	Virtual     bool        `json:"virtual" gorm:"default:false"`
	StockStatus StockStatus `json:"stock_status" gorm:"default:IN_STOCK"`

	// Explicit catalog-visibility flag, independent of publish state.
	CatalogVisible bool `json:"catalog_visible" gorm:"default:true"`

	Images     []string `json:"images" gorm:"serializer:json"`
	Categories []string `json:"categories" gorm:"serializer:json"`
	Tags       []string `json:"tags" gorm:"serializer:json"`

	// Structured catalog attributes.
	Brand     *string `json:"brand"`
	Size      *string `json:"size"`
	Color     *string `json:"color"`
	Material  *string `json:"material"`
	Pattern   *string `json:"pattern"`
	Condition *string `json:"condition"`
	AgeGroup  *string `json:"age_group"`
	Gender    *string `json:"gender"`

	// Anything the structured fields don't cover.
	Extra map[string]string `json:"extra" gorm:"serializer:json"`

	// Attribute combination distinguishing a variant within its parent,
	// e.g. {"color": "red", "size": "M"}.
	VariantAttributes map[string]string `json:"variant_attributes" gorm:"serializer:json"`

	// Default attribute combination configured on a variable parent.
	DefaultAttributes map[string]string `json:"default_attributes" gorm:"serializer:json"`

	// Remote catalog identity, absent until first successful sync.
	// A group ID is recorded only for variable parents; an item ID only
	// for simple products and variants.
	RemoteGroupID *string `json:"remote_group_id" gorm:"index"`
	RemoteItemID  *string `json:"remote_item_id"`

	Position  int       `json:"position" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Children of a variable parent, in enumeration order.
	Variants []*Product `json:"variants,omitempty" gorm:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (p *Product) IsVariable() bool {
	return p.Type == TypeVariable
}

func (p *Product) IsVariant() bool {
	return p.Type == TypeVariant
}

// RetailerID is the deterministic external identifier used to correlate
// this product with its remote catalog entity.
func (p *Product) RetailerID() string {
	if p.SKU != "" {
		return p.SKU + "_" + p.ID
	}
	return "catsync_" + p.ID
}

// HasRemoteID reports whether any remote identity has been recorded,
// i.e. the product has been synced at least once.
func (p *Product) HasRemoteID() bool {
	return p.RemoteGroupID != nil || p.RemoteItemID != nil
}

func (p *Product) InStock() bool {
	return p.StockStatus != StockOutOfStock
}
