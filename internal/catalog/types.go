package catalog

// GroupData is the payload for creating or updating a product group.
// Variants describes the distinguishing attributes of the group's items,
// not full item data.
type GroupData struct {
	RetailerID       string             `json:"retailer_id,omitempty"`
	Variants         []VariantAttribute `json:"variants,omitempty"`
	DefaultProductID string             `json:"default_product_id,omitempty"`
}

// VariantAttribute is one distinguishing attribute across a group's items,
// e.g. {product_field: "color", label: "Color", options: ["red", "blue"]}.
type VariantAttribute struct {
	ProductField string   `json:"product_field"`
	Label        string   `json:"label"`
	Options      []string `json:"options"`
}

// ItemPayload is the full attribute payload for a catalog item. Updates
// resubmit the whole payload; the remote side treats it as authoritative.
type ItemPayload struct {
	RetailerID          string   `json:"retailer_id"`
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	URL                 string   `json:"url,omitempty"`
	ImageURL            string   `json:"image_url,omitempty"`
	AdditionalImageURLs []string `json:"additional_image_urls,omitempty"`
	Price               string   `json:"price"`
	Currency            string   `json:"currency"`
	Availability        string   `json:"availability"`
	Visibility          string   `json:"visibility"`

	Brand     string `json:"brand,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Material  string `json:"material,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Condition string `json:"condition,omitempty"`
	AgeGroup  string `json:"age_group,omitempty"`
	Gender    string `json:"gender,omitempty"`

	CustomData map[string]string `json:"custom_data,omitempty"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ProductIDEntry struct {
	ID           string `json:"id"`
	ProductGroup struct {
		ID string `json:"id"`
	} `json:"product_group"`
}

type ProductIDsResponse struct {
	Data []ProductIDEntry `json:"data"`
}

type GroupProductEntry struct {
	ID         string `json:"id"`
	RetailerID string `json:"retailer_id"`
}

type Paging struct {
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

type GroupProductsResponse struct {
	Data   []GroupProductEntry `json:"data"`
	Paging Paging              `json:"paging"`
}

// IDs returns the page's entries as a retailer_id -> item_id map.
func (r *GroupProductsResponse) IDs() map[string]string {
	ids := make(map[string]string, len(r.Data))
	for _, entry := range r.Data {
		ids[entry.RetailerID] = entry.ID
	}
	return ids
}

// HasNextPage reports whether another page of results is available.
func (r *GroupProductsResponse) HasNextPage() bool {
	return r.Paging.Next != "" && r.Paging.Cursors.After != ""
}

type BatchMethod string

const (
	BatchCreate BatchMethod = "CREATE"
	BatchUpdate BatchMethod = "UPDATE"
	BatchDelete BatchMethod = "DELETE"
)

// BatchRequest is one entry of a bulk create/update/delete submission.
type BatchRequest struct {
	Method     BatchMethod `json:"method"`
	RetailerID string      `json:"retailer_id"`
	Data       ItemPayload `json:"data,omitempty"`
}

type BatchResponse struct {
	Handles []string `json:"handles"`
}

type Catalog struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
