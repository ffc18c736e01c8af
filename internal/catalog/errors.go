package catalog

import (
	"fmt"
	"net/http"
)

// Remote error codes we care about beyond transport status.
const (
	// CodeExpiredCredential means the access token is no longer valid.
	// Distinguished from generic errors only for user messaging.
	CodeExpiredCredential = 190

	// CodeDuplicateRetailerID means an entity with the submitted retailer
	// ID already exists in the catalog. The response carries the existing
	// entity's IDs so callers can adopt them instead of retrying creates.
	CodeDuplicateRetailerID = 10803
)

// APIError is a typed error returned by the remote catalog service.
type APIError struct {
	StatusCode int
	Code       int
	Subcode    int
	Message    string

	// Set on duplicate-retailer-ID errors: the IDs of the entity that
	// already exists remotely.
	ExistingGroupID string
	ExistingItemID  string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("catalog API error (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("catalog API error (status %d): %s", e.StatusCode, e.Message)
}

// IsTransient reports whether the failure is worth retrying on the next
// reconciliation pass: rate limits and server-side errors.
func (e *APIError) IsTransient() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError
}

func (e *APIError) IsExpiredCredential() bool {
	return e.Code == CodeExpiredCredential
}

// IsDuplicateRetailerID reports whether the remote service rejected a
// create because an entity with the same retailer ID already exists.
func (e *APIError) IsDuplicateRetailerID() bool {
	return e.Code == CodeDuplicateRetailerID || e.ExistingGroupID != "" || e.ExistingItemID != ""
}

// errorEnvelope is the wire shape of a remote error response.
type errorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		ErrorData struct {
			ProductGroupID string `json:"product_group_id"`
			ProductItemID  string `json:"product_item_id"`
		} `json:"error_data"`
	} `json:"error"`
}
