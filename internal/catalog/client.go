package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"catsync/internal/logger"
)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logger.Logger
}

func NewClient(baseURL, accessToken string, logger *logger.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// CreateGroup creates a product group in the catalog.
func (c *Client) CreateGroup(ctx context.Context, catalogID string, data GroupData) (*IDResponse, error) {
	var resp IDResponse
	path := fmt.Sprintf("%s/product_groups", catalogID)
	if err := c.doRequest(ctx, http.MethodPost, path, data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateGroup resubmits a group's variants list and default product ID.
func (c *Client) UpdateGroup(ctx context.Context, groupID string, data GroupData) (*SuccessResponse, error) {
	var resp SuccessResponse
	if err := c.doRequest(ctx, http.MethodPost, groupID, data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateItem creates a catalog item under the given container: a product
// group for variants, the catalog itself for standalone items.
func (c *Client) CreateItem(ctx context.Context, containerID string, payload ItemPayload) (*IDResponse, error) {
	var resp IDResponse
	path := fmt.Sprintf("%s/products", containerID)
	if err := c.doRequest(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateItem resubmits an item's full payload.
func (c *Client) UpdateItem(ctx context.Context, itemID string, payload ItemPayload) (*SuccessResponse, error) {
	var resp SuccessResponse
	if err := c.doRequest(ctx, http.MethodPost, itemID, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateItemVisibility flips only the visibility property of an item.
func (c *Client) UpdateItemVisibility(ctx context.Context, itemID, visibility string) (*SuccessResponse, error) {
	var resp SuccessResponse
	body := map[string]string{"visibility": visibility}
	if err := c.doRequest(ctx, http.MethodPost, itemID, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	return c.doRequest(ctx, http.MethodDelete, itemID, nil, nil)
}

// GetProductIDs looks up a catalog entity by retailer ID. Used to repair
// lost local metadata before falling back to a create.
func (c *Client) GetProductIDs(ctx context.Context, catalogID, retailerID string) (*ProductIDsResponse, error) {
	var resp ProductIDsResponse
	path := fmt.Sprintf("%s/product_ids?retailer_id=%s", catalogID, url.QueryEscape(retailerID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetGroupProducts returns one page of a group's items. Pass the previous
// page's after-cursor to continue.
func (c *Client) GetGroupProducts(ctx context.Context, groupID, after string) (*GroupProductsResponse, error) {
	var resp GroupProductsResponse
	path := fmt.Sprintf("%s/products?fields=id,retailer_id&limit=100", groupID)
	if after != "" {
		path += "&after=" + url.QueryEscape(after)
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendBatch submits bulk create/update/delete requests.
func (c *Client) SendBatch(ctx context.Context, catalogID string, requests []BatchRequest) (*BatchResponse, error) {
	var resp BatchResponse
	body := map[string]interface{}{"requests": requests}
	path := fmt.Sprintf("%s/items_batch", catalogID)
	if err := c.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCatalog fetches the catalog itself; used as a presence check before a
// full sync, since a catalog can be deleted remotely.
func (c *Client) GetCatalog(ctx context.Context, catalogID string) (*Catalog, error) {
	var resp Catalog
	path := fmt.Sprintf("%s?fields=id,name", catalogID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.parseError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr.Message = resp.Status
		return apiErr
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Message == "" {
		apiErr.Message = string(data)
		return apiErr
	}

	apiErr.Code = envelope.Error.Code
	apiErr.Subcode = envelope.Error.Subcode
	apiErr.Message = envelope.Error.Message
	apiErr.ExistingGroupID = envelope.Error.ErrorData.ProductGroupID
	apiErr.ExistingItemID = envelope.Error.ErrorData.ProductItemID
	return apiErr
}
