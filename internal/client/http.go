package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
)

// HTTPClient implements RegistryClient using the registry's HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ RegistryClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Entries ---

func (c *HTTPClient) AddEntry(ctx context.Context, e model.ConfigurationEntry) (*model.ConfigurationEntry, error) {
	var out model.ConfigurationEntry
	if err := c.doJSON(ctx, http.MethodPost, "/v1/entries", e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetEntry(ctx context.Context, id int64) (*model.ConfigurationEntry, error) {
	var out model.ConfigurationEntry
	if err := c.doJSON(ctx, http.MethodGet, entryPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListEntries(ctx context.Context, req *ListEntriesRequest) ([]*model.ConfigurationEntry, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"provider_nid": req.ProviderNID,
		"provider_id":  req.ProviderID,
		"mta_id":       req.MTAID,
		"namespace":    req.Namespace,
		"version":      req.Version,
		"target":       req.Target,
		"space_id":     req.SpaceID,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	for _, v := range req.VisibleTo {
		q.Add("visible_to", v)
	}

	path := "/v1/entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Entries []*model.ConfigurationEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *HTTPClient) SearchEntries(ctx context.Context, criteria registry.EntryCriteria) ([]*model.ConfigurationEntry, error) {
	var resp struct {
		Entries []*model.ConfigurationEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/entries/search", criteria, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *HTTPClient) ResolveEntries(ctx context.Context, f model.ConfigurationFilter, visibleTo []model.Target) ([]*model.ConfigurationEntry, error) {
	body := struct {
		Filter    model.ConfigurationFilter `json:"filter"`
		VisibleTo []model.Target            `json:"visible_to,omitempty"`
	}{f, visibleTo}
	var resp struct {
		Entries []*model.ConfigurationEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/entries/resolve", body, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *HTTPClient) UpdateEntry(ctx context.Context, id int64, delta model.EntryDelta) (*model.ConfigurationEntry, error) {
	var out model.ConfigurationEntry
	if err := c.doJSON(ctx, http.MethodPatch, entryPath(id), delta, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RemoveEntry(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, entryPath(id), nil, nil)
}

func (c *HTTPClient) RemoveSpaceEntries(ctx context.Context, spaceID string) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/spaces/"+url.PathEscape(spaceID)+"/entries", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// --- Subscriptions ---

func (c *HTTPClient) AddSubscription(ctx context.Context, s model.ConfigurationSubscription) (*model.ConfigurationSubscription, error) {
	var out model.ConfigurationSubscription
	if err := c.doJSON(ctx, http.MethodPost, "/v1/subscriptions", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetSubscription(ctx context.Context, id int64) (*model.ConfigurationSubscription, error) {
	var out model.ConfigurationSubscription
	if err := c.doJSON(ctx, http.MethodGet, subscriptionPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListSubscriptions(ctx context.Context, criteria registry.SubscriptionCriteria) ([]*model.ConfigurationSubscription, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"mta_id":        criteria.MTAID,
		"space_id":      criteria.SpaceID,
		"app_name":      criteria.AppName,
		"resource_name": criteria.ResourceName,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	path := "/v1/subscriptions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Subscriptions []*model.ConfigurationSubscription `json:"subscriptions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

func (c *HTTPClient) MatchSubscriptions(ctx context.Context, req *MatchRequest) ([]*model.ConfigurationSubscription, error) {
	var resp struct {
		Subscriptions []*model.ConfigurationSubscription `json:"subscriptions"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/subscriptions/match", req, &resp); err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

func (c *HTTPClient) UpdateSubscription(ctx context.Context, id int64, delta model.SubscriptionDelta) (*model.ConfigurationSubscription, error) {
	var out model.ConfigurationSubscription
	if err := c.doJSON(ctx, http.MethodPatch, subscriptionPath(id), delta, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RemoveSubscription(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, subscriptionPath(id), nil, nil)
}

func (c *HTTPClient) RemoveSpaceSubscriptions(ctx context.Context, spaceID string) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/spaces/"+url.PathEscape(spaceID)+"/subscriptions", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// --- Spaces ---

func (c *HTTPClient) Purge(ctx context.Context, spaceID string, live []model.LiveApplication) (*registry.PurgeReport, error) {
	if live == nil {
		live = []model.LiveApplication{}
	}
	body := struct {
		Applications []model.LiveApplication `json:"applications"`
	}{live}
	var report registry.PurgeReport
	if err := c.doJSON(ctx, http.MethodPost, "/v1/spaces/"+url.PathEscape(spaceID)+"/purge", body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func entryPath(id int64) string {
	return "/v1/entries/" + strconv.FormatInt(id, 10)
}

func subscriptionPath(id int64) string {
	return "/v1/subscriptions/" + strconv.FormatInt(id, 10)
}

// APIError is returned when the server responds with a non-2xx status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
