// Package tenderly provides a typed client for the Tenderly
// verification and monitoring API.
package tenderly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

// accessKeyHeader carries the access token on every request.
const accessKeyHeader = "X-Access-Key"

// Common errors returned by the client.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBytecodeMismatch indicates the backend accepted the request but
	// rejected the submitted bytecode. Treated as a verification failure
	// even though the HTTP call succeeded.
	ErrBytecodeMismatch = errors.New("bytecode mismatch")
)

// ignoredNetworkIDs are networks the backend reports but the plugin
// must not offer.
var ignoredNetworkIDs = map[string]bool{
	"d5cffec2-af1e-4d7e-9406-feb235a578de": true,
}

// Client is a Tenderly API client pinned to a single base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Tenderly client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetAccessToken installs the credential used by all subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// APIError represents an API error response.
type APIError struct {
	Slug    string `json:"slug"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Slug == "" && e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Slug, e.Message)
}

// CheckToken probes the backend with the current credential. It returns
// true when the credential is accepted, false on any non-2xx response.
// The error is set only for transport failures.
func (c *Client) CheckToken(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account/me", nil)
	if err != nil {
		return false, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// Projects lists all projects owned by the authenticated user.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp struct {
		Projects []Project `json:"projects"`
	}
	if err := c.get(ctx, "/account/me/projects", &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// Networks lists the supported chains, with ignored ids filtered out
// and the result sorted ascending by id.
func (c *Client) Networks(ctx context.Context) ([]Network, error) {
	var all []Network
	if err := c.get(ctx, "/public-networks", &all); err != nil {
		return nil, err
	}

	networks := make([]Network, 0, len(all))
	for _, n := range all {
		if ignoredNetworkIDs[n.ID] {
			continue
		}
		networks = append(networks, n)
	}

	sort.Slice(networks, func(i, j int) bool {
		return networks[i].ID < networks[j].ID
	})

	return networks, nil
}

// VerifyContracts submits a verification request. A response carrying
// bytecode mismatch errors is returned as ErrBytecodeMismatch even
// though the HTTP call itself succeeded.
func (c *Client) VerifyContracts(ctx context.Context, v Verification) error {
	var resp struct {
		BytecodeMismatchErrors []BytecodeMismatchError `json:"bytecode_mismatch_errors"`
	}
	if err := c.post(ctx, "/account/me/verify-contracts", v, &resp); err != nil {
		return err
	}

	if len(resp.BytecodeMismatchErrors) > 0 {
		return fmt.Errorf("%w: %d contract(s) rejected", ErrBytecodeMismatch, len(resp.BytecodeMismatchErrors))
	}

	return nil
}

// AddToProject attaches a verified (network, address) pair to the
// given project.
func (c *Client) AddToProject(ctx context.Context, ref ProjectRef, networkID, address string) error {
	body := map[string]string{
		"network_id": networkID,
		"address":    address,
	}
	path := fmt.Sprintf("/account/%s/project/%s/address",
		url.PathEscape(ref.Username), url.PathEscape(ref.Slug))
	return c.post(ctx, path, body, nil)
}

// Contracts lists the contracts stored under the given project.
func (c *Client) Contracts(ctx context.Context, ref ProjectRef) ([]Account, error) {
	var accounts []Account
	path := fmt.Sprintf("/account/%s/project/%s/contracts",
		url.PathEscape(ref.Username), url.PathEscape(ref.Slug))
	if err := c.get(ctx, path, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Contract fetches one stored contract with all of its source files.
func (c *Client) Contract(ctx context.Context, ref ProjectRef, networkID, address string) (*Account, error) {
	var account Account
	path := fmt.Sprintf("/account/%s/project/%s/contract/%s/%s",
		url.PathEscape(ref.Username), url.PathEscape(ref.Slug),
		url.PathEscape(networkID), url.PathEscape(address))
	if err := c.get(ctx, path, &account); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Billing fetches the project-level billing/entitlement snapshot.
func (c *Client) Billing(ctx context.Context, ref ProjectRef) (*Billing, error) {
	var billing Billing
	path := fmt.Sprintf("/account/%s/project/%s/billing",
		url.PathEscape(ref.Username), url.PathEscape(ref.Slug))
	if err := c.get(ctx, path, &billing); err != nil {
		return nil, err
	}
	return &billing, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()

	if token != "" {
		req.Header.Set(accessKeyHeader, token)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		apiErr.Slug = errResp.Error.Slug
		apiErr.Message = errResp.Error.Message
	}

	return apiErr
}
