package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Client is a REST client for the tool broker. Every request carries the
// account API key; user identity travels as a request parameter so one
// deployment serves many end users.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Toolkit is one integration family (gmail, slack, ...).
type Toolkit struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tool is one callable action exposed by a toolkit.
type Tool struct {
	Slug            string                 `json:"slug"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	ToolkitSlug     string                 `json:"toolkit_slug,omitempty"`
	InputParameters map[string]interface{} `json:"input_parameters,omitempty"`
}

// ConnectedAccount links an end user to one toolkit account.
type ConnectedAccount struct {
	ID          string `json:"id"`
	ToolkitSlug string `json:"toolkit_slug"`
	Status      string `json:"status"`
	IsDisabled  bool   `json:"is_disabled,omitempty"`
}

// TriggerType is an event kind a toolkit can emit.
type TriggerType struct {
	Slug        string                 `json:"slug"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty"`
}

// TriggerInstance is an armed trigger subscription on the broker side.
type TriggerInstance struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ConnectionRequest is an in-progress account connection; the end user
// finishes it by visiting RedirectURL.
type ConnectionRequest struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Status      string `json:"status"`
}

type listResponse struct {
	Items json.RawMessage `json:"items"`
}

// ListToolkits returns the toolkits available to the account.
func (c *Client) ListToolkits(ctx context.Context) ([]Toolkit, error) {
	var out []Toolkit
	if err := c.getList(ctx, "/toolkits", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListConnectedAccounts returns the accounts connected for one user.
func (c *Client) ListConnectedAccounts(ctx context.Context, userID string) ([]ConnectedAccount, error) {
	q := url.Values{"user_id": {userID}}
	var out []ConnectedAccount
	if err := c.getList(ctx, "/connected_accounts", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTools returns the tools of the given toolkits available to the
// user, capped at limit.
func (c *Client) GetTools(ctx context.Context, userID string, toolkits []string, limit int) ([]Tool, error) {
	q := url.Values{"user_id": {userID}}
	for _, tk := range toolkits {
		q.Add("toolkit_slug", tk)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []Tool
	if err := c.getList(ctx, "/tools", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunTool executes a tool on behalf of a user and returns the raw
// result object.
func (c *Client) RunTool(ctx context.Context, userID, toolSlug string, args map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"user_id":   userID,
		"arguments": args,
	}
	var out struct {
		Data       map[string]interface{} `json:"data"`
		Successful bool                   `json:"successful"`
		Error      string                 `json:"error,omitempty"`
	}
	if err := c.do(ctx, http.MethodPost, "/tools/execute/"+toolSlug, nil, body, &out); err != nil {
		return nil, err
	}
	if !out.Successful {
		return out.Data, errors.Errorf("tool %s failed: %s", toolSlug, out.Error)
	}
	return out.Data, nil
}

// ListTriggerTypes returns the trigger kinds a toolkit supports.
func (c *Client) ListTriggerTypes(ctx context.Context, toolkitSlug string) ([]TriggerType, error) {
	q := url.Values{}
	if toolkitSlug != "" {
		q.Set("toolkit_slug", toolkitSlug)
	}
	var out []TriggerType
	if err := c.getList(ctx, "/trigger_types", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTrigger arms a trigger subscription for a connected account.
func (c *Client) CreateTrigger(ctx context.Context, userID, triggerSlug, connectedAccountID string, config map[string]interface{}) (TriggerInstance, error) {
	body := map[string]interface{}{
		"user_id":              userID,
		"connected_account_id": connectedAccountID,
		"trigger_config":       config,
	}
	var out TriggerInstance
	if err := c.do(ctx, http.MethodPost, "/trigger_instances/"+triggerSlug, nil, body, &out); err != nil {
		return TriggerInstance{}, err
	}
	return out, nil
}

// DeleteTrigger disarms a trigger subscription.
func (c *Client) DeleteTrigger(ctx context.Context, triggerID string) error {
	return c.do(ctx, http.MethodDelete, "/trigger_instances/"+triggerID, nil, nil, nil)
}

// InitiateConnection starts connecting a user to a toolkit. The caller
// forwards RedirectURL to the user to finish authorization.
func (c *Client) InitiateConnection(ctx context.Context, userID, toolkitSlug, callbackURL string) (ConnectionRequest, error) {
	body := map[string]interface{}{
		"user_id":      userID,
		"toolkit_slug": toolkitSlug,
	}
	if callbackURL != "" {
		body["callback_url"] = callbackURL
	}
	var out ConnectionRequest
	if err := c.do(ctx, http.MethodPost, "/connected_accounts/initiate", nil, body, &out); err != nil {
		return ConnectionRequest{}, err
	}
	return out, nil
}

// GetConnection fetches a single connected account.
func (c *Client) GetConnection(ctx context.Context, connectedAccountID string) (ConnectedAccount, error) {
	var out ConnectedAccount
	if err := c.do(ctx, http.MethodGet, "/connected_accounts/"+connectedAccountID, nil, nil, &out); err != nil {
		return ConnectedAccount{}, err
	}
	return out, nil
}

// DeleteConnection removes a connected account.
func (c *Client) DeleteConnection(ctx context.Context, connectedAccountID string) error {
	return c.do(ctx, http.MethodDelete, "/connected_accounts/"+connectedAccountID, nil, nil, nil)
}

func (c *Client) getList(ctx context.Context, path string, q url.Values, dest interface{}) error {
	var wrapped listResponse
	if err := c.do(ctx, http.MethodGet, path, q, nil, &wrapped); err != nil {
		return err
	}
	if wrapped.Items == nil {
		return nil
	}
	return json.Unmarshal(wrapped.Items, dest)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding broker request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "broker request %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("broker API error: %d - %s", resp.StatusCode, string(raw))
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
