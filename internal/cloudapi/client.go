// Package cloudapi is the REST client for the authoritative backend. The
// query engine reaches it through injected executors; the offload verifier
// uses its audit endpoints to confirm what the cloud actually holds.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/questsync/internal/common"
	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/query"
	"github.com/dmitrijs2005/questsync/internal/record"
)

// Client talks to the cloud backend over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
	auth    *tokenSource
	log     logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger attaches a logger.
func WithLogger(log logging.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		auth:    &tokenSource{},
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.auth.client = c
	return c
}

// SetTokens installs the access/refresh token pair after login.
func (c *Client) SetTokens(access, refresh string) {
	c.auth.set(access, refresh)
}

// Ping probes backend reachability. The online-status watcher calls it
// periodically to flip the network mode.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/v1/health", nil, nil)
}

// Records runs a generic query against a resource, returning loosely-typed
// rows. Combined with Executor it is the cloud half of a hybrid query.
func (c *Client) Records(ctx context.Context, resource string, params url.Values) ([]record.Map, error) {
	var out struct {
		Records []record.Map `json:"records"`
	}
	if err := c.get(ctx, "/v1/"+resource, params, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// RecordsPage runs a paged query against a resource, returning one page of
// rows and the backend's total row count for the query.
func (c *Client) RecordsPage(ctx context.Context, resource string, params url.Values, limit, offset int) ([]record.Map, int, error) {
	paged := url.Values{}
	for k, v := range params {
		paged[k] = v
	}
	paged.Set("limit", strconv.Itoa(limit))
	paged.Set("offset", strconv.Itoa(offset))

	var out struct {
		Records    []record.Map `json:"records"`
		TotalCount int          `json:"total_count"`
	}
	if err := c.get(ctx, "/v1/"+resource, paged, &out); err != nil {
		return nil, 0, err
	}
	return out.Records, out.TotalCount, nil
}

// Executor adapts a resource query into a cloud executor for the engine.
func (c *Client) Executor(resource string, params url.Values) query.Executor[record.Map] {
	return func(ctx context.Context) ([]record.Map, error) {
		return c.Records(ctx, resource, params)
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// postWithoutAuth is used by the token source itself; it must not go through
// do, which would re-enter token resolution.
func (c *Client) postWithoutAuth(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloud request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("cloud request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) do(req *http.Request, out any) error {
	token, err := c.auth.accessToken(req.Context())
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloud request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrorNotFound
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cloud request failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode cloud response: %w", err)
	}
	return nil
}
