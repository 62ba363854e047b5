// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package azuresearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/storage"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIVersion is the data-plane REST version used for every request.
	DefaultAPIVersion = "2023-11-01"

	// TokenScope is the Entra ID scope for data-plane access.
	TokenScope = "https://search.azure.com/.default"

	// maxBatch is the service limit on documents per index request.
	maxBatch = 1000

	// maxTop is the page size used when listing fragment ids.
	maxTop = 1000
)

// Client implements storage.IndexService against an Azure AI Search index.
type Client struct {
	baseURL     string
	apiVersion  string
	apiKey      string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ storage.IndexService = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithAPIKey authenticates with an admin or query key.
func WithAPIKey(key string) Option {
	return func(c *Client) error {
		c.apiKey = key
		return nil
	}
}

// WithTokenSource authenticates with Entra ID bearer tokens.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) error {
		c.tokenSource = ts
		return nil
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient != nil {
			c.httpClient = httpClient
		}
		return nil
	}
}

// WithAPIVersion overrides the REST api-version.
func WithAPIVersion(version string) Option {
	return func(c *Client) error {
		if version != "" {
			c.apiVersion = version
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "azuresearch")
		return nil
	}
}

// NewClient creates a client for index on the service at endpoint, e.g.
// https://contoso.search.windows.net.
func NewClient(endpoint, index string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if index == "" {
		return nil, ErrIndexNameRequired
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(endpoint, "/") + "/indexes/" + url.PathEscape(index) + "/docs",
		apiVersion: DefaultAPIVersion,
		httpClient: http.DefaultClient,
		logger:     slog.Default().With("component", "azuresearch"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.apiKey == "" && c.tokenSource == nil {
		return nil, ErrCredentialRequired
	}
	if c.apiKey == "" {
		base := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		c.httpClient = oauth2.NewClient(base, oauth2.ReuseTokenSource(nil, c.tokenSource))
	}
	return c, nil
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchRequest struct {
	Search        string        `json:"search"`
	Filter        string        `json:"filter,omitempty"`
	Select        string        `json:"select,omitempty"`
	OrderBy       string        `json:"orderby,omitempty"`
	Top           int           `json:"top"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
}

type searchHit struct {
	Score float64 `json:"@search.score"`
	core.IndexedFragmentRecord
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

type indexAction struct {
	Action string `json:"@search.action"`
	*core.IndexedFragmentRecord
}

type deleteAction struct {
	Action string `json:"@search.action"`
	ID     string `json:"id"`
}

type indexRequest[T any] struct {
	Value []T `json:"value"`
}

type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

type indexResponse struct {
	Value []indexResult `json:"value"`
}

// Exists reports whether any fragment matches filter, with the newest
// last-modified stamp among the matches.
func (c *Client) Exists(ctx context.Context, filter storage.Filter) (*storage.ExistsResult, error) {
	var resp searchResponse
	err := c.post(ctx, "/search", searchRequest{
		Search:  "*",
		Filter:  filter.OData(),
		Select:  "id,lastModified",
		OrderBy: "lastModified desc",
		Top:     1,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Value) == 0 {
		return &storage.ExistsResult{}, nil
	}
	return &storage.ExistsResult{Found: true, LastModified: resp.Value[0].LastModified}, nil
}

// Upload sends records as upload actions in batches the service accepts.
func (c *Client) Upload(ctx context.Context, records []core.IndexedFragmentRecord) error {
	for start := 0; start < len(records); start += maxBatch {
		end := min(start+maxBatch, len(records))
		actions := make([]indexAction, 0, end-start)
		for i := start; i < end; i++ {
			actions = append(actions, indexAction{Action: "upload", IndexedFragmentRecord: &records[i]})
		}
		if err := c.index(ctx, indexRequest[indexAction]{Value: actions}); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a hybrid full-text and vector query.
func (c *Client) Query(ctx context.Context, req storage.QueryRequest) ([]core.IndexedItem, error) {
	if req.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, req.K)
	}
	body := searchRequest{
		Search: req.Text,
		Filter: req.Filter.OData(),
		Select: "id,chunk,documentId,driveId,driveItemId,content,uri,title,lastModified,snapshot",
		Top:    req.K,
	}
	if body.Search == "" {
		body.Search = "*"
	}
	if len(req.Vector) > 0 {
		body.VectorQueries = []vectorQuery{{Kind: "vector", Vector: req.Vector, Fields: "embedding", K: req.K}}
	}

	var resp searchResponse
	if err := c.post(ctx, "/search", body, &resp); err != nil {
		return nil, err
	}
	items := make([]core.IndexedItem, 0, len(resp.Value))
	for i := range resp.Value {
		items = append(items, storage.ToItem(&resp.Value[i].IndexedFragmentRecord, resp.Value[i].Score))
	}
	return items, nil
}

// FragmentIDs lists the fragment ids stored for a document.
func (c *Client) FragmentIDs(ctx context.Context, documentID string) ([]string, error) {
	var resp searchResponse
	err := c.post(ctx, "/search", searchRequest{
		Search: "*",
		Filter: storage.ForDocuments(documentID).OData(),
		Select: "id",
		Top:    maxTop,
	}, &resp)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Value))
	for _, hit := range resp.Value {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Delete removes fragments by id. The service ignores unknown ids.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		actions := make([]deleteAction, 0, end-start)
		for _, id := range ids[start:end] {
			actions = append(actions, deleteAction{Action: "delete", ID: id})
		}
		if err := c.index(ctx, indexRequest[deleteAction]{Value: actions}); err != nil {
			return err
		}
	}
	return nil
}

// index posts a batch of actions and fails if any document was rejected.
func (c *Client) index(ctx context.Context, body any) error {
	var resp indexResponse
	if err := c.post(ctx, "/index", body, &resp); err != nil {
		return err
	}
	var failed []string
	for _, result := range resp.Value {
		if !result.Status {
			failed = append(failed, result.Key)
			c.logger.Debug("document rejected", "key", result.Key, "status", result.StatusCode, "error", result.ErrorMessage)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrPartialUpload, strings.Join(failed, ", "))
	}
	return nil
}

// post sends an authenticated JSON request and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	endpoint := c.baseURL + path + "?api-version=" + url.QueryEscape(c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return nil
}

func statusError(status int, body []byte) *StatusError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)
	return &StatusError{StatusCode: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
}
