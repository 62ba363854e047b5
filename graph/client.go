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

package graph

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
	"time"

	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/core"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// supportedFileTypes restricts repository searches to formats a chunker handles.
var supportedFileTypes = []string{"pdf", "docx"}

// searchFields are the resource fields requested for every hit.
var searchFields = []string{"id", "parentReference", "name", "title", "driveId", "lastModifiedDateTime"}

// TokenResolver supplies bearer tokens for a call context.
// *auth.Resolver implements it.
type TokenResolver interface {
	Token(ctx context.Context, cc *auth.CallContext) (string, error)
}

// Client queries SharePoint and OneDrive through Microsoft Graph.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenResolver
	limiter    *rateLimiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL overrides the Graph endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if _, err := url.Parse(baseURL); err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
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

// WithRateLimit sets the request rate limit.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *Client) error {
		c.limiter = newRateLimiter(cfg)
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
		c.logger = logger.With("component", "graph")
		return nil
	}
}

// NewClient creates a Graph client that authenticates with tokens.
func NewClient(tokens TokenResolver, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, ErrTokenResolverRequired
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		tokens:     tokens,
		limiter:    newRateLimiter(DefaultRateLimit),
		logger:     slog.Default().With("component", "graph"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

type searchRequest struct {
	Requests []searchRequestItem `json:"requests"`
}

type searchRequestItem struct {
	EntityTypes []string    `json:"entityTypes"`
	Query       searchQuery `json:"query"`
	Fields      []string    `json:"fields"`
	Size        int         `json:"size"`
}

type searchQuery struct {
	QueryString string `json:"queryString"`
}

type searchResponse struct {
	Value []struct {
		HitsContainers []struct {
			Hits []searchHit `json:"hits"`
		} `json:"hitsContainers"`
	} `json:"value"`
}

type searchHit struct {
	Rank     int    `json:"rank"`
	Summary  string `json:"summary"`
	Resource struct {
		ID                   string    `json:"id"`
		Name                 string    `json:"name"`
		LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
		ParentReference      struct {
			DriveID string `json:"driveId"`
		} `json:"parentReference"`
		ListItem *struct {
			Fields map[string]any `json:"fields"`
		} `json:"listItem"`
	} `json:"resource"`
}

func (h searchHit) candidate() core.CandidateDocument {
	title := h.Resource.Name
	if h.Resource.ListItem != nil {
		if t, ok := h.Resource.ListItem.Fields["title"].(string); ok && t != "" {
			title = t
		}
	}
	return core.CandidateDocument{
		ID:           h.Resource.ID,
		Name:         h.Resource.Name,
		Title:        title,
		DriveID:      h.Resource.ParentReference.DriveID,
		LastModified: h.Resource.LastModifiedDateTime,
		Rank:         h.Rank,
		Summary:      h.Summary,
	}
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// QueryString scopes free-text keywords to documents of supported file types.
func QueryString(query string) string {
	filters := make([]string, len(supportedFileTypes))
	for i, ft := range supportedFileTypes {
		filters[i] = "filetype:" + ft
	}
	return query + " AND isDocument=true AND (" + strings.Join(filters, " OR ") + ")"
}

// Search returns at most maxResults candidate documents matching query.
// Returns an empty slice when Graph reports no hits and a
// *core.RepositorySearchError on a non-2xx response.
func (c *Client) Search(ctx context.Context, query string, cc *auth.CallContext, maxResults int) ([]core.CandidateDocument, error) {
	if maxResults < 1 {
		return nil, ErrInvalidMaxResults
	}

	body, err := json.Marshal(searchRequest{Requests: []searchRequestItem{{
		EntityTypes: []string{"listItem", "driveItem"},
		Query:       searchQuery{QueryString: QueryString(query)},
		Fields:      searchFields,
		Size:        maxResults,
	}}})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, cc, http.MethodPost, "/search/query", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		searchErr := &core.RepositorySearchError{StatusCode: resp.StatusCode}
		var ge graphError
		if raw, readErr := io.ReadAll(resp.Body); readErr == nil && json.Unmarshal(raw, &ge) == nil {
			searchErr.Code = ge.Error.Code
			searchErr.Message = ge.Error.Message
		}
		return nil, searchErr
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", core.ErrRepositorySearch, err)
	}

	if len(payload.Value) == 0 || len(payload.Value[0].HitsContainers) == 0 {
		return []core.CandidateDocument{}, nil
	}

	hits := payload.Value[0].HitsContainers[0].Hits
	candidates := make([]core.CandidateDocument, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, h.candidate())
	}

	c.logger.Debug("repository search", "query", query, "hits", len(candidates))
	return candidates, nil
}

type driveItem struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	WebURL               string    `json:"webUrl"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
	DownloadURL          string    `json:"@microsoft.graph.downloadUrl"`
}

// GetItem fetches metadata and a time-limited download URL for one drive item.
// Every failure, including access denial, is reported as core.ErrItemFetch.
func (c *Client) GetItem(ctx context.Context, driveID, itemID string, cc *auth.CallContext) (core.ItemInfo, error) {
	path := "/drives/" + url.PathEscape(driveID) + "/items/" + url.PathEscape(itemID)

	resp, err := c.do(ctx, cc, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Debug("item fetch failed", "drive", driveID, "item", itemID, "err", err)
		return core.ItemInfo{}, fmt.Errorf("%w: %s/%s", core.ErrItemFetch, driveID, itemID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("item fetch rejected", "drive", driveID, "item", itemID, "status", resp.StatusCode)
		return core.ItemInfo{}, fmt.Errorf("%w: %s/%s", core.ErrItemFetch, driveID, itemID)
	}

	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		c.logger.Debug("item decode failed", "drive", driveID, "item", itemID, "err", err)
		return core.ItemInfo{}, fmt.Errorf("%w: %s/%s", core.ErrItemFetch, driveID, itemID)
	}

	return core.ItemInfo{
		ID:           item.ID,
		Name:         item.Name,
		WebURL:       item.WebURL,
		LastModified: item.LastModifiedDateTime,
		DownloadURL:  item.DownloadURL,
	}, nil
}

// do sends an authenticated, rate-limited request.
func (c *Client) do(ctx context.Context, cc *auth.CallContext, method, path string, body []byte) (*http.Response, error) {
	token, err := c.tokens.Token(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		c.limiter.throttled(resp.Header.Get("Retry-After"))
	}
	return resp, nil
}
