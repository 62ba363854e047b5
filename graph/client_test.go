package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(ctx context.Context, cc *auth.CallContext) (string, error) {
	return s.token, s.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(staticTokens{token: "tok"},
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithRateLimit(RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 100}),
	)
	require.NoError(t, err)
	return client
}

const searchPayload = `{
  "value": [{
    "hitsContainers": [{
      "hits": [
        {
          "rank": 1,
          "summary": "quarterly <c0>report</c0>",
          "resource": {
            "id": "item-1",
            "name": "report.docx",
            "lastModifiedDateTime": "2024-03-01T10:00:00Z",
            "parentReference": {"driveId": "drive-1"},
            "listItem": {"fields": {"title": "Quarterly Report"}}
          }
        },
        {
          "rank": 2,
          "summary": "scan",
          "resource": {
            "id": "item-2",
            "name": "scan.pdf",
            "lastModifiedDateTime": "2024-02-01T10:00:00Z",
            "parentReference": {"driveId": "drive-2"}
          }
        }
      ]
    }]
  }]
}`

func TestSearch(t *testing.T) {
	var captured searchRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search/query", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchPayload))
	})

	hits, err := client.Search(context.Background(), "quarterly report", auth.ForUser("u"), 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, core.CandidateDocument{
		ID:           "item-1",
		Name:         "report.docx",
		Title:        "Quarterly Report",
		DriveID:      "drive-1",
		LastModified: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Rank:         1,
		Summary:      "quarterly <c0>report</c0>",
	}, hits[0])
	assert.Equal(t, "scan.pdf", hits[1].Title, "title falls back to name")

	require.Len(t, captured.Requests, 1)
	req := captured.Requests[0]
	assert.Equal(t, []string{"listItem", "driveItem"}, req.EntityTypes)
	assert.Equal(t, "quarterly report AND isDocument=true AND (filetype:pdf OR filetype:docx)", req.Query.QueryString)
	assert.Equal(t, 3, req.Size)
	assert.Equal(t, searchFields, req.Fields)
}

func TestSearch_NoHitsContainer(t *testing.T) {
	for name, payload := range map[string]string{
		"empty containers": `{"value":[{"hitsContainers":[]}]}`,
		"no hits key":      `{"value":[{"hitsContainers":[{"total":0}]}]}`,
		"empty value":      `{"value":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			})
			hits, err := client.Search(context.Background(), "q", auth.ForUser("u"), 5)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestSearch_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BadRequest","message":"bad query"}}`))
	})

	_, err := client.Search(context.Background(), "q", auth.ForUser("u"), 5)
	require.Error(t, err)

	var searchErr *core.RepositorySearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, http.StatusBadRequest, searchErr.StatusCode)
	assert.Equal(t, "BadRequest", searchErr.Code)
	assert.ErrorIs(t, err, core.ErrRepositorySearch)
}

func TestSearch_InvalidMaxResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.Search(context.Background(), "q", auth.ForUser("u"), 0)
	assert.ErrorIs(t, err, ErrInvalidMaxResults)
}

func TestSearch_TokenFailurePropagates(t *testing.T) {
	client, err := NewClient(staticTokens{err: core.ErrCredentialExchange})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q", auth.ForUser("u"), 1)
	assert.ErrorIs(t, err, core.ErrCredentialExchange)
}

func TestGetItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/items/item-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "item-1",
			"name": "report.docx",
			"webUrl": "https://contoso.sharepoint.com/report.docx",
			"lastModifiedDateTime": "2024-03-01T10:00:00Z",
			"@microsoft.graph.downloadUrl": "https://download/report"
		}`))
	})

	item, err := client.GetItem(context.Background(), "drive-1", "item-1", auth.ForUser("u"))
	require.NoError(t, err)
	assert.Equal(t, "report.docx", item.Name)
	assert.Equal(t, "https://download/report", item.DownloadURL)
	assert.Equal(t, "https://contoso.sharepoint.com/report.docx", item.WebURL)
}

func TestGetItem_FailureHidesDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"accessDenied","message":"secret detail"}}`))
	})

	_, err := client.GetItem(context.Background(), "d", "i", auth.ForUser("u"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrItemFetch)
	assert.NotContains(t, err.Error(), "secret detail")
	assert.NotContains(t, err.Error(), "403")
}

func TestGetItem_Throttled(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetItem(context.Background(), "d", "i", auth.ForUser("u"))
	assert.ErrorIs(t, err, core.ErrItemFetch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GetItem(ctx, "d", "i", auth.ForUser("u"))
	assert.ErrorIs(t, err, core.ErrItemFetch)
	assert.Equal(t, int32(1), calls.Load(), "second call should wait out the backoff")
}

func TestNewClient_RequiresResolver(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrTokenResolverRequired)
}
