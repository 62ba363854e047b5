package azuresearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type capturedRequest struct {
	Path    string
	Query   string
	APIKey  string
	Auth    string
	Payload map[string]any
}

type fakeService struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	response string
}

func (f *fakeService) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var payload map[string]any
	_ = json.Unmarshal(data, &payload)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		APIKey:  r.Header.Get("api-key"),
		Auth:    r.Header.Get("Authorization"),
		Payload: payload,
	})
	status, response := f.status, f.response
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(response))
}

func newTestClient(t *testing.T, service *fakeService, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(service.handler))
	t.Cleanup(server.Close)

	if len(opts) == 0 {
		opts = []Option{WithAPIKey("admin-key")}
	}
	opts = append(opts, WithHTTPClient(server.Client()))
	client, err := NewClient(server.URL, "fragments", opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "i", WithAPIKey("k"))
	assert.ErrorIs(t, err, ErrEndpointRequired)

	_, err = NewClient("https://x.search.windows.net", "", WithAPIKey("k"))
	assert.ErrorIs(t, err, ErrIndexNameRequired)

	_, err = NewClient("https://x.search.windows.net", "i")
	assert.ErrorIs(t, err, ErrCredentialRequired)
}

func TestClient_Exists(t *testing.T) {
	service := &fakeService{response: `{"value":[{"@search.score":1,"id":"d-0","lastModified":"2025-04-01T10:00:00Z"}]}`}
	client := newTestClient(t, service)

	result, err := client.Exists(context.Background(), storage.ForDocuments("d"))
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC).Equal(result.LastModified))

	require.Len(t, service.requests, 1)
	req := service.requests[0]
	assert.Equal(t, "/indexes/fragments/docs/search", req.Path)
	assert.Equal(t, "api-version="+DefaultAPIVersion, req.Query)
	assert.Equal(t, "admin-key", req.APIKey)
	assert.Equal(t, "documentId eq 'd'", req.Payload["filter"])
	assert.Equal(t, "*", req.Payload["search"])
	assert.EqualValues(t, 1, req.Payload["top"])
}

func TestClient_ExistsEmpty(t *testing.T) {
	client := newTestClient(t, &fakeService{response: `{"value":[]}`})
	result, err := client.Exists(context.Background(), storage.ForDocuments("d"))
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestClient_Upload(t *testing.T) {
	service := &fakeService{response: `{"value":[{"key":"d-0","status":true,"statusCode":201}]}`}
	client := newTestClient(t, service)

	err := client.Upload(context.Background(), []core.IndexedFragmentRecord{{
		ID: "d-0", DocumentID: "d", Content: "hello", Embedding: []float32{0.5},
	}})
	require.NoError(t, err)

	req := service.requests[0]
	assert.Equal(t, "/indexes/fragments/docs/index", req.Path)
	docs := req.Payload["value"].([]any)
	require.Len(t, docs, 1)
	doc := docs[0].(map[string]any)
	assert.Equal(t, "upload", doc["@search.action"])
	assert.Equal(t, "d-0", doc["id"])
	assert.Equal(t, "d", doc["documentId"])
	assert.Equal(t, []any{0.5}, doc["embedding"])
}

func TestClient_UploadPartialFailure(t *testing.T) {
	service := &fakeService{
		status:   http.StatusMultiStatus,
		response: `{"value":[{"key":"d-0","status":true},{"key":"d-1","status":false,"errorMessage":"bad"}]}`,
	}
	client := newTestClient(t, service)

	err := client.Upload(context.Background(), []core.IndexedFragmentRecord{{ID: "d-0"}, {ID: "d-1"}})
	assert.ErrorIs(t, err, ErrPartialUpload)
	assert.ErrorContains(t, err, "d-1")
}

func TestClient_Query(t *testing.T) {
	service := &fakeService{response: `{"value":[
		{"@search.score":0.9,"id":"d-1","documentId":"d","content":"one","title":"T","uri":"u","snapshot":"d-1.png"},
		{"@search.score":0.4,"id":"e-0","documentId":"e","content":"two"}]}`}
	client := newTestClient(t, service)

	items, err := client.Query(context.Background(), storage.QueryRequest{
		Text:   "budget",
		Vector: []float32{1, 0},
		Filter: storage.ForDocuments("d", "e"),
		K:      5,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, core.IndexedItem{ID: "d-1", Score: 0.9, Content: "one", Title: "T", URI: "u", DocumentID: "d", Snapshot: "d-1.png"}, items[0])

	payload := service.requests[0].Payload
	assert.Equal(t, "budget", payload["search"])
	assert.Equal(t, "search.in(documentId, 'd,e', ',')", payload["filter"])
	assert.EqualValues(t, 5, payload["top"])
	vq := payload["vectorQueries"].([]any)[0].(map[string]any)
	assert.Equal(t, "vector", vq["kind"])
	assert.Equal(t, "embedding", vq["fields"])
	assert.EqualValues(t, 5, vq["k"])
}

func TestClient_QueryUnrestricted(t *testing.T) {
	service := &fakeService{response: `{"value":[]}`}
	client := newTestClient(t, service)

	_, err := client.Query(context.Background(), storage.QueryRequest{Vector: []float32{1}, K: 3})
	require.NoError(t, err)
	_, hasFilter := service.requests[0].Payload["filter"]
	assert.False(t, hasFilter)
	assert.Equal(t, "*", service.requests[0].Payload["search"])
}

func TestClient_FragmentIDsAndDelete(t *testing.T) {
	service := &fakeService{response: `{"value":[{"id":"d-0"},{"id":"d-1"}]}`}
	client := newTestClient(t, service)

	ids, err := client.FragmentIDs(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"d-0", "d-1"}, ids)

	service.response = `{"value":[{"key":"d-1","status":true}]}`
	require.NoError(t, client.Delete(context.Background(), []string{"d-1"}))

	docs := service.requests[1].Payload["value"].([]any)
	assert.Equal(t, map[string]any{"@search.action": "delete", "id": "d-1"}, docs[0])
}

func TestClient_StatusError(t *testing.T) {
	service := &fakeService{
		status:   http.StatusForbidden,
		response: `{"error":{"code":"Forbidden","message":"key rejected"}}`,
	}
	client := newTestClient(t, service)

	_, err := client.Exists(context.Background(), storage.Filter{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "Forbidden", statusErr.Code)
}

func TestClient_TokenSource(t *testing.T) {
	service := &fakeService{response: `{"value":[]}`}
	client := newTestClient(t, service,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "entra-token"})))

	_, err := client.Exists(context.Background(), storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer entra-token", service.requests[0].Auth)
	assert.Empty(t, service.requests[0].APIKey)
}
