package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *IndexRepository {
	t.Helper()
	index, _, backend, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return index
}

func record(doc string, chunk int, content string, vector []float32, modified time.Time) core.IndexedFragmentRecord {
	return core.IndexedFragmentRecord{
		ID:           core.FragmentID(doc, chunk),
		Chunk:        chunk,
		DocumentID:   doc,
		Content:      content,
		Embedding:    vector,
		LastModified: modified,
	}
}

func TestIndexRepository_UploadAndExists(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	result, err := index.Exists(ctx, storage.ForDocuments("doc"))
	require.NoError(t, err)
	assert.False(t, result.Found)

	require.NoError(t, index.Upload(ctx, []core.IndexedFragmentRecord{
		record("doc", 0, "first", []float32{1, 0}, t1),
		record("doc", 1, "second", []float32{0, 1}, t2),
		record("other", 0, "third", []float32{1, 1}, t1),
	}))

	result, err = index.Exists(ctx, storage.ForDocuments("doc"))
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, t2.Equal(result.LastModified))

	result, err = index.Exists(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.True(t, result.Found)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIndexRepository_UploadRejectsInvalid(t *testing.T) {
	index := newTestIndex(t)
	bad := record("doc", 0, "x", nil, time.Now())
	bad.ID = "doc-7"

	err := index.Upload(context.Background(), []core.IndexedFragmentRecord{bad})
	assert.ErrorIs(t, err, core.ErrInvalidRecord)
}

func TestIndexRepository_UploadReplaces(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	now := time.Now().UTC()

	require.NoError(t, index.Upload(ctx, []core.IndexedFragmentRecord{record("doc", 0, "old text", []float32{1}, now)}))
	require.NoError(t, index.Upload(ctx, []core.IndexedFragmentRecord{record("doc", 0, "new text", []float32{1}, now)}))

	items, err := index.Query(ctx, storage.QueryRequest{Vector: []float32{1}, K: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new text", items[0].Content)
}

func TestIndexRepository_Query(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	now := time.Now().UTC()

	require.NoError(t, index.Upload(ctx, []core.IndexedFragmentRecord{
		record("a", 0, "Budget planning for the quarter", []float32{1, 0}, now),
		record("a", 1, "Holiday schedule", []float32{0.9, 0.1}, now),
		record("b", 0, "Unrelated notes", []float32{0, 1}, now),
		record("c", 0, "The budget, planning and forecasts", []float32{0, 1}, now),
	}))

	t.Run("vector ranking", func(t *testing.T) {
		items, err := index.Query(ctx, storage.QueryRequest{Vector: []float32{1, 0}, K: 2})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "a-0", items[0].ID)
		assert.Equal(t, "a-1", items[1].ID)
		assert.GreaterOrEqual(t, items[0].Score, items[1].Score)
	})

	t.Run("text match boosts score", func(t *testing.T) {
		items, err := index.Query(ctx, storage.QueryRequest{Text: "budget planning", Vector: []float32{0.5, 0.5}, K: 4})
		require.NoError(t, err)
		require.Len(t, items, 4)
		top := []string{items[0].ID, items[1].ID}
		assert.ElementsMatch(t, []string{"a-0", "c-0"}, top)
	})

	t.Run("filter restricts documents", func(t *testing.T) {
		items, err := index.Query(ctx, storage.QueryRequest{Vector: []float32{1, 0}, Filter: storage.ForDocuments("b", "c"), K: 10})
		require.NoError(t, err)
		require.Len(t, items, 2)
		for _, item := range items {
			assert.Contains(t, []string{"b", "c"}, item.DocumentID)
		}
	})

	t.Run("k must be positive", func(t *testing.T) {
		_, err := index.Query(ctx, storage.QueryRequest{Vector: []float32{1, 0}})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestIndexRepository_FragmentIDsAndDelete(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	now := time.Now().UTC()

	require.NoError(t, index.Upload(ctx, []core.IndexedFragmentRecord{
		record("doc", 0, "a", []float32{1}, now),
		record("doc", 1, "b", []float32{1}, now),
		record("doc", 2, "c", []float32{1}, now),
		record("doc-x", 0, "d", []float32{1}, now),
	}))

	ids, err := index.FragmentIDs(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2"}, ids)

	require.NoError(t, index.Delete(ctx, []string{"doc-1", "doc-2", "missing-0"}))

	ids, err = index.FragmentIDs(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-0"}, ids)

	ids, err = index.FragmentIDs(ctx, "doc-x")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-x-0"}, ids)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine(nil, []float32{1}))
	assert.Zero(t, cosine([]float32{1, 2}, []float32{1}))
}

func TestQueryTerms_ContainsAll(t *testing.T) {
	terms := queryTerms(tokenizeAndFilter("What is the Budget?"))
	assert.Equal(t, queryTerms{"budget"}, terms)
	assert.True(t, terms.containsAll("Our budget, revised."))
	assert.False(t, terms.containsAll("Nothing here"))
	assert.False(t, queryTerms(nil).containsAll("anything"))
}

func TestIndexRepository_ForEachBatch(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	records := make([]core.IndexedFragmentRecord, 0, 5)
	for i := range 5 {
		records = append(records, record("doc", i, "content", []float32{1, 0}, now))
	}
	require.NoError(t, index.Upload(ctx, records))

	var sizes []int
	var seen []string
	err := index.ForEachBatch(ctx, 2, func(batch []core.IndexedFragmentRecord) error {
		sizes = append(sizes, len(batch))
		for i := range batch {
			seen = append(seen, batch[i].ID)
			batch[i].Embedding = []float32{0, 1}
		}
		// Writing back during iteration is allowed.
		return index.Upload(ctx, batch)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2", "doc-3", "doc-4"}, seen)

	hits, err := index.Query(ctx, storage.QueryRequest{Vector: []float32{0, 1}, K: 5})
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for _, hit := range hits {
		assert.InDelta(t, 1.0, hit.Score, 1e-6, "embedding should have been rewritten")
	}

	assert.Error(t, index.ForEachBatch(ctx, 0, func([]core.IndexedFragmentRecord) error { return nil }))
}
