package orchestration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/chunking"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/index"
)

type fakeRepository struct {
	mu         sync.Mutex
	candidates []core.CandidateDocument
	searchErr  error
	denied     map[string]bool // by item id
	items      map[string]core.ItemInfo
	checks     map[string]int // GetItem calls per item id
}

func (r *fakeRepository) Search(ctx context.Context, query string, cc *auth.CallContext, maxResults int) ([]core.CandidateDocument, error) {
	return r.candidates, r.searchErr
}

func (r *fakeRepository) GetItem(ctx context.Context, driveID, itemID string, cc *auth.CallContext) (core.ItemInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checks == nil {
		r.checks = map[string]int{}
	}
	r.checks[itemID]++
	if r.denied[itemID] {
		return core.ItemInfo{}, fmt.Errorf("%w: %s/%s", core.ErrItemFetch, driveID, itemID)
	}
	if item, ok := r.items[itemID]; ok {
		return item, nil
	}
	return core.ItemInfo{ID: itemID, WebURL: "https://contoso/" + itemID, DownloadURL: "https://download/" + itemID}, nil
}

func (r *fakeRepository) checkCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.checks))
	for k, v := range r.checks {
		out[k] = v
	}
	return out
}

type queryCall struct {
	text string
	ids  []string
	k    int
}

type fakeIndex struct {
	mu sync.Mutex
	// stamps of indexed documents.
	stamps map[string]time.Time
	// visibleAfter delays visibility of newly indexed documents by this many presence checks.
	visibleAfter int
	pending      map[string]int
	indexed      []index.Document
	fragments    map[string][]core.DocumentFragment
	failIndex    map[string]error
	checks       int
	hits         []core.IndexedItem
	queryErr     error
	queries      []queryCall
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		stamps:    map[string]time.Time{},
		pending:   map[string]int{},
		fragments: map[string][]core.DocumentFragment{},
		failIndex: map[string]error{},
	}
}

func (f *fakeIndex) IsIndexed(ctx context.Context, safeID string, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	stamp, ok := f.stamps[safeID]
	if !ok {
		return false, nil
	}
	if remaining := f.pending[safeID]; remaining > 0 {
		f.pending[safeID] = remaining - 1
		return false, nil
	}
	return since.IsZero() || !stamp.Before(since), nil
}

func (f *fakeIndex) IndexWithEmbeddings(ctx context.Context, doc index.Document, fragments []core.DocumentFragment) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failIndex[doc.ID]; err != nil {
		return 0, err
	}
	f.indexed = append(f.indexed, doc)
	f.fragments[doc.ID] = fragments
	f.stamps[doc.ID] = time.Now()
	f.pending[doc.ID] = f.visibleAfter
	return len(fragments), nil
}

func (f *fakeIndex) Query(ctx context.Context, text string, documentIDs []string, k int) ([]core.IndexedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, queryCall{text: text, ids: documentIDs, k: k})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.hits, nil
}

func (f *fakeIndex) presenceChecks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type fakeChunker struct {
	texts []string
	err   error
}

func (c *fakeChunker) Split(ctx context.Context, idPrefix string) iter.Seq2[core.DocumentFragment, error] {
	return func(yield func(core.DocumentFragment, error) bool) {
		if c.err != nil {
			yield(core.DocumentFragment{}, c.err)
			return
		}
		for _, text := range c.texts {
			if !yield(core.DocumentFragment{Text: idPrefix + ": " + text}, nil) {
				return
			}
		}
	}
}

type fakeChunkers struct {
	err error
}

func (f fakeChunkers) ForFile(name, downloadURL string) (chunking.Chunker, error) {
	ext := strings.ToLower(path.Ext(name))
	if ext != ".pdf" && ext != ".docx" {
		return nil, &core.UnsupportedFileTypeError{Extension: ext}
	}
	return &fakeChunker{texts: []string{"page one", "page two"}, err: f.err}, nil
}

type recordingHub struct {
	mu       sync.Mutex
	messages []string
	users    []string
	err      error
}

func (h *recordingHub) Send(ctx context.Context, userID, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
	h.users = append(h.users, userID)
	return h.err
}

func (h *recordingHub) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

var errBoom = errors.New("boom")
