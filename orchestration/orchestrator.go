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

package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/chunking"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/index"
	"github.com/poiesic/sharerag/notify"
	"github.com/poiesic/sharerag/retry"
)

const (
	// DefaultPollUnit is the base wait of the visibility poll.
	DefaultPollUnit = time.Second

	// DefaultPollAttempts is the number of visibility checks before timing out.
	DefaultPollAttempts = 5

	// DefaultAccessPoolSize bounds concurrent access checks.
	DefaultAccessPoolSize = 4

	// overfetch is how many index hits are requested per wanted result, to
	// leave room for access filtering.
	overfetch = 10
)

// Orchestrator ties the document repository, the chunkers and the search
// index together. Every candidate a user searches for is brought into the
// index first, and index hits are filtered by what the user may read.
type Orchestrator struct {
	repository   Repository
	index        Index
	chunkers     Chunkers
	hub          notify.Hub
	indexPool    *ants.Pool
	accessPool   *ants.Pool
	accessSize   int
	pollUnit     time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPoolSize sets how many documents are brought into the index at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		pool, err := ants.NewPool(max(size, 1))
		if err != nil {
			return err
		}
		if o.indexPool != nil {
			o.indexPool.Release()
		}
		o.indexPool = pool
		return nil
	}
}

// WithAccessPoolSize sets how many access checks run at once.
// Default is DefaultAccessPoolSize.
func WithAccessPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		size = max(size, 1)
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if o.accessPool != nil {
			o.accessPool.Release()
		}
		o.accessPool = pool
		o.accessSize = size
		return nil
	}
}

// WithPollUnit sets the base wait of the visibility poll.
func WithPollUnit(unit time.Duration) Option {
	return func(o *Orchestrator) error {
		if unit < 0 {
			return fmt.Errorf("poll unit must not be negative, got %s", unit)
		}
		o.pollUnit = unit
		return nil
	}
}

// WithPollAttempts sets the number of visibility checks before timing out.
func WithPollAttempts(attempts int) Option {
	return func(o *Orchestrator) error {
		if attempts < 1 {
			return fmt.Errorf("poll attempts must be positive, got %d", attempts)
		}
		o.pollAttempts = attempts
		return nil
	}
}

// WithHub sets where progress notifications are delivered.
// Default drops them.
func WithHub(hub notify.Hub) Option {
	return func(o *Orchestrator) error {
		if hub == nil {
			hub = notify.NopHub{}
		}
		o.hub = hub
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "orchestrator")
		return nil
	}
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(repository Repository, idx Index, chunkers Chunkers, opts ...Option) (*Orchestrator, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if chunkers == nil {
		return nil, ErrChunkersRequired
	}

	o := &Orchestrator{
		repository:   repository,
		index:        idx,
		chunkers:     chunkers,
		hub:          notify.NopHub{},
		pollUnit:     DefaultPollUnit,
		pollAttempts: DefaultPollAttempts,
		logger:       slog.Default().With("component", "orchestrator"),
	}

	defaults := []Option{WithPoolSize(runtime.NumCPU() / 2), WithAccessPoolSize(DefaultAccessPoolSize)}
	for _, opt := range append(defaults, opts...) {
		if err := opt(o); err != nil {
			o.Release()
			return nil, err
		}
	}
	return o, nil
}

// Release releases the worker pools.
// The orchestrator should not be used after calling Release.
func (o *Orchestrator) Release() {
	if o.indexPool != nil {
		o.indexPool.Release()
	}
	if o.accessPool != nil {
		o.accessPool.Release()
	}
}

// request carries the per-call logger and notification channel.
type request struct {
	logger  *slog.Logger
	channel *notify.Channel
}

func (o *Orchestrator) newRequest(cc *auth.CallContext) request {
	logger := o.logger.With("request", uuid.NewString())
	return request{
		logger:  logger,
		channel: notify.NewChannel(o.hub, cc.UserID(), logger),
	}
}

// EnsureIndexed brings one candidate into the index. It never fails outright:
// errors are reported through the result's state and cause.
func (o *Orchestrator) EnsureIndexed(ctx context.Context, candidate core.CandidateDocument, cc *auth.CallContext) core.IndexResult {
	if cc == nil {
		safeID := index.SafeID(candidate.DriveID, candidate.ID)
		return core.IndexResult{DocumentID: safeID, State: core.IndexStateFailed, Err: errNoCallContext}
	}
	req := o.newRequest(cc)
	result := o.ensure(ctx, req, candidate, cc)
	if result.OK() {
		req.channel.Send(ctx, fmt.Sprintf("Document %s has been indexed.", result.DocumentID))
	}
	return result
}

// ensure runs the ensure-indexed pipeline and captures its outcome.
func (o *Orchestrator) ensure(ctx context.Context, req request, candidate core.CandidateDocument, cc *auth.CallContext) core.IndexResult {
	safeID := index.SafeID(candidate.DriveID, candidate.ID)
	logger := req.logger.With("document", safeID)

	state, err := o.ensurePipeline(ctx, req.channel, logger, safeID, candidate, cc)
	if err != nil {
		logger.Error("failed to ensure document is indexed", "title", candidate.Title, "err", err)
		return core.IndexResult{DocumentID: safeID, State: core.IndexStateFailed, Err: err}
	}
	logger.Debug("document ensured in index", "state", state.String())
	return core.IndexResult{DocumentID: safeID, State: state}
}

func (o *Orchestrator) ensurePipeline(
	ctx context.Context,
	channel *notify.Channel,
	logger *slog.Logger,
	safeID string,
	candidate core.CandidateDocument,
	cc *auth.CallContext,
) (core.IndexState, error) {
	fresh, err := o.index.IsIndexed(ctx, safeID, candidate.LastModified)
	if err != nil {
		return core.IndexStateFailed, err
	}
	if fresh {
		return core.IndexStatePresent, nil
	}

	channel.Send(ctx, fmt.Sprintf("Found '%s' which is not in the index yet. Please bear with me, I'm indexing it...", candidate.Title))
	logger.Info("indexing document", "title", candidate.Title)

	item, err := o.repository.GetItem(ctx, candidate.DriveID, candidate.ID, cc)
	if err != nil {
		return core.IndexStateFailed, err
	}

	chunker, err := o.chunkers.ForFile(candidate.Name, item.DownloadURL)
	if err != nil {
		return core.IndexStateFailed, err
	}
	fragments, err := chunking.Collect(chunker.Split(ctx, safeID))
	if err != nil {
		return core.IndexStateFailed, err
	}

	doc := index.Document{
		ID:          safeID,
		DriveID:     candidate.DriveID,
		DriveItemID: candidate.ID,
		URI:         item.WebURL,
		Title:       candidate.Title,
	}
	if _, err := o.index.IndexWithEmbeddings(ctx, doc, fragments); err != nil {
		return core.IndexStateFailed, err
	}

	channel.Send(ctx, fmt.Sprintf("Making sure '%s' has been successfully indexed...", candidate.Title))
	if err := o.awaitVisible(ctx, logger, safeID); err != nil {
		return core.IndexStateFailed, err
	}
	return core.IndexStateIndexed, nil
}

// awaitVisible polls until the index reports safeID, waiting
// pollUnit * (1 + 2*attempt) after each miss except the last.
func (o *Orchestrator) awaitVisible(ctx context.Context, logger *slog.Logger, safeID string) error {
	for attempt := 1; attempt <= o.pollAttempts; attempt++ {
		visible, err := o.index.IsIndexed(ctx, safeID, time.Time{})
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
		logger.Debug("waiting for indexing to complete", "attempt", attempt)
		if attempt == o.pollAttempts {
			break
		}
		if err := retry.Wait(ctx, o.pollUnit*time.Duration(1+2*attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s not visible after %d checks", core.ErrIndexingTimeout, safeID, o.pollAttempts)
}

// Search finds candidates for keywords in the repository, brings each into
// the index, then queries the index for query restricted to those documents.
// The first ensure failure in candidate order is returned.
func (o *Orchestrator) Search(ctx context.Context, keywords, query string, cc *auth.CallContext, maxResults int) ([]core.IndexedItem, error) {
	if maxResults <= 0 {
		return nil, ErrInvalidMaxResults
	}
	if cc == nil {
		return nil, errNoCallContext
	}
	req := o.newRequest(cc)
	req.logger.Info("searching", "keywords", keywords, "query", query)

	req.channel.Send(ctx, fmt.Sprintf("Asking sharepoint for '%s'...", keywords))
	candidates, err := o.repository.Search(ctx, keywords, cc, maxResults)
	if err != nil {
		return nil, err
	}
	req.logger.Info("repository returned candidates", "count", len(candidates))
	if len(candidates) == 0 {
		req.channel.Send(ctx, "Found 0 indexed fragments.")
		return []core.IndexedItem{}, nil
	}

	results, err := o.ensureAll(ctx, req, candidates, cc)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(results))
	for _, result := range results {
		if !result.OK() {
			return nil, result.Err
		}
		ids = append(ids, result.DocumentID)
	}

	items, err := o.index.Query(ctx, query, ids, maxResults)
	if err != nil {
		return nil, err
	}
	req.channel.Send(ctx, fmt.Sprintf("Found %d indexed fragments.", len(items)))
	return items, nil
}

// ensureAll runs the ensure pipeline for every candidate on the index pool
// and returns the results in candidate order.
func (o *Orchestrator) ensureAll(ctx context.Context, req request, candidates []core.CandidateDocument, cc *auth.CallContext) ([]core.IndexResult, error) {
	results := make([]core.IndexResult, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		err := o.indexPool.Submit(func() {
			defer wg.Done()
			results[i] = o.ensure(ctx, req, candidate, cc)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting ensure task: %w", err)
		}
	}
	wg.Wait()
	return results, nil
}

// SearchIndexed queries the whole index and keeps only fragments of
// documents the caller can read, in relevance order. Access is checked in
// waves, each document at most once, and no document is checked once the
// documents already granted could supply maxResults fragments.
func (o *Orchestrator) SearchIndexed(ctx context.Context, query string, cc *auth.CallContext, maxResults int) ([]core.IndexedItem, error) {
	if maxResults <= 0 {
		return nil, ErrInvalidMaxResults
	}
	if cc == nil {
		return nil, errNoCallContext
	}
	req := o.newRequest(cc)
	req.logger.Info("searching indexed documents", "query", query)
	req.channel.Send(ctx, "Searching indexed documents...")

	hits, err := o.index.Query(ctx, query, nil, maxResults*overfetch)
	if err != nil {
		req.channel.Send(ctx, fmt.Sprintf("Oops, something went wrong: %v", err))
		return nil, err
	}

	accessible := make(map[string]bool)
	results := make([]core.IndexedItem, 0, maxResults)
	next := 0
	for next < len(hits) && len(results) < maxResults {
		wave := o.nextWave(hits[next:], accessible, maxResults-len(results))
		if err := o.checkAccess(ctx, req.logger, wave, accessible, cc); err != nil {
			return nil, err
		}
		for next < len(hits) && len(results) < maxResults {
			verdict, known := accessible[hits[next].DocumentID]
			if !known {
				break
			}
			if verdict {
				results = append(results, hits[next])
			}
			next++
		}
	}

	req.logger.Info("filtered index hits", "hits", len(hits), "documents", len(accessible), "kept", len(results))
	req.channel.Send(ctx, fmt.Sprintf("Found %d indexed fragments.", len(results)))
	return results, nil
}

// nextWave picks, in first-occurrence order, up to accessSize documents from
// hits that have no verdict yet. Picking stops once the hits of granted and
// picked documents could fill need results, so no document is checked that a
// one-at-a-time scan would have skipped.
func (o *Orchestrator) nextWave(hits []core.IndexedItem, known map[string]bool, need int) []core.IndexedItem {
	var wave []core.IndexedItem
	picked := make(map[string]bool)
	slots := 0
	for _, hit := range hits {
		if slots >= need || len(wave) == o.accessSize {
			break
		}
		if verdict, ok := known[hit.DocumentID]; ok {
			if verdict {
				slots++
			}
			continue
		}
		slots++
		if picked[hit.DocumentID] {
			continue
		}
		picked[hit.DocumentID] = true
		wave = append(wave, hit)
	}
	return wave
}

// checkAccess runs one access check per document in wave and records the
// verdicts. A failed check means the caller cannot read the document.
func (o *Orchestrator) checkAccess(ctx context.Context, logger *slog.Logger, wave []core.IndexedItem, verdicts map[string]bool, cc *auth.CallContext) error {
	granted := make([]bool, len(wave))
	var wg sync.WaitGroup
	for i, hit := range wave {
		wg.Add(1)
		err := o.accessPool.Submit(func() {
			defer wg.Done()
			_, err := o.repository.GetItem(ctx, hit.DriveID, hit.DriveItemID, cc)
			if err != nil {
				logger.Debug("document not accessible", "document", hit.DocumentID, "err", err)
				return
			}
			granted[i] = true
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submitting access check: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for i, hit := range wave {
		verdicts[hit.DocumentID] = granted[i]
	}
	return nil
}
