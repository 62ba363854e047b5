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

// Package sharerag wires the SharePoint retrieval stack from a Config.
package sharerag

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/sharerag/ai"
	"github.com/poiesic/sharerag/ai/openai"
	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/chunking"
	"github.com/poiesic/sharerag/graph"
	"github.com/poiesic/sharerag/index"
	"github.com/poiesic/sharerag/notify"
	"github.com/poiesic/sharerag/orchestration"
	"github.com/poiesic/sharerag/reembed"
	"github.com/poiesic/sharerag/storage"
	"github.com/poiesic/sharerag/storage/azuresearch"
	"github.com/poiesic/sharerag/storage/badger"
	"golang.org/x/oauth2"
)

// Service owns the storage, clients and orchestrator built from a Config.
type Service struct {
	backend      *badger.Backend
	blobs        *badger.BlobRepository
	localIndex   *badger.IndexRepository
	embedder     ai.Embedder
	exchanger    auth.Exchanger
	orchestrator *orchestration.Orchestrator
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	hub          notify.Hub
	embedder     ai.Embedder
	httpClient   *http.Client
	indexService storage.IndexService
	exchanger    auth.Exchanger
	counter      chunking.TokenCounter
	logger       *slog.Logger
}

// WithHub sets where progress notifications go. Default drops them.
func WithHub(hub notify.Hub) Option {
	return func(o *serviceOptions) { o.hub = hub }
}

// WithEmbedder replaces the configured embedding service.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *serviceOptions) { o.embedder = embedder }
}

// WithHTTPClient sets the client used for Graph, Entra, Azure Search and
// document downloads.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *serviceOptions) { o.httpClient = httpClient }
}

// WithIndexService replaces the configured index backend.
func WithIndexService(service storage.IndexService) Option {
	return func(o *serviceOptions) { o.indexService = service }
}

// WithExchanger replaces the Entra token exchanger.
func WithExchanger(exchanger auth.Exchanger) Option {
	return func(o *serviceOptions) { o.exchanger = exchanger }
}

// WithTokenCounter replaces the tiktoken counter used to size docx fragments.
func WithTokenCounter(counter chunking.TokenCounter) Option {
	return func(o *serviceOptions) { o.counter = counter }
}

// WithLogger sets the base logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// searchTokenSource is implemented by exchangers that can mint tokens for
// resources other than Graph.
type searchTokenSource interface {
	TokenSource(ctx context.Context, scopes ...string) oauth2.TokenSource
}

// NewService validates cfg and builds the full stack. Close releases it.
func NewService(cfg *Config, opts ...Option) (*Service, error) {
	options := &serviceOptions{
		hub:        notify.NopHub{},
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger

	backend, err := badger.OpenBackend(cfg.DataDir, cfg.DataDir == "")
	if err != nil {
		return nil, err
	}
	s := &Service{backend: backend, logger: logger.With("component", "sharerag")}

	if err := s.build(cfg, options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(cfg *Config, options *serviceOptions) error {
	logger := options.logger

	blobs, err := badger.NewBlobRepository(s.backend, cfg.Blob.BaseURL, []byte(cfg.Blob.SigningKey),
		badger.WithLinkTTL(cfg.Blob.LinkTTL))
	if err != nil {
		return err
	}
	s.blobs = blobs

	s.exchanger = options.exchanger
	if s.exchanger == nil {
		s.exchanger, err = auth.NewEntraExchanger(cfg.Graph.EntraConfig, options.httpClient)
		if err != nil {
			return err
		}
	}
	resolver, err := auth.NewResolver(s.exchanger, logger)
	if err != nil {
		return err
	}

	repository, err := graph.NewClient(resolver,
		graph.WithBaseURL(cfg.Graph.BaseURL),
		graph.WithHTTPClient(options.httpClient),
		graph.WithRateLimit(cfg.Graph.RateLimit),
		graph.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	service := options.indexService
	if service == nil {
		if service, err = s.indexService(cfg, options); err != nil {
			return err
		}
	}

	embedder := options.embedder
	if embedder == nil {
		if embedder, err = openai.NewEmbedder(&cfg.Embedding); err != nil {
			return err
		}
	}
	s.embedder = embedder

	idx, err := index.NewClient(service, embedder, index.WithLogger(logger))
	if err != nil {
		return err
	}

	counter := options.counter
	if counter == nil {
		if counter, err = chunking.NewTiktokenCounter(cfg.Chunking.Encoding); err != nil {
			return err
		}
	}
	fetcher := &chunking.HTTPFetcher{Client: options.httpClient}
	registry := chunking.NewRegistry(
		&chunking.DocxFormat{Fetcher: fetcher, Counter: counter, TokenLimit: cfg.Chunking.TokenLimit, Logger: logger},
		&chunking.PDFFormat{Fetcher: fetcher, Store: blobs, DPI: cfg.Chunking.DPI, Logger: logger},
	)

	orchestratorOpts := []orchestration.Option{
		orchestration.WithAccessPoolSize(cfg.Orchestration.AccessPoolSize),
		orchestration.WithPollUnit(cfg.Orchestration.PollUnit),
		orchestration.WithPollAttempts(cfg.Orchestration.PollAttempts),
		orchestration.WithHub(options.hub),
		orchestration.WithLogger(logger),
	}
	if cfg.Orchestration.PoolSize > 0 {
		orchestratorOpts = append(orchestratorOpts, orchestration.WithPoolSize(cfg.Orchestration.PoolSize))
	}
	s.orchestrator, err = orchestration.NewOrchestrator(repository, idx, registry, orchestratorOpts...)
	return err
}

func (s *Service) indexService(cfg *Config, options *serviceOptions) (storage.IndexService, error) {
	if cfg.Index.Backend == BackendBadger {
		s.localIndex = badger.NewIndexRepository(s.backend)
		return s.localIndex, nil
	}

	clientOpts := []azuresearch.Option{
		azuresearch.WithHTTPClient(options.httpClient),
		azuresearch.WithAPIVersion(cfg.Index.APIVersion),
		azuresearch.WithLogger(options.logger),
	}
	if cfg.Index.UseEntra {
		sourcer, ok := s.exchanger.(searchTokenSource)
		if !ok {
			return nil, ErrTokenSourceUnavailable
		}
		ts := sourcer.TokenSource(context.Background(), azuresearch.TokenScope)
		clientOpts = append(clientOpts, azuresearch.WithTokenSource(ts))
	} else {
		clientOpts = append(clientOpts, azuresearch.WithAPIKey(cfg.Index.APIKey))
	}
	return azuresearch.NewClient(cfg.Index.Endpoint, cfg.Index.Name, clientOpts...)
}

// Orchestrator returns the orchestrator serving search and indexing.
func (s *Service) Orchestrator() *orchestration.Orchestrator {
	return s.orchestrator
}

// AppContext returns a call context acting as the application itself.
func (s *Service) AppContext(ctx context.Context) (*auth.CallContext, error) {
	return auth.ForApp(ctx, s.exchanger)
}

// UserContext returns a call context for a user's bearer token.
func (s *Service) UserContext(userToken string) *auth.CallContext {
	return auth.ForUser(userToken)
}

// MediaLink returns a time-limited URL for a stored page snapshot.
func (s *Service) MediaLink(ctx context.Context, name string) (string, error) {
	return s.blobs.Link(ctx, name)
}

// OpenMedia checks a media link's expiry and signature and returns the snapshot.
func (s *Service) OpenMedia(ctx context.Context, name, exp, sig string) ([]byte, error) {
	if err := s.blobs.Verify(name, exp, sig); err != nil {
		return nil, err
	}
	return s.blobs.Get(ctx, name)
}

// Reembed recomputes every fragment embedding in the local index with the
// configured embedder and returns how many fragments were rewritten.
func (s *Service) Reembed(ctx context.Context, config *reembed.Config, progress io.Writer) (int, error) {
	if s.localIndex == nil {
		return 0, ErrReembedUnsupported
	}
	reembedder, err := reembed.NewReembedder(s.localIndex, s.embedder, config, progress)
	if err != nil {
		return 0, err
	}
	return reembedder.Run(ctx)
}

// Close releases the worker pools and closes the database.
func (s *Service) Close() error {
	if s.orchestrator != nil {
		s.orchestrator.Release()
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
