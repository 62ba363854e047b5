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

package sharerag

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/sharerag/ai"
	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/chunking"
	"github.com/poiesic/sharerag/graph"
	"github.com/poiesic/sharerag/orchestration"
	"github.com/poiesic/sharerag/storage/azuresearch"
	"github.com/poiesic/sharerag/storage/badger"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendBadger = "badger"
	BackendAzure  = "azure"
)

// Config is the complete runtime configuration of a Service.
type Config struct {
	// DataDir holds the BadgerDB files for page snapshots and, with the
	// badger backend, the index. Empty keeps everything in memory.
	DataDir string `yaml:"data_dir"`

	Graph         GraphConfig         `yaml:"graph"`
	Embedding     ai.Config           `yaml:"embedding"`
	Index         IndexConfig         `yaml:"index"`
	Blob          BlobConfig          `yaml:"blob"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
}

// GraphConfig holds the app registration and Microsoft Graph endpoint.
type GraphConfig struct {
	auth.EntraConfig `yaml:",inline"`

	BaseURL   string                `yaml:"base_url"`
	RateLimit graph.RateLimitConfig `yaml:"rate_limit"`
}

// IndexConfig selects and configures the search index backend.
type IndexConfig struct {
	// Backend is "badger" (default) or "azure".
	Backend string `yaml:"backend"`

	// Endpoint is the Azure AI Search service URL, e.g. https://contoso.search.windows.net
	Endpoint   string `yaml:"endpoint"`
	Name       string `yaml:"name"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`

	// UseEntra authenticates to Azure AI Search with the app registration
	// instead of an API key.
	UseEntra bool `yaml:"use_entra"`
}

// BlobConfig configures page snapshot storage and media links.
type BlobConfig struct {
	BaseURL    string        `yaml:"base_url"`
	SigningKey string        `yaml:"signing_key"`
	LinkTTL    time.Duration `yaml:"link_ttl"`
}

// ChunkingConfig configures document splitting.
type ChunkingConfig struct {
	TokenLimit int     `yaml:"token_limit"`
	DPI        float64 `yaml:"dpi"`
	Encoding   string  `yaml:"encoding"`
}

// OrchestrationConfig sizes the worker pools and the visibility poll.
type OrchestrationConfig struct {
	// PoolSize defaults to half the CPUs when zero.
	PoolSize       int           `yaml:"pool_size"`
	AccessPoolSize int           `yaml:"access_pool_size"`
	PollUnit       time.Duration `yaml:"poll_unit"`
	PollAttempts   int           `yaml:"poll_attempts"`
}

// DefaultConfig returns a Config for a local badger index and a local
// OpenAI-compatible embedding server. Credentials are left empty.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			BaseURL:   graph.DefaultBaseURL,
			RateLimit: graph.DefaultRateLimit,
		},
		Embedding: *ai.DefaultConfig(),
		Index: IndexConfig{
			Backend:    BackendBadger,
			APIVersion: azuresearch.DefaultAPIVersion,
		},
		Blob: BlobConfig{
			BaseURL: "http://localhost:8080/media",
			LinkTTL: badger.DefaultLinkTTL,
		},
		Chunking: ChunkingConfig{
			TokenLimit: chunking.ProductionTokenLimit,
			DPI:        chunking.DefaultDPI,
			Encoding:   chunking.DefaultEncoding,
		},
		Orchestration: OrchestrationConfig{
			AccessPoolSize: orchestration.DefaultAccessPoolSize,
			PollUnit:       orchestration.DefaultPollUnit,
			PollAttempts:   orchestration.DefaultPollAttempts,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Environment references
// such as ${SHARERAG_CLIENT_SECRET} are expanded first. A missing file, or an
// empty path, yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Normalize fills unset values with their defaults.
func (c *Config) Normalize() {
	defaults := DefaultConfig()

	c.Graph.BaseURL = strings.TrimSuffix(c.Graph.BaseURL, "/")
	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = defaults.Graph.BaseURL
	}
	if c.Graph.RateLimit.RequestsPerSecond <= 0 {
		c.Graph.RateLimit = defaults.Graph.RateLimit
	}

	c.Index.Backend = strings.ToLower(c.Index.Backend)
	if c.Index.Backend == "" {
		c.Index.Backend = BackendBadger
	}
	if c.Index.APIVersion == "" {
		c.Index.APIVersion = defaults.Index.APIVersion
	}

	if c.Blob.LinkTTL <= 0 {
		c.Blob.LinkTTL = defaults.Blob.LinkTTL
	}

	if c.Chunking.TokenLimit <= 0 {
		c.Chunking.TokenLimit = defaults.Chunking.TokenLimit
	}
	if c.Chunking.DPI <= 0 {
		c.Chunking.DPI = defaults.Chunking.DPI
	}
	if c.Chunking.Encoding == "" {
		c.Chunking.Encoding = defaults.Chunking.Encoding
	}

	if c.Orchestration.AccessPoolSize <= 0 {
		c.Orchestration.AccessPoolSize = defaults.Orchestration.AccessPoolSize
	}
	if c.Orchestration.PollUnit < 0 {
		c.Orchestration.PollUnit = defaults.Orchestration.PollUnit
	}
	if c.Orchestration.PollAttempts <= 0 {
		c.Orchestration.PollAttempts = defaults.Orchestration.PollAttempts
	}
}

// Validate normalizes the configuration and checks it is complete.
func (c *Config) Validate() error {
	c.Normalize()

	g := c.Graph.EntraConfig
	if g.TenantID == "" || g.ClientID == "" || g.ClientSecret == "" {
		return fmt.Errorf("%w: graph tenant_id, client_id and client_secret are required", ErrInvalidConfig)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Index.Backend {
	case BackendBadger:
	case BackendAzure:
		if c.Index.Endpoint == "" || c.Index.Name == "" {
			return fmt.Errorf("%w: azure index needs endpoint and name", ErrInvalidConfig)
		}
		if c.Index.APIKey == "" && !c.Index.UseEntra {
			return fmt.Errorf("%w: azure index needs api_key or use_entra", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidConfig, c.Index.Backend)
	}

	if c.Blob.SigningKey == "" {
		return fmt.Errorf("%w: blob signing_key is required", ErrInvalidConfig)
	}
	if c.Blob.BaseURL == "" {
		return fmt.Errorf("%w: blob base_url is required", ErrInvalidConfig)
	}
	return nil
}
