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

package ai

import (
	"errors"
	"strings"
)

// APIType selects the wire dialect of the embedding service.
type APIType string

const (
	// APITypeOpenAI is the OpenAI API or any OpenAI-compatible server.
	APITypeOpenAI APIType = "openai"
	// APITypeAzure is an Azure OpenAI deployment.
	APITypeAzure APIType = "azure"
)

// DefaultAzureAPIVersion is the Azure OpenAI REST version used when none is set.
const DefaultAzureAPIVersion = "2024-02-01"

// Config holds configuration for the embedding service.
type Config struct {
	// Host is the base URL of the embedding API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server,
	// "https://myresource.openai.azure.com" for Azure OpenAI.
	Host string `yaml:"host"`

	// Model is the embedding model, or the deployment name for Azure.
	// Example: "text-embedding-ada-002", "embeddinggemma"
	Model string `yaml:"model"`

	// Token is the API key. Local servers accept any value.
	Token string `yaml:"token"`

	// APIType is "openai" (default) or "azure".
	APIType APIType `yaml:"api_type"`

	// APIVersion is required by Azure OpenAI and ignored otherwise.
	APIVersion string `yaml:"api_version"`

	// BatchSize caps the number of texts sent in one request.
	// Default: 16
	BatchSize int `yaml:"batch_size"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model or deployment.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithToken sets the API key.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithAzure switches to Azure OpenAI with the given API version.
func WithAzure(apiVersion string) ConfigOption {
	return func(c *Config) {
		c.APIType = APITypeAzure
		c.APIVersion = apiVersion
	}
}

// WithBatchSize sets the maximum texts per request.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// DefaultConfig returns a Config for a local OpenAI-compatible server.
func DefaultConfig() *Config {
	return &Config{
		Host:      "http://localhost:11434/v1",
		Model:     "embeddinggemma",
		Token:     "none",
		APIType:   APITypeOpenAI,
		BatchSize: 16,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://contoso.openai.azure.com"),
//	    WithModel("text-embedding-ada-002"),
//	    WithToken(key),
//	    WithAzure("2024-02-01"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get a /v1 suffix; Azure hosts lose any trailing
// slash and get a default API version.
func (c *Config) Normalize() {
	if c.APIType == "" {
		c.APIType = APITypeOpenAI
	}
	c.Host = strings.TrimSuffix(c.Host, "/")
	switch c.APIType {
	case APITypeOpenAI:
		if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
			c.Host = c.Host + "/v1"
		}
	case APITypeAzure:
		if c.APIVersion == "" {
			c.APIVersion = DefaultAzureAPIVersion
		}
	}
	if c.Token == "" && c.APIType == APITypeOpenAI {
		c.Token = "none"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.APIType != APITypeOpenAI && c.APIType != APITypeAzure {
		return errors.New("ai config: APIType must be openai or azure")
	}
	if c.APIType == APITypeAzure && c.Token == "" {
		return errors.New("ai config: Token is required for azure")
	}
	return nil
}
