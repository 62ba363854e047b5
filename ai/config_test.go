package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "embeddinggemma", cfg.Model)
	assert.Equal(t, APITypeOpenAI, cfg.APIType)
	assert.Equal(t, 16, cfg.BatchSize)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"), WithModel("text-embedding-3-small"))

		assert.Equal(t, "http://custom:8080/v1", cfg.Host)
		assert.Equal(t, "text-embedding-3-small", cfg.Model)
	})

	t.Run("with azure", func(t *testing.T) {
		cfg := NewConfig(WithAzure("2023-05-15"), WithToken("secret"), WithBatchSize(4))

		assert.Equal(t, APITypeAzure, cfg.APIType)
		assert.Equal(t, "2023-05-15", cfg.APIVersion)
		assert.Equal(t, "secret", cfg.Token)
		assert.Equal(t, 4, cfg.BatchSize)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		host    string
		version string
	}{
		{
			name:   "openai adds v1",
			config: Config{Host: "http://localhost:11434"},
			host:   "http://localhost:11434/v1",
		},
		{
			name:   "openai keeps v1",
			config: Config{Host: "http://localhost:11434/v1/"},
			host:   "http://localhost:11434/v1",
		},
		{
			name:    "azure trims slash and defaults version",
			config:  Config{Host: "https://contoso.openai.azure.com/", APIType: APITypeAzure},
			host:    "https://contoso.openai.azure.com",
			version: DefaultAzureAPIVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.Normalize()
			assert.Equal(t, tt.host, cfg.Host)
			assert.Equal(t, tt.version, cfg.APIVersion)
			assert.Equal(t, 16, cfg.BatchSize)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("default is valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := &Config{Model: "m"}
		assert.ErrorContains(t, cfg.Validate(), "Host")
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := &Config{Host: "http://h"}
		assert.ErrorContains(t, cfg.Validate(), "Model")
	})

	t.Run("unknown api type", func(t *testing.T) {
		cfg := &Config{Host: "http://h", Model: "m", APIType: "bedrock"}
		assert.ErrorContains(t, cfg.Validate(), "APIType")
	})

	t.Run("azure needs a key", func(t *testing.T) {
		cfg := &Config{Host: "https://h", Model: "m", APIType: APITypeAzure}
		assert.ErrorContains(t, cfg.Validate(), "Token")
	})
}
