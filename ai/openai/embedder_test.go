package openai

import (
	"testing"

	"github.com/poiesic/sharerag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	openaiCfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
	require.NoError(t, openaiCfg.Validate())
	assert.Len(t, clientOptions(openaiCfg), 3)

	azureCfg := ai.NewConfig(
		ai.WithHost("https://contoso.openai.azure.com"),
		ai.WithToken("key"),
		ai.WithAzure(""),
	)
	require.NoError(t, azureCfg.Validate())
	assert.Len(t, clientOptions(azureCfg), 5)
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(&ai.Config{Host: "http://localhost"})
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	embedder, err := NewEmbedder(ai.DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}
