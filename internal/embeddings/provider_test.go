package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_TEI(t *testing.T) {
	provider, err := NewProvider(ProviderConfig{
		Provider: "tei",
		BaseURL:  "http://localhost:8080",
		Model:    "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	_, ok := provider.(*TEIProvider)
	assert.True(t, ok, "expected a TEI provider, got %T", provider)
	assert.Equal(t, 384, provider.Dimension())
}

func TestNewProvider_TEIRequiresBaseURL(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "tei"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_OpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	provider, err := NewProvider(ProviderConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, ok := provider.(*OpenAIProvider)
	assert.True(t, ok, "expected an OpenAI provider, got %T", provider)
	assert.Equal(t, 1536, provider.Dimension())
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "milvus"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "milvus")
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-small-zh-v1.5", 512},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"Alibaba-NLP/gte-base-en-v1.5", 768},
		{"some-large-model", 1024},
		{"completely-unknown", 384},
		{"", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}
