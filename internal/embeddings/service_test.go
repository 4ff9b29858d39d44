package embeddings

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/paddockd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EmbeddingConfig
	}{
		{"missing base URL", config.EmbeddingConfig{Model: "m"}},
		{"missing model", config.EmbeddingConfig{BaseURL: "http://localhost:8080/v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewServiceWithoutAPIKey(t *testing.T) {
	// TEI endpoints need no key; the client must still construct.
	svc, err := NewService(config.EmbeddingConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	svc, err := NewService(config.EmbeddingConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
