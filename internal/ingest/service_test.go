package ingest_test

import (
	"context"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/paddockd/internal/ingest"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticEmbedder struct{}

func (staticEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (staticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newService(t *testing.T) (*ingest.Service, vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, staticEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	svc, err := ingest.NewService(store, zap.NewNop())
	require.NoError(t, err)
	return svc, store
}

func TestCreateUploadCollection(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	id, err := svc.CreateUploadCollection(ctx, "FIA Regulations Draft.PDF", []vectorstore.Passage{
		{ID: "c1", Text: "uploaded regulations chunk one"},
		{ID: "c2", Text: "uploaded regulations chunk two"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "upload_fia_regulations_draft_pdf_"))

	info, err := store.GetCollectionInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PassageCount)
	assert.True(t, info.Uploaded)
}

func TestCreateUploadCollectionUniqueIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	payload := []vectorstore.Passage{{ID: "c", Text: "chunk"}}
	a, err := svc.CreateUploadCollection(ctx, "doc.pdf", payload)
	require.NoError(t, err)
	b, err := svc.CreateUploadCollection(ctx, "doc.pdf", payload)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCreateUploadCollectionEmptyPayload(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateUploadCollection(context.Background(), "doc.pdf", nil)
	assert.ErrorIs(t, err, ingest.ErrEmptyPayload)
}

func TestCreateUploadCollectionPayloadCap(t *testing.T) {
	svc, _ := newService(t)

	passages := make([]vectorstore.Passage, ingest.MaxPassagesPerUpload+1)
	for i := range passages {
		passages[i] = vectorstore.Passage{Text: "chunk"}
	}
	_, err := svc.CreateUploadCollection(context.Background(), "doc.pdf", passages)
	assert.ErrorIs(t, err, ingest.ErrPayloadTooLarge)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	id, err := svc.CreateUploadCollection(ctx, "FIA Regulations Draft.PDF", []vectorstore.Passage{{ID: "c", Text: "chunk"}})
	require.NoError(t, err)

	require.NoError(t, svc.Discard(ctx, id))

	exists, err := store.CollectionExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	// Discarding again is a no-op, as is discarding the empty ID.
	assert.NoError(t, svc.Discard(ctx, id))
	assert.NoError(t, svc.Discard(ctx, ""))
}

func TestDiscardRefusesBaseCollection(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	require.NoError(t, store.CreateCollection(ctx, "fia_2026", false))

	err := svc.Discard(ctx, "fia_2026")
	assert.ErrorIs(t, err, ingest.ErrNotUploaded)

	exists, err := store.CollectionExists(ctx, "fia_2026")
	require.NoError(t, err)
	assert.True(t, exists)
}
