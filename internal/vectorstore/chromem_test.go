package vectorstore_test

import (
	"context"
	"math"
	"testing"

	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEmbedder returns deterministic normalized vectors derived from the text.
type testEmbedder struct {
	vectorSize int
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.makeEmbedding(text)
	}
	return embeddings, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *testEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float32
	for i := range embedding {
		embedding[i] = float32((hash+i)%100) / 100.0
		sumSq += embedding[i] * embedding[i]
	}
	// chromem requires normalized vectors.
	if sumSq > 0 {
		norm := float32(1.0 / math.Sqrt(float64(sumSq)))
		for i := range embedding {
			embedding[i] *= norm
		}
	}
	return embedding
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	store, err := vectorstore.NewChromemStore(
		vectorstore.ChromemConfig{},
		&testEmbedder{vectorSize: 8},
		zap.NewNop(),
	)
	require.NoError(t, err)
	return store
}

func TestNewChromemStoreRequiresEmbedder(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestCreateCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateCollection(ctx, "fia_2026", false))

	exists, err := store.CollectionExists(ctx, "fia_2026")
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.CreateCollection(ctx, "fia_2026", false)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionExists)

	err = store.CreateCollection(ctx, "Not Valid!", false)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}

func TestAddPassagesAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "fia_2026", false))

	passages := []vectorstore.Passage{
		{ID: "p1", Text: "the minimum mass of the car is 768 kg", Metadata: map[string]string{
			vectorstore.MetaSource: "technical_regulations.pdf",
			vectorstore.MetaRuleID: "4.1",
		}},
		{ID: "p2", Text: "power unit fuel mass flow must not exceed the limit"},
		{ID: "p3", Text: "drivers must wear approved helmets at all times"},
	}
	ids, err := store.AddPassages(ctx, "fia_2026", passages)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids)

	results, err := store.SearchInCollection(ctx, "fia_2026", "minimum mass of the car", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "technical_regulations.pdf", mustFind(t, results, "p1").Source())
}

func mustFind(t *testing.T, results []vectorstore.SearchResult, id string) vectorstore.SearchResult {
	t.Helper()
	for _, r := range results {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("result %s not found", id)
	return vectorstore.SearchResult{}
}

func TestSearchMissingCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.SearchInCollection(ctx, "gone", "anything", 5)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestSearchClampsKToCollectionSize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "small", false))
	_, err := store.AddPassages(ctx, "small", []vectorstore.Passage{
		{ID: "only", Text: "a single passage"},
	})
	require.NoError(t, err)

	results, err := store.SearchInCollection(ctx, "small", "single", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "empty", false))

	results, err := store.SearchInCollection(ctx, "empty", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTieBreaksByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "ties", false))

	// Identical text yields identical vectors and therefore identical scores.
	_, err := store.AddPassages(ctx, "ties", []vectorstore.Passage{
		{ID: "first", Text: "gearbox change penalty"},
		{ID: "second", Text: "gearbox change penalty"},
		{ID: "third", Text: "gearbox change penalty"},
	})
	require.NoError(t, err)

	results, err := store.SearchInCollection(ctx, "ties", "gearbox penalty", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
	assert.Equal(t, "third", results[2].ID)
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "doomed", true))

	require.NoError(t, store.DeleteCollection(ctx, "doomed"))

	exists, err := store.CollectionExists(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.DeleteCollection(ctx, "doomed")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	_, err = store.SearchInCollection(ctx, "doomed", "anything", 5)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestCollectionIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "fia_2026", false))
	require.NoError(t, store.CreateCollection(ctx, "upload_a", true))

	_, err := store.AddPassages(ctx, "upload_a", []vectorstore.Passage{
		{ID: "private", Text: "session private document content"},
	})
	require.NoError(t, err)

	// The uploaded passage is never visible through another collection.
	results, err := store.SearchInCollection(ctx, "fia_2026", "session private document content", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "private", r.ID)
	}
}

func TestGetCollectionInfo(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "upload_b", true))
	_, err := store.AddPassages(ctx, "upload_b", []vectorstore.Passage{
		{ID: "x", Text: "content"},
		{ID: "y", Text: "more content"},
	})
	require.NoError(t, err)

	info, err := store.GetCollectionInfo(ctx, "upload_b")
	require.NoError(t, err)
	assert.Equal(t, 2, info.PassageCount)
	assert.True(t, info.Uploaded)

	_, err = store.GetCollectionInfo(ctx, "missing")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestAddPassagesValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "c", false))

	_, err := store.AddPassages(ctx, "c", nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyPassages)

	_, err = store.AddPassages(ctx, "missing", []vectorstore.Passage{{ID: "p", Text: "t"}})
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestListCollections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateCollection(ctx, "fia_2025", false))
	require.NoError(t, store.CreateCollection(ctx, "fia_2026", false))

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fia_2025", "fia_2026"}, names)
}
