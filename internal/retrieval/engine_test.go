package retrieval

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore records search calls and plays back canned results.
type fakeStore struct {
	results map[string][]vectorstore.SearchResult
	lastK   int
	calls   int
}

func (f *fakeStore) SearchInCollection(ctx context.Context, collection, query string, k int) ([]vectorstore.SearchResult, error) {
	f.calls++
	f.lastK = k
	results, ok := f.results[collection]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string, uploaded bool) error {
	return nil
}
func (f *fakeStore) AddPassages(ctx context.Context, collection string, passages []vectorstore.Passage) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, ok := f.results[name]
	return ok, nil
}
func (f *fakeStore) DeleteCollection(ctx context.Context, name string) error { return nil }
func (f *fakeStore) ListCollections(ctx context.Context) ([]string, error)   { return nil, nil }
func (f *fakeStore) GetCollectionInfo(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	return nil, vectorstore.ErrCollectionNotFound
}
func (f *fakeStore) Close() error { return nil }

func TestRetrieveUsesDefaultK(t *testing.T) {
	store := &fakeStore{results: map[string][]vectorstore.SearchResult{"c": {}}}
	engine, err := NewEngine(store, 5, 10, zap.NewNop())
	require.NoError(t, err)

	_, err = engine.Retrieve(context.Background(), "c", "query", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, store.lastK)
}

func TestRetrieveClampsKToMax(t *testing.T) {
	store := &fakeStore{results: map[string][]vectorstore.SearchResult{"c": {}}}
	engine, err := NewEngine(store, 5, 10, zap.NewNop())
	require.NoError(t, err)

	_, err = engine.Retrieve(context.Background(), "c", "query", 100)
	require.NoError(t, err)
	assert.Equal(t, 10, store.lastK)
}

func TestRetrieveMissingCollection(t *testing.T) {
	store := &fakeStore{results: map[string][]vectorstore.SearchResult{}}
	engine, err := NewEngine(store, 5, 10, zap.NewNop())
	require.NoError(t, err)

	_, err = engine.Retrieve(context.Background(), "stale", "query", 5)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestRetrieveReranksByTermOverlap(t *testing.T) {
	store := &fakeStore{results: map[string][]vectorstore.SearchResult{
		"c": {
			{ID: "p1", Text: "weather conditions at the circuit", Score: 0.80},
			{ID: "p2", Text: "gearbox change penalty of five grid places", Score: 0.78},
		},
	}}
	engine, err := NewEngine(store, 5, 10, zap.NewNop())
	require.NoError(t, err)

	// Near-equal vector scores; term overlap should promote p2.
	results, err := engine.Retrieve(context.Background(), "c", "gearbox change penalty", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p2", results[0].ID)
}

func TestNewEngineValidation(t *testing.T) {
	store := &fakeStore{}

	_, err := NewEngine(nil, 5, 10, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(store, 0, 10, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(store, 5, 3, zap.NewNop())
	assert.Error(t, err)
}

func TestTermOverlap(t *testing.T) {
	tests := []struct {
		name  string
		query string
		doc   string
		want  float32
	}{
		{"full overlap", "gearbox penalty", "gearbox penalty applies", 1.0},
		{"no overlap", "gearbox penalty", "weather forecast sunny", 0.0},
		{"half overlap", "gearbox penalty", "the gearbox was replaced", 0.5},
		{"duplicate query terms counted once", "penalty penalty gearbox", "penalty box", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := termOverlap(rerankTokenize(tt.query), rerankTokenize(tt.doc))
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}
