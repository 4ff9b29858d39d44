package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("paddockd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Empty means in-memory only.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external database service, fast cosine
// similarity search with optional gob persistence.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	mu sync.Mutex
	// uploaded tracks which collections came from session uploads.
	uploaded map[string]bool
	// seq tracks the next insertion sequence number per collection,
	// used to break similarity ties in original document order.
	seq map[string]int
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
		uploaded: make(map[string]bool),
		seq:      make(map[string]int),
	}

	logger.Info("passage store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// embeddingFunc adapts the Embedder interface to chromem's query embedding hook.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// CreateCollection creates a new, empty collection.
func (s *ChromemStore) CreateCollection(ctx context.Context, name string, uploaded bool) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CreateCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Bool("uploaded", uploaded))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(name, s.embeddingFunc()) != nil {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	if _, err := s.db.CreateCollection(name, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.uploaded[name] = uploaded
	s.seq[name] = 0

	s.logger.Debug("created collection",
		zap.String("collection", name),
		zap.Bool("uploaded", uploaded),
	)
	return nil
}

// AddPassages adds passages to an existing collection.
func (s *ChromemStore) AddPassages(ctx context.Context, collection string, passages []Passage) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddPassages")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("passage_count", len(passages)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, ErrEmptyPassages
	}

	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// Embed passages that did not arrive with a precomputed vector, in one batch.
	var missingIdx []int
	var missingTexts []string
	for i, p := range passages {
		if len(p.Vector) == 0 {
			missingIdx = append(missingIdx, i)
			missingTexts = append(missingTexts, p.Text)
		}
	}
	vectors := make([][]float32, len(passages))
	for i, p := range passages {
		vectors[i] = p.Vector
	}
	if len(missingTexts) > 0 {
		embedded, err := s.embedder.EmbedDocuments(ctx, missingTexts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		for j, i := range missingIdx {
			vectors[i] = embedded[j]
		}
	}

	s.mu.Lock()
	base := s.seq[collection]
	s.seq[collection] = base + len(passages)
	s.mu.Unlock()

	docs := make([]chromem.Document, len(passages))
	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
		if ids[i] == "" {
			ids[i] = fmt.Sprintf("%s_%d", collection, base+i)
		}
		meta := make(map[string]string, len(p.Metadata)+1)
		for k, v := range p.Metadata {
			meta[k] = v
		}
		meta[metaSeq] = strconv.Itoa(base + i)
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   p.Text,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding passages: %w", err)
	}

	span.SetAttributes(attribute.Int("passages_added", len(ids)))
	s.logger.Debug("added passages",
		zap.String("collection", collection),
		zap.Int("count", len(passages)),
	)
	return ids, nil
}

// SearchInCollection performs similarity search in a specific collection.
func (s *ChromemStore) SearchInCollection(ctx context.Context, collection string, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchInCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem rejects nResults > document count.
	n := k
	if count := col.Count(); n > count {
		n = count
	}
	if n == 0 {
		return []SearchResult{}, nil
	}

	raw, err := col.Query(ctx, query, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results := make([]SearchResult, len(raw))
	for i, r := range raw {
		results[i] = SearchResult{
			ID:       r.ID,
			Text:     r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	// Descending score; equal scores break by insertion order for determinism.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return seqOf(results[i]) < seqOf(results[j])
	})

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

// seqOf extracts the insertion sequence number from result metadata.
func seqOf(r SearchResult) int {
	n, err := strconv.Atoi(r.Metadata[metaSeq])
	if err != nil {
		return 0
	}
	return n
}

// CollectionExists checks if a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	return s.db.GetCollection(name, s.embeddingFunc()) != nil, nil
}

// DeleteCollection deletes a collection and all its passages.
func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(name, s.embeddingFunc()) == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err := s.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	delete(s.uploaded, name)
	delete(s.seq, name)

	s.logger.Debug("deleted collection", zap.String("collection", name))
	return nil
}

// ListCollections returns all collection names.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	cols := s.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetCollectionInfo returns metadata about a collection.
func (s *ChromemStore) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	col := s.db.GetCollection(name, s.embeddingFunc())
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	s.mu.Lock()
	uploaded := s.uploaded[name]
	s.mu.Unlock()
	return &CollectionInfo{
		Name:         name,
		PassageCount: col.Count(),
		Uploaded:     uploaded,
	}, nil
}

// Close closes the store. The embedded DB holds no connections to release.
func (s *ChromemStore) Close() error {
	return nil
}
