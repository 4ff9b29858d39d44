// Package vectorstore implements the passage store over named vector collections.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for passage store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	// Callers rely on this to distinguish "searched the wrong place" from
	// "found nothing relevant".
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrEmptyPassages indicates empty or nil passages.
	ErrEmptyPassages = errors.New("empty or nil passages")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// collectionNamePattern matches valid collection names.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Pattern: ^[a-z0-9_]{1,64}$
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PassageCount is the number of passages in the collection.
	PassageCount int `json:"passage_count"`

	// Uploaded reports whether the collection came from a session upload
	// rather than the base corpus.
	Uploaded bool `json:"uploaded"`
}

// Embedder generates vector embeddings from text.
//
// Embeddings are treated as an opaque similarity oracle: the store never
// inspects vector contents beyond handing them to the index.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for passage storage operations.
//
// Collections are append-only namespaces: upload and reset only ever create
// or delete whole collections, never mutate one in place, which keeps
// retrieval reads race-free against concurrent uploads.
type Store interface {
	// CreateCollection creates a new, empty collection.
	// Returns ErrCollectionExists if the name is already taken.
	CreateCollection(ctx context.Context, name string, uploaded bool) error

	// AddPassages adds passages to a collection, embedding any passage that
	// does not carry a precomputed vector. Returns the passage IDs.
	AddPassages(ctx context.Context, collection string, passages []Passage) ([]string, error)

	// SearchInCollection performs similarity search in a specific collection.
	//
	// Results are ordered by descending similarity score; ties break by the
	// order passages entered the collection. Returns ErrCollectionNotFound
	// if the collection does not exist.
	SearchInCollection(ctx context.Context, collection string, query string, k int) ([]SearchResult, error)

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// DeleteCollection deletes a collection and all its passages.
	// Returns ErrCollectionNotFound if the collection does not exist.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns metadata about a collection.
	// Returns ErrCollectionNotFound if the collection does not exist.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// Close closes the store and releases resources.
	Close() error
}
