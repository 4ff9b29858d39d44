// Package ingest creates collections from pre-chunked upload payloads.
//
// Document parsing and chunking happen upstream; this service only accepts
// (text, vector, metadata) triples, so the core never touches raw files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/paddockd/internal/sanitize"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyPayload indicates an upload with no passages.
	ErrEmptyPayload = errors.New("upload payload is empty")

	// ErrPayloadTooLarge indicates an upload exceeding the passage cap.
	ErrPayloadTooLarge = errors.New("upload payload too large")

	// ErrNotUploaded guards against discarding a base collection.
	ErrNotUploaded = errors.New("collection is not an uploaded collection")
)

// MaxPassagesPerUpload caps a single upload payload.
const MaxPassagesPerUpload = 5000

// Service turns upload payloads into uploaded collections.
type Service struct {
	store  vectorstore.Store
	logger *zap.Logger
}

// NewService creates an ingest service.
func NewService(store vectorstore.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}, nil
}

// CreateUploadCollection creates a fresh uploaded collection holding the
// payload's passages and returns its identifier. The document name is
// sanitized into the identifier; a random suffix keeps repeated uploads
// of the same document distinct. The collection is never an existing one:
// uploads always create, so concurrent retrieval against other
// collections is race-free.
func (s *Service) CreateUploadCollection(ctx context.Context, docName string, passages []vectorstore.Passage) (string, error) {
	if len(passages) == 0 {
		return "", ErrEmptyPayload
	}
	if len(passages) > MaxPassagesPerUpload {
		return "", fmt.Errorf("%w: %d passages exceeds cap of %d", ErrPayloadTooLarge, len(passages), MaxPassagesPerUpload)
	}

	name := uploadCollectionName(docName)

	if err := s.store.CreateCollection(ctx, name, true); err != nil {
		return "", fmt.Errorf("creating upload collection: %w", err)
	}

	if _, err := s.store.AddPassages(ctx, name, passages); err != nil {
		// Don't leave a half-built collection behind.
		if delErr := s.store.DeleteCollection(ctx, name); delErr != nil {
			s.logger.Warn("failed to clean up partial upload collection",
				zap.String("collection", name),
				zap.Error(delErr),
			)
		}
		return "", fmt.Errorf("populating upload collection: %w", err)
	}

	s.logger.Info("created upload collection",
		zap.String("collection", name),
		zap.Int("passages", len(passages)),
	)
	return name, nil
}

// Discard deletes an uploaded collection that no session references
// anymore (after reset or after an overwriting upload). Base collections
// are never deleted through this path. Discarding a collection that is
// already gone is not an error.
func (s *Service) Discard(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		return nil
	}

	info, err := s.store.GetCollectionInfo(ctx, collectionID)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspecting collection %s: %w", collectionID, err)
	}
	if !info.Uploaded {
		return fmt.Errorf("%w: %s", ErrNotUploaded, collectionID)
	}

	if err := s.store.DeleteCollection(ctx, collectionID); err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return fmt.Errorf("deleting collection %s: %w", collectionID, err)
	}

	s.logger.Info("discarded upload collection", zap.String("collection", collectionID))
	return nil
}

// uploadCollectionName builds a store-safe collection identifier from a
// document name. The sanitized name is truncated so the whole identifier
// stays within the store's length limit.
func uploadCollectionName(docName string) string {
	base := sanitize.Identifier(docName)
	const maxBase = 32
	if len(base) > maxBase {
		base = strings.Trim(base[:maxBase], "_")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("upload_%s_%s", base, suffix)
}
