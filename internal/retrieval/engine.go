// Package retrieval executes similarity queries against named collections.
package retrieval

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"go.uber.org/zap"
)

// Engine retrieves ranked passages from the passage store. Read-only: it
// never mutates collections.
type Engine struct {
	store    vectorstore.Store
	reranker *lexicalReranker
	defaultK int
	maxK     int
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine. defaultK is used when a caller
// passes k <= 0; maxK caps any request.
func NewEngine(store vectorstore.Store, defaultK, maxK int, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if defaultK < 1 || maxK < defaultK {
		return nil, fmt.Errorf("invalid k bounds: default %d, max %d", defaultK, maxK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		reranker: newLexicalReranker(),
		defaultK: defaultK,
		maxK:     maxK,
		logger:   logger,
	}, nil
}

// Retrieve returns up to k passages from collection, ordered by descending
// relevance. A missing collection surfaces vectorstore.ErrCollectionNotFound
// rather than an empty result, so callers can tell "found nothing relevant"
// from "searched the wrong place".
func (e *Engine) Retrieve(ctx context.Context, collection, query string, k int) ([]vectorstore.SearchResult, error) {
	if k <= 0 {
		k = e.defaultK
	}
	if k > e.maxK {
		k = e.maxK
	}

	results, err := e.store.SearchInCollection(ctx, collection, query, k)
	if err != nil {
		return nil, err
	}

	reranked := e.reranker.rerank(query, results)

	e.logger.Debug("retrieved passages",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("count", len(reranked)),
	)
	return reranked, nil
}
