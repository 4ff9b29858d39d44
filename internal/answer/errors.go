package answer

import (
	"errors"

	"github.com/fyrsmithlabs/paddockd/internal/guardrail"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
)

// The orchestrator's error taxonomy. Callers branch on these with
// errors.Is; transport maps them to status codes.
var (
	// ErrInputRejected is the guardrail rejection, re-exported so callers
	// need not import the guardrail package to classify failures.
	ErrInputRejected = guardrail.ErrInputRejected

	// ErrCollectionNotFound surfaces a stale collection reference, most
	// commonly a session still pointing at a deleted uploaded collection.
	// The base collection is never substituted silently.
	ErrCollectionNotFound = vectorstore.ErrCollectionNotFound

	// ErrRetrievalUnavailable reports a failed retrieval or stats lookup.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationUnavailable reports a failed generation call. A
	// declared failure is returned instead of a fabricated answer.
	ErrGenerationUnavailable = errors.New("generation unavailable")
)
