package vectorstore

// Passage is a retrievable unit of source text with provenance metadata.
type Passage struct {
	// ID is the unique identifier within its collection.
	ID string

	// Text is the passage content.
	Text string

	// Vector is the precomputed embedding. If nil, the store embeds Text
	// via its Embedder on add.
	Vector []float32

	// Metadata carries provenance: source document, section or rule ID,
	// page, regulation year.
	Metadata map[string]string
}

// SearchResult is a passage returned from similarity search.
type SearchResult struct {
	// ID is the passage identifier.
	ID string

	// Text is the passage content.
	Text string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata is the passage provenance metadata.
	Metadata map[string]string
}

// Source returns the source document name from metadata, or "Unknown".
func (r SearchResult) Source() string {
	if s, ok := r.Metadata[MetaSource]; ok && s != "" {
		return s
	}
	return "Unknown"
}

// RuleID returns the rule/section identifier from metadata, if any.
func (r SearchResult) RuleID() string {
	return r.Metadata[MetaRuleID]
}

// Well-known metadata keys.
const (
	MetaSource = "source"
	MetaRuleID = "rule_id"
	MetaPage   = "page"
	MetaYear   = "year"

	// metaSeq records insertion order for deterministic tie-breaking.
	metaSeq = "seq"
)
