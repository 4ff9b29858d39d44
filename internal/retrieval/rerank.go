package retrieval

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
)

// lexicalReranker blends vector similarity with query term overlap.
// Semantic similarity stays half the signal; exact term matches boost
// passages that name the thing being asked about.
type lexicalReranker struct{}

func newLexicalReranker() *lexicalReranker {
	return &lexicalReranker{}
}

// rerank reorders results by 50% original score + 50% term overlap.
// The sort is stable, so the store's deterministic ordering carries
// through on equal combined scores.
func (r *lexicalReranker) rerank(query string, results []vectorstore.SearchResult) []vectorstore.SearchResult {
	if len(results) < 2 {
		return results
	}

	queryTokens := rerankTokenize(query)
	if len(queryTokens) == 0 {
		return results
	}

	const originalWeight = 0.5
	const overlapWeight = 0.5

	type scored struct {
		result   vectorstore.SearchResult
		combined float32
	}
	scoredResults := make([]scored, len(results))
	for i, res := range results {
		overlap := termOverlap(queryTokens, rerankTokenize(res.Text))
		scoredResults[i] = scored{
			result:   res,
			combined: originalWeight*res.Score + overlapWeight*overlap,
		}
	}

	sort.SliceStable(scoredResults, func(i, j int) bool {
		return scoredResults[i].combined > scoredResults[j].combined
	})

	out := make([]vectorstore.SearchResult, len(scoredResults))
	for i, s := range scoredResults {
		out[i] = s.result
	}
	return out
}

// rerankTokenize splits text into lowercase terms longer than two runes.
func rerankTokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})
	filtered := tokens[:0]
	for _, token := range tokens {
		if len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

// termOverlap returns the fraction of unique query terms present in the
// document tokens, in [0,1].
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = true
	}

	counted := make(map[string]bool, len(queryTokens))
	matches := 0
	unique := 0
	for _, token := range queryTokens {
		if counted[token] {
			continue
		}
		counted[token] = true
		unique++
		if docSet[token] {
			matches++
		}
	}
	return float32(matches) / float32(unique)
}
