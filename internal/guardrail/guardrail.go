// Package guardrail gates queries on the way in and answers on the way out.
//
// Both checks are cheap, synchronous, total functions: substring patterns
// and stopword-filtered lexical overlap rather than a heavyweight entailment
// model, so a failed check is always diagnosable.
package guardrail

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
)

// ErrInputRejected is returned when the input check rejects a query.
// Rejection is terminal for the query: no retrieval or generation happens.
var ErrInputRejected = errors.New("input rejected")

// DefaultGroundingThreshold flags answers whose lexical overlap with the
// retrieved context falls below this fraction.
const DefaultGroundingThreshold = 0.3

// injectionPatterns are lowercased substrings that mark prompt injection.
var injectionPatterns = []string{
	"ignore previous instructions",
	"ignore all instructions",
	"disregard your instructions",
	"forget your instructions",
	"you are now",
	"pretend you are",
	"act as if",
	"system prompt",
	"reveal your prompt",
}

// topicKeywords is the on-topic allowlist covering the two supported
// domains: regulations and race results.
var topicKeywords = []string{
	"formula 1", "f1", "fia", "regulations", "rules",
	"race", "grand prix", "gp", "penalty", "technical",
	"sporting", "financial", "driver", "team", "constructor",
	"qualifying", "sprint", "pit stop", "safety car", "drs",
	"car", "engine", "power unit", "fuel", "tyre", "tire",
	"weight", "points", "podium", "championship", "season",
}

// Engine runs the input and output checks.
type Engine struct {
	threshold    float64
	enforceTopic bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithGroundingThreshold overrides the grounding flag threshold.
func WithGroundingThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithTopicEnforcement enables the on-topic allowlist on input.
func WithTopicEnforcement(on bool) Option {
	return func(e *Engine) { e.enforceTopic = on }
}

// NewEngine creates a guardrail engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{threshold: DefaultGroundingThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateInput checks a query before any routing or retrieval happens.
// Returns nil to accept, or an error wrapping ErrInputRejected with a
// human-readable reason.
func (e *Engine) ValidateInput(query string) error {
	lower := strings.ToLower(query)

	for _, pattern := range injectionPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: potential prompt injection detected: %q", ErrInputRejected, pattern)
		}
	}

	if e.enforceTopic {
		onTopic := false
		for _, keyword := range topicKeywords {
			if strings.Contains(lower, keyword) {
				onTopic = true
				break
			}
		}
		if !onTopic {
			return fmt.Errorf("%w: query does not appear to be related to F1; ask about regulations, rules, or race results", ErrInputRejected)
		}
	}

	return nil
}

// Verdict is the result of the output check.
type Verdict struct {
	// Grounded reports whether the answer's lexical overlap with the
	// retrieved context met the threshold.
	Grounded bool `json:"grounded"`

	// Score is the overlap fraction in [0,1].
	Score float64 `json:"score"`

	// CitationsValid reports whether every cited passage was actually
	// retrieved for this query.
	CitationsValid bool `json:"citations_valid"`

	// Flagged marks the answer as low-confidence. A flagged answer is
	// still returned, annotated, never silently discarded.
	Flagged bool `json:"flagged"`

	// Reason explains the flag, empty when not flagged.
	Reason string `json:"reason,omitempty"`
}

// ValidateOutput checks a generated answer against the passages that were
// retrieved for its query.
//
// Citation integrity: every entry of cited must be a member of retrieved;
// a fabricated citation flags the answer. Groundedness: the fraction of
// the answer's content terms present in the retrieved text must meet the
// threshold. With no retrieved passages (general chat) the groundedness
// check is skipped.
func (e *Engine) ValidateOutput(answer string, cited, retrieved []vectorstore.SearchResult) Verdict {
	v := Verdict{Grounded: true, Score: 1.0, CitationsValid: true}

	retrievedIDs := make(map[string]bool, len(retrieved))
	for _, r := range retrieved {
		retrievedIDs[r.ID] = true
	}
	for _, c := range cited {
		if !retrievedIDs[c.ID] {
			v.CitationsValid = false
			v.Flagged = true
			v.Reason = fmt.Sprintf("citation %q does not reference a retrieved passage", c.ID)
			break
		}
	}

	if len(retrieved) > 0 {
		v.Score = groundingScore(answer, retrieved)
		v.Grounded = v.Score >= e.threshold
		if !v.Grounded && !v.Flagged {
			v.Flagged = true
			v.Reason = fmt.Sprintf("answer overlap %.2f below threshold %.2f", v.Score, e.threshold)
		}
	}

	return v
}

// groundingScore computes the fraction of answer content terms that appear
// in the retrieved passage text.
func groundingScore(answer string, retrieved []vectorstore.SearchResult) float64 {
	answerTerms := tokenize(answer)
	if len(answerTerms) == 0 {
		// Nothing to check against.
		return 1.0
	}

	sourceTerms := make(map[string]bool)
	for _, r := range retrieved {
		for _, term := range tokenize(r.Text) {
			sourceTerms[term] = true
		}
	}

	seen := make(map[string]bool, len(answerTerms))
	unique := 0
	matched := 0
	for _, term := range answerTerms {
		if seen[term] {
			continue
		}
		seen[term] = true
		unique++
		if sourceTerms[term] {
			matched++
		}
	}

	return float64(matched) / float64(unique)
}

// tokenize splits text into lowercase content terms, filtering stopwords
// and very short tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
	"not": true, "must": true, "than": true, "then": true, "there": true,
}

func isStopword(token string) bool {
	return stopwords[token]
}
