// Package router classifies queries into a closed set of intents.
//
// Routing is total over all inputs: the primary LLM classifier falls back
// to a deterministic keyword heuristic on any failure, and the heuristic
// itself falls back to general chat. A query never fails to route.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/paddockd/internal/session"
	"go.uber.org/zap"
)

// Intent is one of the closed set of query categories. Adding an intent
// means adding an enum value here and a dispatch arm in the orchestrator;
// routing stays exhaustively checkable.
type Intent string

const (
	// IntentRegulation routes to regulation passage retrieval.
	IntentRegulation Intent = "regulation-lookup"

	// IntentStats routes to the race-results source.
	IntentStats Intent = "stats-lookup"

	// IntentChat answers from conversation context alone.
	IntentChat Intent = "general-chat"
)

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	switch i {
	case IntentRegulation, IntentStats, IntentChat:
		return true
	}
	return false
}

// Decision is the routing outcome for one query.
type Decision struct {
	Intent Intent `json:"intent"`

	// Confidence is the classifier's self-reported confidence in [0,1].
	// Heuristic decisions report 0.5; the chat fallback reports 0.
	Confidence float64 `json:"confidence"`

	// Year is the extracted regulation/season year, 0 if absent.
	Year int `json:"year,omitempty"`

	// GrandPrix is the extracted race name, empty if absent.
	GrandPrix string `json:"grand_prix,omitempty"`
}

// Completer produces a completion for a prompt. Implemented by the
// generation client; failures here are absorbed by the fallback chain.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Router classifies queries.
type Router struct {
	completer Completer
	logger    *zap.Logger
}

// New creates a router. completer may be nil, in which case only the
// keyword heuristic runs.
func New(completer Completer, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{completer: completer, logger: logger}
}

const classifyPrompt = `You are an F1 assistant router. Classify the user's question into exactly one category:

- "regulation-lookup": rules, penalties, technical specs, car legality, sporting or financial procedures.
- "stats-lookup": race outcomes, winners, podiums, driver or constructor standings for a specific race.
- "general-chat": greetings, history, or anything not covered above.

Respond with ONLY a JSON object, no prose:
{"intent": "<category>", "confidence": <0..1>, "year": <season year or 0>, "grand_prix": "<race name or empty>"}

%sQuestion: %s`

// Classify routes a query. The session transcript is included so follow-up
// questions ("what about that race?") resolve against prior answers.
// Classify never fails; on classifier error it degrades to the heuristic.
func (r *Router) Classify(ctx context.Context, query string, sess session.Session) Decision {
	if r.completer != nil {
		if d, err := r.classifyLLM(ctx, query, sess); err == nil {
			return d
		} else {
			r.logger.Warn("llm classification failed, using heuristic",
				zap.String("session", sess.ID),
				zap.Error(err),
			)
		}
	}
	return classifyHeuristic(query)
}

// classifyLLM asks the completion model for a structured decision.
func (r *Router) classifyLLM(ctx context.Context, query string, sess session.Session) (Decision, error) {
	prompt := fmt.Sprintf(classifyPrompt, transcriptContext(sess), query)

	raw, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return Decision{}, fmt.Errorf("classifier call: %w", err)
	}

	var d Decision
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &d); err != nil {
		return Decision{}, fmt.Errorf("unparseable classifier output %q: %w", raw, err)
	}
	if !d.Intent.Valid() {
		return Decision{}, fmt.Errorf("classifier returned unknown intent %q", d.Intent)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		d.Confidence = 0.5
	}
	return d, nil
}

// transcriptContext renders the last few exchanges for pronoun resolution.
func transcriptContext(sess session.Session) string {
	const window = 3
	transcript := sess.Transcript
	if len(transcript) > window {
		transcript = transcript[len(transcript)-window:]
	}
	if len(transcript) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, ex := range transcript {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", ex.Question, ex.Answer)
	}
	b.WriteString("\n")
	return b.String()
}

// stripCodeFence removes a markdown code fence wrapper, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

var (
	statsKeywords = []string{
		"won", "winner", "winners", "podium", "results", "standings",
		"finished", "fastest lap", "pole position", "who came",
	}
	regulationKeywords = []string{
		"regulation", "rule", "penalty", "penalties", "legal", "allowed",
		"weight", "mass", "fuel", "engine", "power unit", "technical",
		"sporting", "financial", "budget cap", "minimum", "maximum",
		"specification", "dimensions", "drs", "parc ferme",
	}

	yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)

	grandPrixNames = []string{
		"bahrain", "saudi arabian", "australian", "japanese", "chinese",
		"miami", "emilia romagna", "monaco", "canadian", "spanish",
		"austrian", "british", "hungarian", "belgian", "dutch", "italian",
		"azerbaijan", "singapore", "united states", "mexican", "mexico city",
		"brazilian", "sao paulo", "las vegas", "qatar", "abu dhabi",
	}
)

// classifyHeuristic is the deterministic fallback classifier.
func classifyHeuristic(query string) Decision {
	lower := strings.ToLower(query)

	d := Decision{Intent: IntentChat}

	for _, kw := range statsKeywords {
		if strings.Contains(lower, kw) {
			d.Intent = IntentStats
			d.Confidence = 0.5
			break
		}
	}
	if d.Intent == IntentChat {
		for _, kw := range regulationKeywords {
			if strings.Contains(lower, kw) {
				d.Intent = IntentRegulation
				d.Confidence = 0.5
				break
			}
		}
	}

	if m := yearPattern.FindString(lower); m != "" {
		fmt.Sscanf(m, "%d", &d.Year)
	}
	for _, gp := range grandPrixNames {
		if strings.Contains(lower, gp) {
			d.GrandPrix = gp
			break
		}
	}

	return d
}
