package router

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/paddockd/internal/session"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeCompleter plays back a canned response or error.
type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestClassifyParsesLLMDecision(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"intent": "regulation-lookup", "confidence": 0.92, "year": 2026}`,
	}
	r := New(completer, zap.NewNop())

	d := r.Classify(context.Background(), "What is the minimum weight of a car in 2026?", session.Session{ID: "s1"})

	assert.Equal(t, IntentRegulation, d.Intent)
	assert.InDelta(t, 0.92, d.Confidence, 1e-9)
	assert.Equal(t, 2026, d.Year)
}

func TestClassifyHandlesCodeFencedJSON(t *testing.T) {
	completer := &fakeCompleter{
		response: "```json\n{\"intent\": \"stats-lookup\", \"confidence\": 0.8, \"year\": 2024, \"grand_prix\": \"bahrain\"}\n```",
	}
	r := New(completer, zap.NewNop())

	d := r.Classify(context.Background(), "Who won Bahrain in 2024?", session.Session{})

	assert.Equal(t, IntentStats, d.Intent)
	assert.Equal(t, "bahrain", d.GrandPrix)
}

func TestClassifyFallsBackOnCompleterError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model unavailable")}
	r := New(completer, zap.NewNop())

	d := r.Classify(context.Background(), "What is the penalty for a gearbox change?", session.Session{})

	// Heuristic still routes; routing must be total.
	assert.Equal(t, IntentRegulation, d.Intent)
}

func TestClassifyFallsBackOnGarbageOutput(t *testing.T) {
	completer := &fakeCompleter{response: "REGULATIONS, obviously!"}
	r := New(completer, zap.NewNop())

	d := r.Classify(context.Background(), "Who won the race at Monza?", session.Session{})
	assert.Equal(t, IntentStats, d.Intent)
}

func TestClassifyRejectsOutOfEnumIntent(t *testing.T) {
	completer := &fakeCompleter{response: `{"intent": "weather-lookup", "confidence": 0.9}`}
	r := New(completer, zap.NewNop())

	d := r.Classify(context.Background(), "hello there", session.Session{})
	assert.True(t, d.Intent.Valid())
	assert.Equal(t, IntentChat, d.Intent)
}

func TestClassifyIncludesTranscript(t *testing.T) {
	completer := &fakeCompleter{response: `{"intent": "stats-lookup", "confidence": 0.7}`}
	r := New(completer, zap.NewNop())

	sess := session.Session{
		ID: "s1",
		Transcript: []session.Exchange{
			{Question: "Who won the Bahrain Grand Prix in 2024?", Answer: "Max Verstappen won."},
		},
	}
	r.Classify(context.Background(), "What about that race's podium?", sess)

	assert.Contains(t, completer.prompt, "Bahrain Grand Prix")
	assert.Contains(t, completer.prompt, "Max Verstappen")
}

func TestHeuristicClassification(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"What is the minimum weight of a car in 2026?", IntentRegulation},
		{"What's the penalty for changing a gearbox?", IntentRegulation},
		{"Who won the Bahrain Grand Prix?", IntentStats},
		{"Show me the 2024 standings", IntentStats},
		{"Hello, how are you?", IntentChat},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d := classifyHeuristic(tt.query)
			assert.Equal(t, tt.want, d.Intent)
		})
	}
}

func TestHeuristicExtractsYearAndGrandPrix(t *testing.T) {
	d := classifyHeuristic("Who won the Bahrain Grand Prix in 2024?")
	assert.Equal(t, IntentStats, d.Intent)
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, "bahrain", d.GrandPrix)
}

func TestClassifyWithoutCompleter(t *testing.T) {
	r := New(nil, zap.NewNop())
	d := r.Classify(context.Background(), "Is DRS allowed in sector one?", session.Session{})
	assert.Equal(t, IntentRegulation, d.Intent)
}
