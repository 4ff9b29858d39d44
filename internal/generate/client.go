// Package generate calls the answer-synthesis model.
//
// The client fronts any OpenAI-compatible chat endpoint via langchaingo.
// The core treats every failure from this collaborator as one condition:
// generation unavailable. No retries happen here; retry policy belongs to
// the caller, keeping the orchestrator's transitions deterministic.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/paddockd/internal/config"
	"github.com/fyrsmithlabs/paddockd/internal/session"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// ErrUnavailable indicates the generation collaborator failed or timed out.
var ErrUnavailable = errors.New("generation unavailable")

const systemPrompt = `You are an F1 Official Assistant. Answer the question based ONLY on the provided context.
If the context is empty or irrelevant, say you don't know.
Be concise but thorough. Always cite the specific regulation or source when possible.`

// Client synthesizes answers from retrieved context.
type Client struct {
	llm         llms.Model
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
}

// NewClient creates a generation client for an OpenAI-compatible endpoint.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("base URL and model are required")
	}

	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Client{
		llm:         llm,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout.Duration(),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}, nil
}

// Generate produces an answer for question given retrieved context passages
// and the session transcript. Failures surface as ErrUnavailable.
func (c *Client) Generate(ctx context.Context, question string, passages []vectorstore.SearchResult, transcript []session.Exchange) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt+"\n\nContext:\n"+formatContext(passages)),
	}
	for _, ex := range transcript {
		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeHuman, ex.Question),
			llms.TextParts(llms.ChatMessageTypeAI, ex.Answer),
		)
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	resp, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return resp.Choices[0].Content, nil
}

// Complete produces a completion for a bare prompt. Used by the intent
// router, which absorbs failures through its own fallback chain.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// formatContext renders retrieved passages with their provenance, the way
// the synthesis prompt expects them.
func formatContext(passages []vectorstore.SearchResult) string {
	if len(passages) == 0 {
		return "(no context retrieved)"
	}
	parts := make([]string, len(passages))
	for i, p := range passages {
		header := fmt.Sprintf("[Source: %s", p.Source())
		if rule := p.RuleID(); rule != "" {
			header += " | Rule: " + rule
		}
		header += "]"
		parts[i] = header + "\n" + p.Text
	}
	return strings.Join(parts, "\n\n")
}
