// Package answer orchestrates the query pipeline: input guardrail, intent
// routing, retrieval, synthesis, and the output guardrail, in that order.
//
// The pipeline is strictly sequential. A guardrail rejection or a
// collaborator failure terminates it; only a fully checked answer reaches
// the transcript.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/paddockd/internal/guardrail"
	"github.com/fyrsmithlabs/paddockd/internal/router"
	"github.com/fyrsmithlabs/paddockd/internal/session"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var answerTracer = otel.Tracer("paddockd.answer")

// Retriever searches a single collection. Implemented by retrieval.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, k int) ([]vectorstore.SearchResult, error)
}

// Generator synthesizes an answer from a question, retrieved passages,
// and the session transcript. Implemented by generate.Client.
type Generator interface {
	Generate(ctx context.Context, question string, passages []vectorstore.SearchResult, transcript []session.Exchange) (string, error)
}

// Classifier routes a query to an intent. Implemented by router.Router.
type Classifier interface {
	Classify(ctx context.Context, query string, sess session.Session) router.Decision
}

// StatsSource answers race-result lookups. Implemented by stats.Client.
type StatsSource interface {
	Lookup(ctx context.Context, year int, grandPrix string) (string, error)
}

// Uploader creates and discards uploaded collections. Implemented by
// ingest.Service.
type Uploader interface {
	CreateUploadCollection(ctx context.Context, docName string, passages []vectorstore.Passage) (string, error)
	Discard(ctx context.Context, collectionID string) error
}

// BaseCollectionName returns the name of the base collection holding the
// given season's regulations.
func BaseCollectionName(year int) string {
	return fmt.Sprintf("fia_%d", year)
}

// Config holds the orchestrator's tunables.
type Config struct {
	// BaseYear is the regulation year assumed when a query names none.
	BaseYear int

	// K is the number of passages retrieved per query.
	K int
}

// Answer is the full result of one query.
type Answer struct {
	// Text is the synthesized answer.
	Text string `json:"text"`

	// Intent is the routing decision's intent.
	Intent router.Intent `json:"intent"`

	// Collection is the collection the answer retrieved from, empty when
	// the intent skipped retrieval.
	Collection string `json:"collection,omitempty"`

	// Citations are the retrieved passages the answer draws on, in
	// retrieval order. Always a subset of what was retrieved.
	Citations []vectorstore.SearchResult `json:"citations,omitempty"`

	// Verdict is the output guardrail's assessment. A flagged answer is
	// degraded, not withheld.
	Verdict guardrail.Verdict `json:"verdict"`

	// State is the pipeline's final state, StateReturned on success.
	State State `json:"-"`
}

// Service runs the answer pipeline over a set of collaborators.
type Service struct {
	registry  *session.Registry
	guard     *guardrail.Engine
	classify  Classifier
	retriever Retriever
	generator Generator
	stats     StatsSource
	uploader  Uploader
	cfg       Config
	logger    *zap.Logger
}

// NewService wires the pipeline. Registry, guardrail, classifier,
// retriever, and generator are required; stats and uploader are optional
// collaborators whose absence disables the corresponding operations.
func NewService(
	registry *session.Registry,
	guard *guardrail.Engine,
	classify Classifier,
	retriever Retriever,
	generator Generator,
	stats StatsSource,
	uploader Uploader,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("guardrail engine is required")
	}
	if classify == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.BaseYear <= 0 {
		return nil, fmt.Errorf("base year must be positive")
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:  registry,
		guard:     guard,
		classify:  classify,
		retriever: retriever,
		generator: generator,
		stats:     stats,
		uploader:  uploader,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Submit runs one query through the full pipeline and returns the checked
// answer. The session transcript is appended exactly once, after a
// successful run; rejections and failures leave it untouched.
func (s *Service) Submit(ctx context.Context, sessionID, query string) (*Answer, error) {
	ctx, span := answerTracer.Start(ctx, "Service.Submit")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInputRejected)
	}

	sess := s.registry.Resolve(sessionID)
	log := s.logger.With(zap.String("session_id", sess.ID))

	if err := s.guard.ValidateInput(query); err != nil {
		span.SetAttributes(attribute.String("state", StateRejected.String()))
		log.Info("query rejected", zap.String("state", StateRejected.String()), zap.Error(err))
		return nil, err
	}

	dec := s.classify.Classify(ctx, query, sess)
	span.SetAttributes(attribute.String("intent", string(dec.Intent)))
	log.Debug("query routed",
		zap.String("state", StateRouted.String()),
		zap.String("intent", string(dec.Intent)),
		zap.Int("year", dec.Year),
		zap.String("grand_prix", dec.GrandPrix),
	)

	ans, err := s.dispatch(ctx, sess, query, dec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("query failed",
			zap.String("state", StateFailed.String()),
			zap.String("intent", string(dec.Intent)),
			zap.Error(err),
		)
		return nil, err
	}

	// The append is the pipeline's only session mutation and happens
	// after every blocking call has succeeded.
	s.registry.AppendExchange(sess.ID, query, ans.Text)
	ans.State = StateReturned
	span.SetAttributes(
		attribute.String("state", StateReturned.String()),
		attribute.Bool("flagged", ans.Verdict.Flagged),
	)

	log.Info("query answered",
		zap.String("state", StateReturned.String()),
		zap.String("intent", string(ans.Intent)),
		zap.Bool("flagged", ans.Verdict.Flagged),
		zap.Float64("grounding_score", ans.Verdict.Score),
	)
	return ans, nil
}

func (s *Service) dispatch(ctx context.Context, sess session.Session, query string, dec router.Decision) (*Answer, error) {
	switch dec.Intent {
	case router.IntentStats:
		// A stats lookup without a race to look up degrades to chat
		// rather than failing the query.
		if s.stats != nil && dec.GrandPrix != "" {
			return s.answerStats(ctx, sess, query, dec)
		}
		return s.answerChat(ctx, sess, query)
	case router.IntentChat:
		return s.answerChat(ctx, sess, query)
	default:
		return s.answerRegulation(ctx, sess, query, dec)
	}
}

// answerRegulation retrieves from the session's active collection and
// synthesizes a grounded answer.
func (s *Service) answerRegulation(ctx context.Context, sess session.Session, query string, dec router.Decision) (*Answer, error) {
	collection := s.collectionFor(sess, dec)

	retrieved, err := s.retriever.Retrieve(ctx, collection, query, s.cfg.K)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, fmt.Errorf("collection %s: %w", collection, ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	text, err := s.generator.Generate(ctx, query, retrieved, sess.Transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	citations := citedPassages(text, retrieved)
	verdict := s.guard.ValidateOutput(text, citations, retrieved)

	return &Answer{
		Text:       text,
		Intent:     router.IntentRegulation,
		Collection: collection,
		Citations:  citations,
		Verdict:    verdict,
		State:      StateOutputChecked,
	}, nil
}

// answerStats consults the stats source and synthesizes over its result
// as the retrieved context.
func (s *Service) answerStats(ctx context.Context, sess session.Session, query string, dec router.Decision) (*Answer, error) {
	year := dec.Year
	if year == 0 {
		year = s.cfg.BaseYear
	}

	results, err := s.stats.Lookup(ctx, year, dec.GrandPrix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	passages := []vectorstore.SearchResult{{
		ID:    fmt.Sprintf("stats_%d_%s", year, strings.ToLower(strings.ReplaceAll(dec.GrandPrix, " ", "_"))),
		Text:  results,
		Score: 1.0,
		Metadata: map[string]string{
			vectorstore.MetaSource: "race results",
		},
	}}

	text, err := s.generator.Generate(ctx, query, passages, sess.Transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	verdict := s.guard.ValidateOutput(text, passages, passages)

	return &Answer{
		Text:      text,
		Intent:    router.IntentStats,
		Citations: passages,
		Verdict:   verdict,
		State:     StateOutputChecked,
	}, nil
}

// answerChat skips retrieval and answers from conversation context alone.
// With nothing retrieved the groundedness check is vacuous.
func (s *Service) answerChat(ctx context.Context, sess session.Session, query string) (*Answer, error) {
	text, err := s.generator.Generate(ctx, query, nil, sess.Transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	verdict := s.guard.ValidateOutput(text, nil, nil)

	return &Answer{
		Text:    text,
		Intent:  router.IntentChat,
		Verdict: verdict,
		State:   StateOutputChecked,
	}, nil
}

// Upload ingests a payload into a fresh uploaded collection and binds it
// to the session, replacing and discarding any previously bound one.
func (s *Service) Upload(ctx context.Context, sessionID, docName string, passages []vectorstore.Passage) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("uploads are not enabled")
	}

	sess := s.registry.Resolve(sessionID)

	collectionID, err := s.uploader.CreateUploadCollection(ctx, docName, passages)
	if err != nil {
		return "", err
	}

	previous := s.registry.BindUpload(sess.ID, collectionID)
	if previous != "" {
		if err := s.uploader.Discard(ctx, previous); err != nil {
			s.logger.Warn("failed to discard replaced upload collection",
				zap.String("session_id", sess.ID),
				zap.String("collection", previous),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("upload bound to session",
		zap.String("session_id", sess.ID),
		zap.String("collection", collectionID),
	)
	return collectionID, nil
}

// Reset clears the session's transcript, reverts it to the base
// collection, and discards its uploaded collection if one was bound.
// Resetting an unknown or already-reset session is a no-op.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	released := s.registry.Reset(sessionID)
	if released == "" || s.uploader == nil {
		return nil
	}

	if err := s.uploader.Discard(ctx, released); err != nil {
		s.logger.Warn("failed to discard released upload collection",
			zap.String("session_id", sessionID),
			zap.String("collection", released),
			zap.Error(err),
		)
	}
	return nil
}

// collectionFor picks the collection a regulation lookup reads from. A
// bound uploaded collection shadows everything; otherwise the decision's
// year (or the default) names the base collection.
func (s *Service) collectionFor(sess session.Session, dec router.Decision) string {
	if sess.UploadedCollection != "" {
		return sess.UploadedCollection
	}
	year := dec.Year
	if year == 0 {
		year = s.cfg.BaseYear
	}
	return BaseCollectionName(year)
}

// citedPassages returns the retrieved passages the answer names by rule
// identifier, in retrieval order. An answer naming none is treated as
// drawing on the whole retrieved context.
func citedPassages(answer string, retrieved []vectorstore.SearchResult) []vectorstore.SearchResult {
	lower := strings.ToLower(answer)
	var cited []vectorstore.SearchResult
	for _, r := range retrieved {
		rule := r.RuleID()
		if rule != "" && strings.Contains(lower, strings.ToLower(rule)) {
			cited = append(cited, r)
		}
	}
	if len(cited) == 0 {
		return retrieved
	}
	return cited
}
