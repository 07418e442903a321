package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"batiment-rag/internal/config"
	"batiment-rag/internal/domain"
	"batiment-rag/internal/logging"
	"batiment-rag/internal/metrics"
)

// Retriever is the search step of the pipeline.
type Retriever interface {
	Search(ctx context.Context, query string, maxResults int) []domain.Document
}

// ContextAssembler is the formatting step of the pipeline.
type ContextAssembler interface {
	Assemble(docs []domain.Document) string
}

// AnswerGenerator is the generation step of the pipeline.
type AnswerGenerator interface {
	Generate(ctx context.Context, query, promptContext string) domain.Answer
}

// Config configures the orchestrator.
type Config struct {
	MaxResults              int
	NoEvidenceMessage       string
	GenerationFailedMessage string
}

// RAGServiceImpl sequences retrieval, context assembly and generation for
// one query at a time. It keeps no per-query state and may be shared by
// concurrent callers.
type RAGServiceImpl struct {
	retriever Retriever
	assembler ContextAssembler
	generator AnswerGenerator
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewRAGService(retriever Retriever, assembler ContextAssembler, generator AnswerGenerator, cfg Config, logger *zap.Logger, m *metrics.Metrics) *RAGServiceImpl {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = config.DefaultMaxResults
	}
	if cfg.NoEvidenceMessage == "" {
		cfg.NoEvidenceMessage = config.DefaultNoEvidenceMessage
	}
	if cfg.GenerationFailedMessage == "" {
		cfg.GenerationFailedMessage = config.DefaultGenerationFailedMessage
	}
	return &RAGServiceImpl{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("rag"),
		metrics:   m,
	}
}

// AnswerQuery returns the user-facing answer for query. It never fails.
func (s *RAGServiceImpl) AnswerQuery(ctx context.Context, query string) string {
	return s.Ask(ctx, query).Text
}

// Ask runs one query through the pipeline and reports how it ended.
// Sources are only set when the model produced an answer.
func (s *RAGServiceImpl) Ask(ctx context.Context, query string) domain.Answer {
	start := time.Now()
	query = strings.TrimSpace(query)
	log := s.logger.With(zap.String("query", query))

	ans := s.run(ctx, log, query)

	s.metrics.ObserveQuery(string(ans.Outcome))
	log.Info("query finished",
		zap.String("outcome", string(ans.Outcome)),
		zap.Int("sources", len(ans.Sources)),
		zap.Duration("elapsed", time.Since(start)))
	return ans
}

func (s *RAGServiceImpl) run(ctx context.Context, log *zap.Logger, query string) domain.Answer {
	log.Debug("searching relevant documents")
	docs := s.retriever.Search(ctx, query, s.cfg.MaxResults)
	if ctx.Err() != nil {
		return s.cancelled()
	}
	if len(docs) == 0 {
		log.Info("no relevant document found")
		return domain.Answer{Text: s.cfg.NoEvidenceMessage, Outcome: domain.OutcomeNoEvidence}
	}

	promptContext := s.assembler.Assemble(docs)
	log.Debug("generating answer", zap.Int("documents", len(docs)), zap.Int("context_chars", len([]rune(promptContext))))
	ans := s.generator.Generate(ctx, query, promptContext)
	if ctx.Err() != nil {
		return s.cancelled()
	}
	if ans.Outcome != domain.OutcomeAnswered {
		return domain.Answer{Text: s.cfg.GenerationFailedMessage, Outcome: ans.Outcome}
	}
	ans.Sources = docs
	return ans
}

func (s *RAGServiceImpl) cancelled() domain.Answer {
	return domain.Answer{Text: s.cfg.GenerationFailedMessage, Outcome: domain.OutcomeCancelled}
}
