package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"batiment-rag/internal/config"
	"batiment-rag/internal/domain"
	"batiment-rag/internal/logging"
	"batiment-rag/internal/metrics"
)

// Delimiter marks where the model's answer begins in the generated text.
const Delimiter = "Réponse:"

const roleFraming = "Tu es un assistant spécialisé dans le domaine du bâtiment. Utilise le contexte suivant pour répondre à la question de l'utilisateur."

// DefaultParams are the sampling parameters used when none are configured.
var DefaultParams = domain.GenerationParams{
	MaxNewTokens: 500,
	Temperature:  0.7,
	TopP:         0.9,
	DoSample:     true,
}

// ErrNoDelimiter is returned by ExtractAnswer when the delimiter is missing.
var ErrNoDelimiter = fmt.Errorf("%w: answer delimiter %q not found", domain.ErrMalformedResponse, Delimiter)

// ErrEmptyAnswer is returned by ExtractAnswer when nothing follows the delimiter.
var ErrEmptyAnswer = fmt.Errorf("%w: empty answer after delimiter", domain.ErrMalformedResponse)

// BuildPrompt renders the fixed prompt template.
func BuildPrompt(query, promptContext string) string {
	return roleFraming + "\n\nContext:\n" + promptContext + "\n\nQuestion: " + query + "\n\n" + Delimiter
}

// ExtractAnswer returns the trimmed text after the first delimiter.
func ExtractAnswer(raw string) (string, error) {
	_, after, found := strings.Cut(raw, Delimiter)
	if !found {
		return "", ErrNoDelimiter
	}
	answer := strings.TrimSpace(after)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// Config configures a Generator.
type Config struct {
	Params          domain.GenerationParams
	Timeout         time.Duration
	FallbackMessage string
}

// Generator turns a query and its context into an answer. Every failure of
// the backend, including a response it cannot parse, produces the fallback.
type Generator struct {
	backend domain.TextGenerator
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(backend domain.TextGenerator, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Generator {
	if cfg.Params == (domain.GenerationParams{}) {
		cfg.Params = DefaultParams
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = config.DefaultGenerationFailedMessage
	}
	return &Generator{backend: backend, cfg: cfg, logger: logging.OrNop(logger).Named("generator"), metrics: m}
}

// Generate asks the backend for an answer grounded in promptContext.
func (g *Generator) Generate(ctx context.Context, query, promptContext string) domain.Answer {
	prompt := BuildPrompt(query, promptContext)
	req := domain.GenerationRequest{Prompt: prompt, Parameters: g.cfg.Params}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var answer string
	raw, err := g.backend.Generate(callCtx, req)
	if err == nil {
		answer, err = answerFromGeneration(prompt, raw)
	}
	g.metrics.ObserveStage(metrics.StageGeneration, start, err != nil)
	if err != nil {
		return g.fail(ctx, err, start)
	}
	return domain.Answer{Text: answer, Outcome: domain.OutcomeAnswered}
}

// answerFromGeneration strips an exact prompt echo so that a delimiter inside
// a retrieved document cannot move the split point, then extracts the answer.
func answerFromGeneration(prompt, raw string) (string, error) {
	if strings.HasPrefix(raw, prompt) {
		raw = raw[len(prompt)-len(Delimiter):]
	}
	return ExtractAnswer(raw)
}

func (g *Generator) fail(ctx context.Context, err error, start time.Time) domain.Answer {
	outcome := domain.OutcomeGenerationFailed
	if ctx.Err() != nil {
		outcome = domain.OutcomeCancelled
	}
	var statusErr *domain.StatusError
	fields := []zap.Field{
		zap.String("backend", g.backend.Name()),
		zap.String("outcome", string(outcome)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("unauthorized", errors.Is(err, domain.ErrUnauthorized)),
		zap.Bool("malformed", errors.Is(err, domain.ErrMalformedResponse)),
		zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		zap.Error(err),
	}
	if errors.As(err, &statusErr) {
		fields = append(fields, zap.Int("status", statusErr.StatusCode))
	}
	g.logger.Error("generation failed, returning fallback answer", fields...)
	return domain.Answer{Text: g.cfg.FallbackMessage, Outcome: outcome}
}
