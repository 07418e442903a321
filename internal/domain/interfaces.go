package domain

import "context"

// Document is a single knowledge-base hit returned by a DocumentStore.
// It is built once per query and never mutated afterwards.
type Document struct {
	Title    string
	Content  string
	Tags     []string
	Category string
	Score    float64
}

// Field is a searchable document field and its relevance boost.
type Field struct {
	Name  string
	Boost float64
}

// EffectiveBoost is the boost applied when scoring. An unset or negative
// boost means the neutral 1.
func (f Field) EffectiveBoost() float64 {
	if f.Boost <= 0 {
		return 1
	}
	return f.Boost
}

// SearchRequest describes a multi-field fuzzy ranked query.
type SearchRequest struct {
	Query     string
	Fields    []Field
	Fuzziness string
	Size      int
}

// GenerationParams are the sampling parameters sent with every prompt.
type GenerationParams struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
}

// GenerationRequest is a prompt plus its parameters. One per query.
type GenerationRequest struct {
	Prompt     string
	Parameters GenerationParams
}

// Outcome tells callers which terminal state a query reached.
type Outcome string

const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeNoEvidence       Outcome = "no_evidence"
	OutcomeGenerationFailed Outcome = "generation_failed"
	OutcomeCancelled        Outcome = "cancelled"
)

// Answer is what a query produces for the user.
type Answer struct {
	Text    string
	Outcome Outcome
	Sources []Document
}

// DocumentStore runs ranked searches against a document index.
// Implementations must be safe for concurrent use.
type DocumentStore interface {
	Search(ctx context.Context, req SearchRequest) ([]Document, error)
}

// TextGenerator sends a prompt to a generation backend and returns the raw
// generated text. Implementations must be safe for concurrent use.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// QueryService defines the operations exposed by the application core.
type QueryService interface {
	Ask(ctx context.Context, query string) Answer
	AnswerQuery(ctx context.Context, query string) string
}
