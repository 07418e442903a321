// Package retriever runs the ranked knowledge-base search of a query.
package retriever

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"batiment-rag/internal/config"
	"batiment-rag/internal/domain"
	"batiment-rag/internal/logging"
	"batiment-rag/internal/metrics"
)

// Config configures a Retriever.
type Config struct {
	Fields     []domain.Field
	Fuzziness  string
	MaxResults int
	Timeout    time.Duration
}

// Retriever queries a DocumentStore and never fails: backend errors,
// malformed responses and timeouts all yield an empty result.
type Retriever struct {
	store   domain.DocumentStore
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(store domain.DocumentStore, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Retriever {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = config.DefaultMaxResults
	}
	if cfg.Fuzziness == "" {
		cfg.Fuzziness = "AUTO"
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = []domain.Field{{Name: "title", Boost: 2}, {Name: "content", Boost: 1}, {Name: "tags", Boost: 1.5}}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Retriever{store: store, cfg: cfg, logger: logging.OrNop(logger).Named("retriever"), metrics: m}
}

// Search returns at most maxResults documents in backend ranking order.
func (r *Retriever) Search(ctx context.Context, query string, maxResults int) []domain.Document {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	docs, err := r.store.Search(ctx, domain.SearchRequest{
		Query:     query,
		Fields:    r.cfg.Fields,
		Fuzziness: r.cfg.Fuzziness,
		Size:      maxResults,
	})
	r.metrics.ObserveStage(metrics.StageRetrieval, start, err != nil)
	if err != nil {
		r.logger.Warn("document search failed, treating as no results",
			zap.String("query", query),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		r.metrics.ObserveDocuments(0)
		return nil
	}
	if len(docs) > maxResults {
		docs = docs[:maxResults]
	}
	r.metrics.ObserveDocuments(len(docs))
	r.logger.Debug("documents retrieved", zap.String("query", query), zap.Int("count", len(docs)))
	return docs
}
