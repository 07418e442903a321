package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"batiment-rag/internal/config"
	"batiment-rag/internal/domain"
	"batiment-rag/internal/generation"
	"batiment-rag/internal/generation/huggingface"
	"batiment-rag/internal/logging"
	"batiment-rag/internal/metrics"
	"batiment-rag/internal/prompt"
	"batiment-rag/internal/retriever"
	"batiment-rag/internal/search/elasticsearch"
	"batiment-rag/internal/search/memory"
	"batiment-rag/internal/service"
	"batiment-rag/internal/tui"
)

const separator = "---------------------------------------------------"

var sampleQuestions = []string{
	"Comment isoler un mur extérieur?",
	"Quelles sont les normes pour la ventilation d'une salle de bain?",
	"Quelle est la différence entre un mur porteur et une cloison?",
}

func main() {
	_ = godotenv.Load()

	var (
		cfgPath  string
		question string
		batch    bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/batiment-rag/config.yaml if not provided)")
	flag.StringVar(&question, "q", "", "Ask a single question and print the answer")
	flag.BoolVar(&batch, "batch", false, "Run the sample questions and print their answers")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	interactive := question == "" && !batch
	newLogger := logging.New
	if interactive {
		// The TUI owns the terminal.
		newLogger = logging.ForTUI
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
	}

	svc, err := buildService(cfg, logger, m)
	if err != nil {
		log.Fatalf("failed to assemble query pipeline: %v", err)
	}

	switch {
	case question != "":
		fmt.Println(svc.AnswerQuery(ctx, question))
	case batch:
		if err := runBatch(ctx, os.Stdout, svc, sampleQuestions); err != nil {
			logger.Fatal("batch run failed", zap.Error(err))
		}
	default:
		if _, err := tea.NewProgram(tui.New(ctx, svc), tea.WithAltScreen()).Run(); err != nil {
			log.Fatalf("tui exited: %v", err)
		}
	}
}

func buildService(cfg *config.AppConfig, logger *zap.Logger, m *metrics.Metrics) (*service.RAGServiceImpl, error) {
	var store domain.DocumentStore
	switch cfg.Search.Type {
	case "elasticsearch":
		es := cfg.Search.Elasticsearch
		st, err := elasticsearch.NewStorage(elasticsearch.Config{
			URL:      es.URL,
			Index:    es.Index,
			Username: es.Username,
			Password: es.Password,
			Timeout:  cfg.SearchTimeout(),
		})
		if err != nil {
			return nil, err
		}
		store = st
	case "memory":
		st, err := memory.LoadFile(cfg.Search.Memory.DocumentsPath)
		if err != nil {
			return nil, fmt.Errorf("memory store: %w", err)
		}
		logger.Info("loaded documents", zap.Int("count", st.Len()), zap.String("path", cfg.Search.Memory.DocumentsPath))
		store = st
	default:
		return nil, fmt.Errorf("unknown search type: %s", cfg.Search.Type)
	}

	var backend domain.TextGenerator
	switch cfg.Generator.Type {
	case "huggingface":
		hf := cfg.Generator.HuggingFace
		client, err := huggingface.NewClient(huggingface.Config{
			BaseURL:      hf.BaseURL,
			APIKeyEnv:    hf.APIKeyEnv,
			Model:        hf.Model,
			Timeout:      cfg.GenerationTimeout(),
			WaitForModel: hf.WaitForModel,
		})
		if err != nil {
			return nil, fmt.Errorf("huggingface client: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown generator type: %s", cfg.Generator.Type)
	}

	fields := make([]domain.Field, len(cfg.Search.Fields))
	for i, f := range cfg.Search.Fields {
		fields[i] = domain.Field{Name: f.Name, Boost: f.Boost}
	}
	r := retriever.New(store, retriever.Config{
		Fields:     fields,
		Fuzziness:  cfg.Search.Fuzziness,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    cfg.SearchTimeout(),
	}, logger, m)

	g := generation.New(backend, generation.Config{
		Params: domain.GenerationParams{
			MaxNewTokens: cfg.Generator.MaxNewTokens,
			Temperature:  *cfg.Generator.Temperature,
			TopP:         *cfg.Generator.TopP,
			DoSample:     *cfg.Generator.DoSample,
		},
		Timeout:         cfg.GenerationTimeout(),
		FallbackMessage: cfg.Messages.GenerationFailed,
	}, logger, m)

	return service.NewRAGService(r, prompt.NewAssembler(cfg.Context.MaxChars), g, service.Config{
		MaxResults:              cfg.Search.MaxResults,
		NoEvidenceMessage:       cfg.Messages.NoEvidence,
		GenerationFailedMessage: cfg.Messages.GenerationFailed,
	}, logger, m), nil
}

// runBatch answers every question concurrently and prints them in order.
func runBatch(ctx context.Context, w io.Writer, svc domain.QueryService, questions []string) error {
	answers := make([]string, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			answers[i] = svc.AnswerQuery(gctx, q)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, q := range questions {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Question: %s\n\nRéponse:\n%s\n", q, answers[i])
	}
	fmt.Fprintln(w, separator)
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
