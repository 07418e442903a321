package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"batiment-rag/internal/config"
	"batiment-rag/internal/domain"
)

type echoService struct {
	mu    sync.Mutex
	asked []string
}

func (s *echoService) Ask(ctx context.Context, q string) domain.Answer {
	return domain.Answer{Text: s.AnswerQuery(ctx, q), Outcome: domain.OutcomeAnswered}
}

func (s *echoService) AnswerQuery(ctx context.Context, q string) string {
	s.mu.Lock()
	s.asked = append(s.asked, q)
	s.mu.Unlock()
	return "réponse à " + q
}

func TestRunBatchPrintsInOrder(t *testing.T) {
	var out bytes.Buffer
	svc := &echoService{}
	require.NoError(t, runBatch(context.Background(), &out, svc, sampleQuestions))

	assert.ElementsMatch(t, sampleQuestions, svc.asked)
	text := out.String()
	last := -1
	for _, q := range sampleQuestions {
		pos := strings.Index(text, "Question: "+q+"\n\nRéponse:\nréponse à "+q)
		require.Greater(t, pos, last, q)
		last = pos
	}
	assert.Equal(t, len(sampleQuestions)+1, strings.Count(text, separator))
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := runBatch(ctx, &out, &echoService{}, sampleQuestions)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestBuildServiceWithMemoryStore(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "documents.yaml")
	require.NoError(t, os.WriteFile(docs, []byte(`
- title: Réduction des ponts thermiques
  content: Pour isoler un mur extérieur, posez un isolant continu.
  tags: [isolation, mur]
`), 0o644))

	hf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Inputs string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode([]map[string]string{{"generated_text": body.Inputs + " Une isolation par l'extérieur."}})
	}))
	defer hf.Close()

	t.Setenv("HF_TOKEN_FOR_TEST", "hf_test")
	t.Setenv("MODEL_ID", "")
	cfg, err := config.Parse([]byte(`
search:
  type: memory
  memory:
    documents_path: ` + docs + `
generator:
  huggingface:
    base_url: ` + hf.URL + `
    api_key_env: HF_TOKEN_FOR_TEST
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	svc, err := buildService(cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	ans := svc.Ask(context.Background(), "Comment isoler un mur extérieur?")
	assert.Equal(t, domain.OutcomeAnswered, ans.Outcome)
	assert.Equal(t, "Une isolation par l'extérieur.", ans.Text)

	assert.Equal(t, config.DefaultNoEvidenceMessage, svc.AnswerQuery(context.Background(), "photovoltaïque"))
}

func TestBuildServiceMissingAPIKey(t *testing.T) {
	t.Setenv("HF_TOKEN_FOR_TEST", "")
	cfg, err := config.Parse([]byte("generator:\n  huggingface:\n    api_key_env: HF_TOKEN_FOR_TEST\n"))
	require.NoError(t, err)

	_, err = buildService(cfg, zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}
