package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ELASTICSEARCH_URL", "ELASTICSEARCH_INDEX", "ELASTICSEARCH_USERNAME", "ELASTICSEARCH_PASSWORD", "MODEL_ID"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "elasticsearch", cfg.Search.Type)
	assert.Equal(t, "batiment-documents", cfg.Search.Elasticsearch.Index)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, "AUTO", cfg.Search.Fuzziness)
	assert.Equal(t, []FieldConfig{{"title", 2}, {"content", 1}, {"tags", 1.5}}, cfg.Search.Fields)

	assert.Equal(t, 500, cfg.Generator.MaxNewTokens)
	require.NotNil(t, cfg.Generator.Temperature)
	assert.Equal(t, 0.7, *cfg.Generator.Temperature)
	require.NotNil(t, cfg.Generator.TopP)
	assert.Equal(t, 0.9, *cfg.Generator.TopP)
	require.NotNil(t, cfg.Generator.DoSample)
	assert.True(t, *cfg.Generator.DoSample)
	assert.Equal(t, "mistralai/Mistral-7B-v0.1", cfg.Generator.HuggingFace.Model)
	assert.Equal(t, "HUGGINGFACE_API_KEY", cfg.Generator.HuggingFace.APIKeyEnv)

	assert.Equal(t, DefaultNoEvidenceMessage, cfg.Messages.NoEvidence)
	assert.Equal(t, DefaultGenerationFailedMessage, cfg.Messages.GenerationFailed)
	assert.NotEqual(t, cfg.Messages.NoEvidence, cfg.Messages.GenerationFailed)

	assert.Equal(t, 5*time.Second, cfg.SearchTimeout())
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout())
	require.NoError(t, cfg.Validate())
}

func TestParseKeepsExplicitValues(t *testing.T) {
	clearEnv(t)
	data := []byte(`
search:
  type: memory
  memory:
    documents_path: docs.yaml
  max_results: 5
generator:
  huggingface:
    model: my-org/batiment-mistral
    timeout_secs: 10
  do_sample: false
context:
  max_chars: 800
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Search.Type)
	assert.Equal(t, "docs.yaml", cfg.Search.Memory.DocumentsPath)
	assert.Nil(t, cfg.Search.Elasticsearch)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, "my-org/batiment-mistral", cfg.Generator.HuggingFace.Model)
	assert.False(t, *cfg.Generator.DoSample)
	assert.Equal(t, 800, cfg.Context.MaxChars)
	assert.Equal(t, 10*time.Second, cfg.GenerationTimeout())
	assert.Equal(t, 5*time.Second, cfg.SearchTimeout())
	require.NoError(t, cfg.Validate())
}

func TestParseNormalizesNonPositiveMaxResults(t *testing.T) {
	cfg, err := Parse([]byte("search:\n  max_results: -2\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResults, cfg.Search.MaxResults)
}

func TestParseKeepsZeroSamplingValues(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("search:\n  elasticsearch:\n    url: http://x\ngenerator:\n  temperature: 0\n  top_p: 0\n  do_sample: false\n"))
	require.NoError(t, err)

	require.NotNil(t, cfg.Generator.Temperature)
	assert.Zero(t, *cfg.Generator.Temperature)
	require.NotNil(t, cfg.Generator.TopP)
	assert.Zero(t, *cfg.Generator.TopP)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_URL", "http://es.internal:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "docs-v2")
	t.Setenv("ELASTICSEARCH_USERNAME", "elastic")
	t.Setenv("ELASTICSEARCH_PASSWORD", "secret")
	t.Setenv("MODEL_ID", "my-org/fine-tuned")

	cfg, err := Parse([]byte("search:\n  elasticsearch:\n    url: http://localhost:9200\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://es.internal:9200", cfg.Search.Elasticsearch.URL)
	assert.Equal(t, "docs-v2", cfg.Search.Elasticsearch.Index)
	assert.Equal(t, "elastic", cfg.Search.Elasticsearch.Username)
	assert.Equal(t, "secret", cfg.Search.Elasticsearch.Password)
	assert.Equal(t, "my-org/fine-tuned", cfg.Generator.HuggingFace.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown search type", "search:\n  type: solr\n"},
		{"missing es url", "search:\n  type: elasticsearch\n"},
		{"missing memory path", "search:\n  type: memory\n"},
		{"unknown generator", "search:\n  elasticsearch:\n    url: http://x\ngenerator:\n  type: gpt\n"},
		{"tiny context budget", "search:\n  elasticsearch:\n    url: http://x\ncontext:\n  max_chars: 50\n"},
		{"negative temperature", "search:\n  elasticsearch:\n    url: http://x\ngenerator:\n  temperature: -0.1\n"},
		{"top_p above one", "search:\n  elasticsearch:\n    url: http://x\ngenerator:\n  top_p: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Search.MaxResults = 7
	require.NoError(t, Save(path, cfg))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Search.MaxResults)
	assert.Equal(t, cfg.Generator.HuggingFace.Model, loaded.Generator.HuggingFace.Model)
}
