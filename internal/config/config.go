package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default messages returned to the user when no answer can be produced.
const (
	DefaultNoEvidenceMessage       = "Je n'ai pas trouvé d'informations spécifiques sur ce sujet dans ma base de connaissances sur le bâtiment. Pourriez-vous reformuler votre question ou demander sur un autre aspect du domaine du bâtiment?"
	DefaultGenerationFailedMessage = "Désolé, je n'ai pas pu générer une réponse. Veuillez réessayer plus tard."
)

const (
	// DefaultMaxResults is the K used whenever a non-positive one is configured.
	DefaultMaxResults = 3

	// DefaultContextChars keeps the context well inside a 7B model's input window.
	DefaultContextChars = 12000

	// MinContextChars is the smallest accepted context budget.
	MinContextChars = 200
)

// ElasticsearchConfig contains connection details for an Elasticsearch index.
type ElasticsearchConfig struct {
	URL         string `yaml:"url"`
	Index       string `yaml:"index"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryStoreConfig points the in-process store at a YAML document file.
type MemoryStoreConfig struct {
	DocumentsPath string `yaml:"documents_path"`
}

// FieldConfig is a searchable field with its boost.
type FieldConfig struct {
	Name  string  `yaml:"name"`
	Boost float64 `yaml:"boost"`
}

// SearchConfig selects and configures the document store.
type SearchConfig struct {
	Type          string               `yaml:"type"`
	Elasticsearch *ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
	Memory        *MemoryStoreConfig   `yaml:"memory,omitempty"`
	MaxResults    int                  `yaml:"max_results"`
	Fuzziness     string               `yaml:"fuzziness"`
	Fields        []FieldConfig        `yaml:"fields"`
}

// HuggingFaceConfig configures the Hugging Face Inference API client.
type HuggingFaceConfig struct {
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	WaitForModel bool   `yaml:"wait_for_model"`
}

// GeneratorConfig selects the generation backend and its sampling parameters.
type GeneratorConfig struct {
	Type         string             `yaml:"type"`
	HuggingFace  *HuggingFaceConfig `yaml:"huggingface,omitempty"`
	MaxNewTokens int                `yaml:"max_new_tokens"`
	Temperature  *float64           `yaml:"temperature,omitempty"`
	TopP         *float64           `yaml:"top_p,omitempty"`
	DoSample     *bool              `yaml:"do_sample,omitempty"`
}

// ContextConfig bounds the prompt context.
type ContextConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// MessagesConfig holds the two canned user-facing answers.
type MessagesConfig struct {
	NoEvidence       string `yaml:"no_evidence"`
	GenerationFailed string `yaml:"generation_failed"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// File receives the logs instead of stderr. The TUI logs only when it is set.
	File string `yaml:"file,omitempty"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Search    SearchConfig    `yaml:"search"`
	Generator GeneratorConfig `yaml:"generator"`
	Context   ContextConfig   `yaml:"context"`
	Messages  MessagesConfig  `yaml:"messages"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes and fills in defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/batiment-rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/batiment-rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports configuration that cannot produce a working pipeline.
func (c *AppConfig) Validate() error {
	switch c.Search.Type {
	case "elasticsearch":
		if c.Search.Elasticsearch == nil || c.Search.Elasticsearch.URL == "" {
			return errors.New("search.elasticsearch.url is required")
		}
		if c.Search.Elasticsearch.Index == "" {
			return errors.New("search.elasticsearch.index is required")
		}
	case "memory":
		if c.Search.Memory == nil || c.Search.Memory.DocumentsPath == "" {
			return errors.New("search.memory.documents_path is required")
		}
	default:
		return fmt.Errorf("unknown search type: %q", c.Search.Type)
	}
	switch c.Generator.Type {
	case "huggingface":
		if c.Generator.HuggingFace == nil || c.Generator.HuggingFace.Model == "" {
			return errors.New("generator.huggingface.model is required")
		}
	default:
		return fmt.Errorf("unknown generator type: %q", c.Generator.Type)
	}
	if len(c.Search.Fields) == 0 {
		return errors.New("search.fields must not be empty")
	}
	if c.Context.MaxChars < MinContextChars {
		return fmt.Errorf("context.max_chars must be at least %d", MinContextChars)
	}
	if t := c.Generator.Temperature; t != nil && *t < 0 {
		return errors.New("generator.temperature must not be negative")
	}
	if p := c.Generator.TopP; p != nil && (*p < 0 || *p > 1) {
		return errors.New("generator.top_p must be between 0 and 1")
	}
	return nil
}

// SearchTimeout is the per-query retrieval deadline.
func (c *AppConfig) SearchTimeout() time.Duration {
	if c.Search.Elasticsearch != nil && c.Search.Elasticsearch.TimeoutSecs > 0 {
		return time.Duration(c.Search.Elasticsearch.TimeoutSecs) * time.Second
	}
	return 5 * time.Second
}

// GenerationTimeout is the per-query generation deadline.
func (c *AppConfig) GenerationTimeout() time.Duration {
	if c.Generator.HuggingFace != nil && c.Generator.HuggingFace.TimeoutSecs > 0 {
		return time.Duration(c.Generator.HuggingFace.TimeoutSecs) * time.Second
	}
	return 60 * time.Second
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "batiment-rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Search: SearchConfig{
			Type:          "elasticsearch",
			Elasticsearch: &ElasticsearchConfig{URL: "http://localhost:9200", Index: "batiment-documents"},
		},
		Generator: GeneratorConfig{
			Type:        "huggingface",
			HuggingFace: &HuggingFaceConfig{},
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Search.Type == "" {
		cfg.Search.Type = "elasticsearch"
	}
	if cfg.Search.Type == "elasticsearch" {
		if cfg.Search.Elasticsearch == nil {
			cfg.Search.Elasticsearch = &ElasticsearchConfig{}
		}
		if cfg.Search.Elasticsearch.Index == "" {
			cfg.Search.Elasticsearch.Index = "batiment-documents"
		}
		if cfg.Search.Elasticsearch.TimeoutSecs == 0 {
			cfg.Search.Elasticsearch.TimeoutSecs = 5
		}
	}
	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = DefaultMaxResults
	}
	if cfg.Search.Fuzziness == "" {
		cfg.Search.Fuzziness = "AUTO"
	}
	if len(cfg.Search.Fields) == 0 {
		cfg.Search.Fields = []FieldConfig{
			{Name: "title", Boost: 2},
			{Name: "content", Boost: 1},
			{Name: "tags", Boost: 1.5},
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "huggingface"
	}
	if cfg.Generator.Type == "huggingface" {
		if cfg.Generator.HuggingFace == nil {
			cfg.Generator.HuggingFace = &HuggingFaceConfig{}
		}
		hf := cfg.Generator.HuggingFace
		if hf.BaseURL == "" {
			hf.BaseURL = "https://api-inference.huggingface.co"
		}
		if hf.Model == "" {
			hf.Model = "mistralai/Mistral-7B-v0.1"
		}
		if hf.APIKeyEnv == "" {
			hf.APIKeyEnv = "HUGGINGFACE_API_KEY"
		}
		if hf.TimeoutSecs == 0 {
			hf.TimeoutSecs = 60
		}
	}
	if cfg.Generator.MaxNewTokens <= 0 {
		cfg.Generator.MaxNewTokens = 500
	}
	if cfg.Generator.Temperature == nil {
		temperature := 0.7
		cfg.Generator.Temperature = &temperature
	}
	if cfg.Generator.TopP == nil {
		topP := 0.9
		cfg.Generator.TopP = &topP
	}
	if cfg.Generator.DoSample == nil {
		sample := true
		cfg.Generator.DoSample = &sample
	}

	if cfg.Context.MaxChars <= 0 {
		cfg.Context.MaxChars = DefaultContextChars
	}
	if cfg.Messages.NoEvidence == "" {
		cfg.Messages.NoEvidence = DefaultNoEvidenceMessage
	}
	if cfg.Messages.GenerationFailed == "" {
		cfg.Messages.GenerationFailed = DefaultGenerationFailedMessage
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// applyEnvOverrides honours the variables used by existing deployments.
func applyEnvOverrides(cfg *AppConfig) {
	if es := cfg.Search.Elasticsearch; es != nil {
		if v := os.Getenv("ELASTICSEARCH_URL"); v != "" {
			es.URL = v
		}
		if v := os.Getenv("ELASTICSEARCH_INDEX"); v != "" {
			es.Index = v
		}
		if v := os.Getenv("ELASTICSEARCH_USERNAME"); v != "" {
			es.Username = v
		}
		if v := os.Getenv("ELASTICSEARCH_PASSWORD"); v != "" {
			es.Password = v
		}
	}
	if hf := cfg.Generator.HuggingFace; hf != nil {
		if v := os.Getenv("MODEL_ID"); v != "" {
			hf.Model = v
		}
	}
}
