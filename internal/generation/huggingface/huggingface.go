package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"batiment-rag/internal/domain"
)

const backendName = "huggingface"

// Client is a Hugging Face Inference API text-generation client implementing
// domain.TextGenerator. It performs no retries.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	waitForModel bool
	client       *http.Client
}

// Config configures the Hugging Face client.
type Config struct {
	BaseURL      string
	APIKeyEnv    string
	APIKey       string
	Model        string
	Timeout      time.Duration
	WaitForModel bool
}

// NewClient creates a new client. The API key is taken from cfg.APIKey, or
// from the environment variable named by cfg.APIKeyEnv.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("missing model id")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       key,
		model:        cfg.Model,
		waitForModel: cfg.WaitForModel,
		client:       &http.Client{Timeout: t},
	}, nil
}

// Name returns the identifier of this backend.
func (c *Client) Name() string { return backendName + ":" + c.model }

type parameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type options struct {
	WaitForModel bool `json:"wait_for_model"`
}

type requestBody struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
	Options    *options   `json:"options,omitempty"`
}

type generation struct {
	GeneratedText *string `json:"generated_text"`
}

// Generate posts the prompt and returns the first generated text, which by
// default echoes the prompt followed by the continuation.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	body := requestBody{
		Inputs: req.Prompt,
		Parameters: parameters{
			MaxNewTokens:   req.Parameters.MaxNewTokens,
			Temperature:    req.Parameters.Temperature,
			TopP:           req.Parameters.TopP,
			DoSample:       req.Parameters.DoSample,
			ReturnFullText: true,
		},
	}
	if c.waitForModel {
		body.Options = &options{WaitForModel: true}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &domain.StatusError{Backend: backendName, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, statusErr)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrGenerationUnavailable, err)
	}
	var out []generation
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("%w: decode generation response: %v", domain.ErrMalformedResponse, err)
	}
	if len(out) == 0 || out[0].GeneratedText == nil {
		return "", fmt.Errorf("%w: no generated_text in response", domain.ErrMalformedResponse)
	}
	return *out[0].GeneratedText, nil
}
