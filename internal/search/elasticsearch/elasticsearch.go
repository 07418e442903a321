package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"

	"batiment-rag/internal/domain"
	"batiment-rag/internal/search"
)

const backendName = "elasticsearch"

// Storage runs _search requests through the official Elasticsearch client.
// The client and its connection pool are shared by all queries.
type Storage struct {
	index  string
	client *es8.Client
}

type Config struct {
	URL      string
	Index    string
	Username string
	Password string
	Timeout  time.Duration
}

// NewStorage builds the client. The core performs no retries, so the
// client's retry loop is disabled.
func NewStorage(cfg Config) (*Storage, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	client, err := es8.NewClient(es8.Config{
		Addresses:    []string{strings.TrimRight(cfg.URL, "/")},
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Storage{index: cfg.Index, client: client}, nil
}

type multiMatch struct {
	Query     string   `json:"query"`
	Fields    []string `json:"fields"`
	Fuzziness string   `json:"fuzziness,omitempty"`
}

type searchBody struct {
	Query struct {
		MultiMatch multiMatch `json:"multi_match"`
	} `json:"query"`
	Size int `json:"size"`
}

type searchResponse struct {
	Hits *struct {
		Hits []struct {
			Score  *float64 `json:"_score"`
			Source struct {
				Title    string          `json:"title"`
				Content  string          `json:"content"`
				Tags     json.RawMessage `json:"tags"`
				Category string          `json:"category"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildQuery renders the request body sent to _search.
func BuildQuery(req domain.SearchRequest) ([]byte, error) {
	var body searchBody
	body.Query.MultiMatch = multiMatch{
		Query:     req.Query,
		Fields:    search.FieldSpecs(req.Fields),
		Fuzziness: req.Fuzziness,
	}
	body.Size = req.Size
	return json.Marshal(body)
}

func (s *Storage) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Document, error) {
	data, err := BuildQuery(req)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		statusErr := &domain.StatusError{Backend: backendName, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, statusErr)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", domain.ErrMalformedResponse, err)
	}
	if out.Hits == nil {
		return nil, fmt.Errorf("%w: search response has no hits section", domain.ErrMalformedResponse)
	}

	docs := make([]domain.Document, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		tags, err := decodeTags(h.Source.Tags)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		doc := domain.Document{
			Title:    h.Source.Title,
			Content:  h.Source.Content,
			Tags:     tags,
			Category: h.Source.Category,
		}
		if h.Score != nil {
			doc.Score = *h.Score
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// decodeTags accepts both a keyword array and a single string.
func decodeTags(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}
	return nil, errors.New("tags is neither a string nor a list of strings")
}
