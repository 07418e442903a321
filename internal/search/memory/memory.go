package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"batiment-rag/internal/domain"
	"batiment-rag/internal/search"
)

// Record is a document as stored in the YAML knowledge-base file.
type Record struct {
	Title    string   `yaml:"title"`
	Content  string   `yaml:"content"`
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
}

// Storage is an in-process document store that scores documents with the same
// multi-field fuzzy rules as the Elasticsearch query: each query term matches a
// field token within the fuzziness edit budget, and a document's score is its
// best boosted field score.
type Storage struct {
	mu      sync.RWMutex
	records []indexed
}

type indexed struct {
	record Record
	tokens map[string][]string
}

// NewStorage returns a store holding the given records.
func NewStorage(records []Record) *Storage {
	s := &Storage{}
	s.Replace(records)
	return s
}

// LoadFile reads a YAML list of records.
func LoadFile(path string) (*Storage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse documents %s: %w", path, err)
	}
	return NewStorage(records), nil
}

// Replace swaps the stored records.
func (s *Storage) Replace(records []Record) {
	idx := make([]indexed, len(records))
	for i, r := range records {
		idx[i] = indexed{record: r, tokens: map[string][]string{
			"title":    search.Tokenize(r.Title),
			"content":  search.Tokenize(r.Content),
			"tags":     tokenizeAll(r.Tags),
			"category": search.Tokenize(r.Category),
		}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = idx
}

// Len reports how many records are stored.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := search.Tokenize(req.Query)
	if len(terms) == 0 || req.Size <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(s.records))
	for i, rec := range s.records {
		best := 0.0
		for _, f := range req.Fields {
			score := fieldScore(terms, rec.tokens[f.Name], req.Fuzziness) * f.EffectiveBoost()
			if score > best {
				best = score
			}
		}
		if best > 0 {
			hits = append(hits, hit{idx: i, score: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > req.Size {
		hits = hits[:req.Size]
	}

	out := make([]domain.Document, 0, len(hits))
	for _, h := range hits {
		r := s.records[h.idx].record
		out = append(out, domain.Document{
			Title:    r.Title,
			Content:  r.Content,
			Tags:     append([]string(nil), r.Tags...),
			Category: r.Category,
			Score:    h.score,
		})
	}
	return out, nil
}

// fieldScore sums, per query term, 1 for an exact token match and a
// distance-discounted weight for a fuzzy one.
func fieldScore(terms, tokens []string, fuzziness string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	total := 0.0
	for _, term := range terms {
		budget := search.MaxEdits(term, fuzziness)
		best := -1
		for _, tok := range tokens {
			if tok == term {
				best = 0
				break
			}
			if budget == 0 {
				continue
			}
			if d := levenshtein.ComputeDistance(term, tok); d <= budget && (best < 0 || d < best) {
				best = d
			}
		}
		if best >= 0 {
			total += 1 / float64(1+best)
		}
	}
	return total
}

func tokenizeAll(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, search.Tokenize(v)...)
	}
	return out
}
