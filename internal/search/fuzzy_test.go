package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"batiment-rag/internal/domain"
)

func TestMaxEditsAuto(t *testing.T) {
	tests := []struct {
		term string
		want int
	}{
		{"a", 0},
		{"un", 0},
		{"mur", 1},
		{"isoler", 2},
		{"porte", 1},
		{"thermiques", 2},
		{"été", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxEdits(tt.term, "AUTO"), tt.term)
		assert.Equal(t, tt.want, MaxEdits(tt.term, "auto"), tt.term)
	}
}

func TestMaxEditsNumeric(t *testing.T) {
	assert.Equal(t, 0, MaxEdits("isolation", ""))
	assert.Equal(t, 0, MaxEdits("isolation", "0"))
	assert.Equal(t, 1, MaxEdits("isolation", "1"))
	assert.Equal(t, 2, MaxEdits("isolation", "5"))
	assert.Equal(t, 0, MaxEdits("isolation", "lots"))
}

func TestFieldSpecs(t *testing.T) {
	fields := []domain.Field{{Name: "title", Boost: 2}, {Name: "content", Boost: 1}, {Name: "tags", Boost: 1.5}}
	assert.Equal(t, []string{"title^2", "content", "tags^1.5"}, FieldSpecs(fields))
}

func TestFieldSpecsWithoutBoost(t *testing.T) {
	fields := []domain.Field{{Name: "title"}, {Name: "content", Boost: -1}}
	assert.Equal(t, []string{"title", "content"}, FieldSpecs(fields))
	for _, f := range fields {
		assert.Equal(t, 1.0, f.EffectiveBoost())
	}
}
