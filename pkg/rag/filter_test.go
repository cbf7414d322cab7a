package rag

import (
	"testing"

	"ai-docqa-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id string, distance float64) *vectorstore.Candidate {
	return &vectorstore.Candidate{
		Chunk:    &vectorstore.Chunk{ID: id, Content: "c"},
		Distance: distance,
	}
}

func TestFilterRelevantContext(t *testing.T) {
	tests := []struct {
		name      string
		distances map[string]float64
		threshold float64
		wantIDs   []string
	}{
		{
			name:      "drops everything below threshold",
			distances: map[string]float64{"a": 0.2, "b": 0.95, "c": 0.5},
			threshold: 0.4,
			wantIDs:   []string{"a", "c"},
		},
		{
			name:      "keeps exactly at threshold",
			distances: map[string]float64{"a": 0.5},
			threshold: 0.5,
			wantIDs:   []string{"a"},
		},
		{
			name:      "all below threshold",
			distances: map[string]float64{"a": 0.99, "b": 0.95},
			threshold: 0.1,
			wantIDs:   []string{},
		},
		{
			name:      "empty input",
			distances: map[string]float64{},
			threshold: 0.1,
			wantIDs:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var input []*vectorstore.Candidate
			for id, d := range tt.distances {
				input = append(input, candidate(id, d))
			}

			got := FilterRelevantContext(input, tt.threshold)

			require.Len(t, got, len(tt.wantIDs))
			gotIDs := make(map[string]bool, len(got))
			for _, c := range got {
				gotIDs[c.Chunk.ID] = true
				// Every survivor satisfies the threshold.
				assert.GreaterOrEqual(t, c.Similarity, tt.threshold)
			}
			for _, id := range tt.wantIDs {
				assert.True(t, gotIDs[id], "expected %s to survive", id)
			}
		})
	}
}

func TestFilterSortsByDescendingSimilarity(t *testing.T) {
	input := []*vectorstore.Candidate{
		candidate("far", 0.8),
		candidate("near", 0.1),
		candidate("mid", 0.4),
	}

	got := FilterRelevantContext(input, 0.0)

	require.Len(t, got, 3)
	assert.Equal(t, "near", got[0].Chunk.ID)
	assert.Equal(t, "mid", got[1].Chunk.ID)
	assert.Equal(t, "far", got[2].Chunk.ID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
}

func TestFilterDerivesSimilarityFromDistance(t *testing.T) {
	got := FilterRelevantContext([]*vectorstore.Candidate{candidate("a", 0.3)}, 0.0)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.7, got[0].Similarity, 1e-9)
}

func TestFilterKeepsPerfectMatchWithUnsetSimilarity(t *testing.T) {
	got := FilterRelevantContext([]*vectorstore.Candidate{candidate("exact", 0)}, 0.7)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	input := []*vectorstore.Candidate{candidate("a", 0.3)}
	_ = FilterRelevantContext(input, 0.0)
	assert.Zero(t, input[0].Similarity)
}
