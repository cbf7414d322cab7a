package rag

import (
	"sort"

	"ai-docqa-be/pkg/vectorstore"
)

// FilterRelevantContext trusts the gateway's similarity when set and derives
// 1 - distance otherwise (a distance of 0 is a perfect match), drops
// everything below the threshold and returns the rest sorted by descending
// similarity. The input slice is not modified.
func FilterRelevantContext(candidates []*vectorstore.Candidate, threshold float64) []*vectorstore.Candidate {
	filtered := make([]*vectorstore.Candidate, 0, len(candidates))
	for _, c := range candidates {
		similarity := c.Similarity
		if similarity == 0 {
			similarity = 1 - c.Distance
		}
		if similarity < threshold {
			continue
		}
		filtered = append(filtered, &vectorstore.Candidate{
			Chunk:      c.Chunk,
			Distance:   c.Distance,
			Similarity: similarity,
		})
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Similarity > filtered[j].Similarity
	})
	return filtered
}
