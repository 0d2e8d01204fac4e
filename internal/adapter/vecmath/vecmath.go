// Package vecmath holds the similarity helpers shared by the in-process
// vector indexes and the evaluation metrics.
package vecmath

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scored is a candidate with its similarity and insertion position.
type Scored struct {
	Pos   int
	Score float64
}

// TopK orders candidates by descending score, breaking ties by insertion
// position, and keeps at most k.
func TopK(candidates []Scored, k int) []Scored {
	if k <= 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Pos < candidates[j].Pos
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}
