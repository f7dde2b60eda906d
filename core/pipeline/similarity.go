package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/docpilot/docpilot/model"
)

// SimilarityMatch pairs a candidate index with its similarity to a query
type SimilarityMatch struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// CosineSimilarity calculates the cosine similarity between two embedding
// vectors. Vectors of different dimensions are an error, zero vectors score
// zero.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", model.ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// FindMostSimilar returns the topK candidates most similar to the query,
// in descending score order. Ties keep the candidates' original order.
func FindMostSimilar(query []float32, candidates [][]float32, topK int) ([]SimilarityMatch, error) {
	if topK <= 0 {
		return []SimilarityMatch{}, nil
	}

	matches := make([]SimilarityMatch, 0, len(candidates))
	for i, candidate := range candidates {
		score, err := CosineSimilarity(query, candidate)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		matches = append(matches, SimilarityMatch{Index: i, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
