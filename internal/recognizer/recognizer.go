// Package recognizer implements the exact nearest-neighbor match between a
// live embedding and the enrolled face templates.
package recognizer

import (
	"errors"
	"math"

	"github.com/scanin/scanin/internal/database"
)

// ErrNoMatch is returned when the best similarity stays below the threshold.
var ErrNoMatch = errors.New("no matching trainee")

// CosineSimilarity computes the cosine similarity between two vectors,
// in [-1, 1]. Returns 0 for mismatched lengths or zero-norm vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// Match scans candidates in order and returns the trainee id of the best
// scoring template together with its score. The scan is exact and linear;
// on ties the first-enumerated candidate wins, so callers must pass
// candidates in a stable order (enrollment order). Returns ErrNoMatch when
// the best score is below threshold.
func Match(query []float32, candidates []database.FaceTemplate, threshold float64) (int64, float64, error) {
	bestID := int64(0)
	bestScore := math.Inf(-1)
	found := false

	for _, c := range candidates {
		score := CosineSimilarity(query, c.Embedding)
		if score > bestScore {
			bestScore = score
			bestID = c.TraineeID
			found = true
		}
	}

	if !found || bestScore < threshold {
		return 0, bestScore, ErrNoMatch
	}
	return bestID, bestScore, nil
}

// Mean averages embeddings element-wise. All inputs must share one length.
func Mean(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}

	dim := len(embeddings[0])
	sum := make([]float64, dim)
	for _, emb := range embeddings {
		for i := range emb {
			sum[i] += float64(emb[i])
		}
	}

	avg := make([]float32, dim)
	n := float64(len(embeddings))
	for i := range sum {
		avg[i] = float32(sum[i] / n)
	}
	return avg
}
