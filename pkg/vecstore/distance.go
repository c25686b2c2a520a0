package vecstore

import "math"

// CosineDistance computes the cosine distance between two vectors.
// Returns a value in [0, 2] where 0 means identical direction and
// 2 means opposite direction. Mismatched dimensions or a zero-norm
// vector yield the maximum distance 2.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 2 // zero vector has no direction
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return float32(1 - similarity)
}
