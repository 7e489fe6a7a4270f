package index

import "math"

// Scorer rates how well a candidate embedding answers a query embedding.
// Higher is better.
type Scorer interface {
	Score(query, candidate []float32) float64
}

// CosineScorer is the default scorer. Mismatched or zero-magnitude vectors
// score 0 instead of erroring so one bad row never sinks a query.
type CosineScorer struct{}

func NewCosineScorer() *CosineScorer {
	return &CosineScorer{}
}

func (CosineScorer) Score(query, candidate []float32) float64 {
	if len(query) == 0 || len(query) != len(candidate) {
		return 0
	}
	var dot, normQ, normC float64
	for i := range query {
		dot += float64(query[i]) * float64(candidate[i])
		normQ += float64(query[i]) * float64(query[i])
		normC += float64(candidate[i]) * float64(candidate[i])
	}
	if normQ <= 0 || normC <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normQ) * math.Sqrt(normC))
}
