package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/askdoc/askdoc/internal/vector"
)

// HashEmbedder is a deterministic offline embedder: each word is hashed
// into one dimension of a bag-of-words vector, which is then normalized.
// Identical texts embed identically and texts sharing words score a high
// cosine similarity, which is all similarity-search tests need.
type HashEmbedder struct{}

// Embed returns one normalized bag-of-words vector per input text.
func (HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}
	return out, nil
}

func embedText(text string) []float32 {
	v := make([]float32, vector.Dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%vector.Dimension]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// A vector of zeros has no direction; give empty text a fixed one.
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
