// Package testutil provides deterministic test doubles for the
// indexing and retrieval pipeline.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// EmbeddingDim is the dimensionality of test embeddings. Small enough
// to be cheap, large enough that unrelated texts rarely collide.
const EmbeddingDim = 64

// EmbeddingFunc returns a deterministic bag-of-words embedder. Each
// token is hashed into one of EmbeddingDim buckets and counted, then
// the vector is L2-normalized, so texts sharing vocabulary score higher
// cosine similarity than unrelated ones. No network, no randomness.
func EmbeddingFunc() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		return Embed(text), nil
	}
}

// Embed computes the deterministic test embedding for text.
func Embed(text string) []float32 {
	vec := make([]float32, EmbeddingDim)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%EmbeddingDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Whitespace-only input still needs a valid unit vector.
		vec[0] = 1
		return vec
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
