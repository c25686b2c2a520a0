// Package embed provides a text embedding interface and an OpenAI-backed
// implementation.
//
// An Embedder converts text into a dense vector representation suitable for
// semantic similarity search. For identical input text the output vector is
// deterministic (or numerically stable) per model, so re-embedding a query
// or re-storing identical content is idempotent for similarity purposes.
//
// # Quick Start
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithModel("text-embedding-3-small"))
//	vec, err := e.Embed(ctx, "hello world")
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	// The returned vector always has exactly Dimension() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int

	// Model returns the embedding model identifier.
	Model() string
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")
)
