// Package embed defines the embedding provider boundary.
package embed

import (
	"context"
	"errors"
)

// ErrBlankInput is returned when embedding is requested for empty or
// whitespace-only text. The pipeline must never make such a call.
var ErrBlankInput = errors.New("embed: input text cannot be blank")

// Embedder derives a fixed-length float vector from text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
