// Package embed turns chunk text into fixed-width vectors.
package embed

import "context"

// Embedder maps text to a fixed-length vector. The model itself is opaque;
// callers only rely on the dimension being stable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dim() int
}
