package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// HashEmbedder derives a deterministic pseudo-embedding from the SHA-256 digest of
// the text. Byte i%32 of the digest maps to component i as (b/255)*2-1, so every
// component lies in [-1, 1]. It carries no semantic signal.
type HashEmbedder struct {
	dimension int
}

var _ Embedder = (*HashEmbedder)(nil)

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) ModelID() string {
	return fmt.Sprintf("sha256-pseudo-%d", h.dimension)
}

func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed returns the vector for one text.
func (h *HashEmbedder) Embed(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, h.dimension)
	for i := range vec {
		b := digest[i%len(digest)]
		vec[i] = float32(float64(b)/255.0*2.0 - 1.0)
	}
	return vec
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.Embed(t)
	}
	return out, nil
}
