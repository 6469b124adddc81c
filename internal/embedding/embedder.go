package embedding

import (
	"context"
	"fmt"

	"github.com/maraichr/docpipe/internal/config"
)

// Embedder is the interface for embedding providers.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
	Dimension() int
}

// NewEmbedder returns the configured embedding provider.
func NewEmbedder(cfg config.PipelineConfig) (Embedder, error) {
	if cfg.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.EmbeddingDimension)
	}
	return NewHashEmbedder(cfg.EmbeddingDimension), nil
}
