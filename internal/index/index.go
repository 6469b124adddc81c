// Package index defines the vector index the index_weaviate stage writes to.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ClassName is the collection every chunk is stored in.
const ClassName = "DocumentChunk"

// Object is one chunk with its vector and searchable properties.
type Object struct {
	ChunkID           string
	DocID             string
	ChunkText         string
	SourceKey         string
	SecurityClearance string
	Vector            []float32
}

// VectorIndex stores chunk vectors keyed by a UUID derived from the chunk id, so
// repeated upserts of the same chunk overwrite rather than duplicate.
type VectorIndex interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, obj Object) error
	Backend() string
	Close()
}

// ObjectID derives the stable object UUID for chunkID: its first 32 hex
// characters (right-padded with zeros) in 8-4-4-4-12 form.
func ObjectID(chunkID string) (uuid.UUID, error) {
	hex := strings.ReplaceAll(chunkID, "-", "")
	if len(hex) > 32 {
		hex = hex[:32]
	}
	hex += strings.Repeat("0", 32-len(hex))
	id, err := uuid.Parse(hex[0:8] + "-" + hex[8:12] + "-" + hex[12:16] + "-" + hex[16:20] + "-" + hex[20:32])
	if err != nil {
		return uuid.Nil, fmt.Errorf("derive object id from chunk %q: %w", chunkID, err)
	}
	return id, nil
}
