package models

// Stage names as they appear in manifests, lineage job names and queue contracts.
const (
	StageScan          = "scan"
	StageParseDocument = "parse_document"
	StageChunkText     = "chunk_text"
	StageEmbedChunks   = "embed_chunks"
	StageIndexWeaviate = "index_weaviate"
)

// ProcessedDocument is the parse stage artifact stored at {processed}/{doc_id}.json.
type ProcessedDocument struct {
	DocID             string `json:"doc_id"`
	SourceKey         string `json:"source_key"`
	SourceType        string `json:"source_type"`
	Timestamp         string `json:"timestamp"`
	SecurityClearance string `json:"security_clearance"`
	Title             string `json:"title"`
	Text              string `json:"text"`
}

// ChunkRecord is one element of the chunk stage artifact ({chunks}/{doc_id}.chunks.json).
type ChunkRecord struct {
	ChunkID           string `json:"chunk_id"`
	DocID             string `json:"doc_id"`
	ChunkIndex        int    `json:"chunk_index"`
	ChunkText         string `json:"chunk_text"`
	SourceType        string `json:"source_type"`
	Timestamp         string `json:"timestamp"`
	SecurityClearance string `json:"security_clearance"`
	SourceKey         string `json:"source_key"`
}

// EmbeddingMetadata is denormalized from the chunk so indexing never joins back to it.
type EmbeddingMetadata struct {
	DocID             string `json:"doc_id"`
	ChunkIndex        int    `json:"chunk_index"`
	ChunkText         string `json:"chunk_text"`
	SourceKey         string `json:"source_key"`
	SourceType        string `json:"source_type"`
	SecurityClearance string `json:"security_clearance"`
	Timestamp         string `json:"timestamp"`
}

// EmbeddingRecord is one element of the embed stage artifact.
type EmbeddingRecord struct {
	ChunkID  string            `json:"chunk_id"`
	Vector   []float32         `json:"vector"`
	Metadata EmbeddingMetadata `json:"metadata"`
}

// IndexStatus is the terminal artifact written once a document's embeddings are upserted.
type IndexStatus struct {
	DocID      string `json:"doc_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Backend    string `json:"backend"`
	IndexedAt  string `json:"indexed_at"`
}

// ManifestStatus is a derived per-document view of stage completion. The authoritative
// state is whether each artifact object exists. Fields are declared in sorted key
// order so the encoded manifest has sorted keys.
type ManifestStatus struct {
	Attempts  int             `json:"attempts"`
	DocID     string          `json:"doc_id"`
	LastError *string         `json:"last_error"`
	Stages    map[string]bool `json:"stages"`
}

// Complete reports whether every tracked stage has produced its artifact.
func (m ManifestStatus) Complete() bool {
	for _, done := range m.Stages {
		if !done {
			return false
		}
	}
	return len(m.Stages) > 0
}
