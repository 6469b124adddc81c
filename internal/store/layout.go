package store

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// Bucket prefixes, one per pipeline stage plus bookkeeping folders.
const (
	PrefixIncoming   = "01_incoming/"
	PrefixRaw        = "02_raw/"
	PrefixProcessed  = "03_processed/"
	PrefixChunks     = "04_chunks/"
	PrefixEmbeddings = "05_embeddings/"
	PrefixIndexes    = "06_indexes/"
	PrefixMetadata   = "07_metadata/"
	PrefixEvals      = "08_evals/"
	PrefixTmp        = "09_tmp/"

	PrefixManifest = PrefixMetadata + "manifest/"
)

// Artifact suffixes.
const (
	SuffixProcessed  = ".json"
	SuffixChunks     = ".chunks.json"
	SuffixEmbeddings = ".embeddings.json"
	SuffixIndexed    = ".indexed.json"
)

// Folders lists every prefix Bootstrap creates, in pipeline order.
var Folders = []string{
	PrefixIncoming, PrefixRaw, PrefixProcessed, PrefixChunks, PrefixEmbeddings,
	PrefixIndexes, PrefixMetadata, PrefixEvals, PrefixTmp,
}

func ProcessedKey(docID string) string  { return PrefixProcessed + docID + SuffixProcessed }
func ChunksKey(docID string) string     { return PrefixChunks + docID + SuffixChunks }
func EmbeddingsKey(docID string) string { return PrefixEmbeddings + docID + SuffixEmbeddings }
func IndexedKey(docID string) string    { return PrefixIndexes + docID + SuffixIndexed }
func ManifestKey(docID string) string   { return PrefixManifest + docID + ".json" }

// DocIDFromKey strips prefix and suffix from an artifact key. ok is false when
// key does not have that shape.
func DocIDFromKey(key, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// IsMarker reports whether key is a zero-byte folder marker.
func IsMarker(key string) bool {
	return strings.HasSuffix(key, "/")
}

// HasExtension reports whether key ends in one of exts (compared case-insensitively).
func HasExtension(key string, exts []string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Bootstrap creates bucket if missing and writes a zero-byte marker for every
// folder that does not exist yet. It is safe to run repeatedly.
func Bootstrap(ctx context.Context, s ObjectStore, bucket string, logger *slog.Logger) error {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.CreateBucket(ctx, bucket); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("bucket created", slog.String("bucket", bucket))
	}

	for _, folder := range Folders {
		ok, err := s.ObjectExists(ctx, bucket, folder)
		if err != nil {
			return fmt.Errorf("check folder %s: %w", folder, err)
		}
		if ok {
			continue
		}
		if err := s.WriteBytes(ctx, bucket, folder, nil, "application/x-directory"); err != nil {
			return fmt.Errorf("create folder %s: %w", folder, err)
		}
		logger.Info("folder created", slog.String("bucket", bucket), slog.String("folder", folder))
	}
	return nil
}
