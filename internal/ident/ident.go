// Package ident derives deterministic identifiers for documents and chunks.
//
// Both functions are part of the on-disk contract: artifacts written by earlier
// runs (or by other runtimes) are addressed by these exact digests, so the digest
// input and the lowercase-hex encoding must never change.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DocIDLength is the number of hex characters kept from the source key digest.
const DocIDLength = 24

// DocID returns the first 24 hex characters of sha256(sourceKey).
func DocID(sourceKey string) string {
	sum := sha256.Sum256([]byte(sourceKey))
	return hex.EncodeToString(sum[:])[:DocIDLength]
}

// ChunkID returns the full hex sha256 of "{docID}|{index}|{text}".
func ChunkID(docID string, index int, text string) string {
	payload := docID + "|" + strconv.Itoa(index) + "|" + text
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// UTCNow formats the current time as ISO-8601 UTC, the format used in artifacts
// and dead-letter messages.
func UTCNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
