package ingestion

import "errors"

// Sentinel errors returned by stage processors. The worker loop routes every
// processor error to the stage's dead-letter queue; these let callers and tests
// tell the causes apart.
var (
	ErrUnsupportedDocument = errors.New("unsupported document")
	ErrMalformedInput      = errors.New("malformed input")
	ErrAlreadyIndexed      = errors.New("index status already exists")
)
