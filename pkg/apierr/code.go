package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeInternalError  Code = "INTERNAL_ERROR"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
)

// Document errors.
const (
	CodeInvalidDocID     Code = "INVALID_DOC_ID"
	CodeDocumentNotFound Code = "DOCUMENT_NOT_FOUND"
	CodeManifestFailed   Code = "MANIFEST_FAILED"
)

// Queue errors.
const (
	CodeUnknownStage       Code = "UNKNOWN_STAGE"
	CodeStageNotRedrivable Code = "STAGE_NOT_REDRIVABLE"
	CodeInvalidLimit       Code = "INVALID_LIMIT"
	CodeRedriveFailed      Code = "REDRIVE_FAILED"
)

// Observability errors.
const (
	CodeMetricsFailed      Code = "METRICS_FAILED"
	CodeInvalidDatasetURI  Code = "INVALID_DATASET_URI"
	CodeLineageQueryFailed Code = "LINEAGE_QUERY_FAILED"
)

// Health errors.
const (
	CodeDependencyNotReady Code = "DEPENDENCY_NOT_READY"
)
