package apierr

import "net/http"

// --- Common ---

func InvalidRequest(detail string) *Error {
	return New(CodeInvalidRequest, http.StatusBadRequest, detail)
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

func NotImplemented(feature string) *Error {
	return New(CodeNotImplemented, http.StatusNotImplemented, feature+" is not configured")
}

// --- Document ---

func InvalidDocID() *Error {
	return New(CodeInvalidDocID, http.StatusBadRequest, "doc_id must be 24 lowercase hex characters")
}

func DocumentNotFound() *Error {
	return New(CodeDocumentNotFound, http.StatusNotFound, "Document not found")
}

func ManifestFailed(cause error) *Error {
	return Wrap(CodeManifestFailed, http.StatusInternalServerError, "Failed to build manifest", cause)
}

// --- Queue ---

func UnknownStage(stage string) *Error {
	return New(CodeUnknownStage, http.StatusBadRequest, "Unknown stage "+stage).With("stage", stage)
}

func StageNotRedrivable(stage string) *Error {
	return New(CodeStageNotRedrivable, http.StatusConflict, "Stage "+stage+" has no queue to redrive into").With("stage", stage)
}

func InvalidLimit() *Error {
	return New(CodeInvalidLimit, http.StatusBadRequest, "limit must be a non-negative integer")
}

func RedriveFailed(cause error) *Error {
	return Wrap(CodeRedriveFailed, http.StatusInternalServerError, "Dead-letter redrive failed", cause)
}

// --- Observability ---

func MetricsFailed(cause error) *Error {
	return Wrap(CodeMetricsFailed, http.StatusInternalServerError, "Metrics sweep failed", cause)
}

func InvalidDatasetURI() *Error {
	return New(CodeInvalidDatasetURI, http.StatusBadRequest, "uri must be an s3://bucket/key dataset uri")
}

func LineageQueryFailed(cause error) *Error {
	return Wrap(CodeLineageQueryFailed, http.StatusInternalServerError, "Lineage query failed", cause)
}

// --- Health ---

func DependencyNotReady(name string, cause error) *Error {
	return Wrap(CodeDependencyNotReady, http.StatusServiceUnavailable, name+" not ready", cause).With("dependency", name)
}
