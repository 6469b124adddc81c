package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/maraichr/docpipe/internal/store"
)

func TestError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("broker down")
	e := RedriveFailed(cause)
	if e.Status() != http.StatusInternalServerError || e.Code() != CodeRedriveFailed {
		t.Errorf("got %d %s", e.Status(), e.Code())
	}
	if !errors.Is(e, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	resp := e.Response()
	if resp.Error.Code != CodeRedriveFailed || resp.Error.Message != "Dead-letter redrive failed" {
		t.Errorf("response = %+v", resp)
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", UnknownStage("summarize"))
	e, ok := As(wrapped)
	if !ok || e.Code() != CodeUnknownStage || e.Status() != http.StatusBadRequest {
		t.Errorf("As = %v, %v", e, ok)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Error("plain error reported as *Error")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("read x: %w", store.ErrNotFound)) {
		t.Error("wrapped ErrNotFound not detected")
	}
	if IsNotFound(errors.New("other")) {
		t.Error("unrelated error detected as not found")
	}
}

func TestError_Details(t *testing.T) {
	base := New(CodeInvalidRequest, http.StatusBadRequest, "bad")
	e := base.With("field", "limit")
	if base.Detail("field") != "" {
		t.Error("With mutated the receiver")
	}
	if e.Detail("field") != "limit" || e.Response().Error.Details["field"] != "limit" {
		t.Errorf("details = %v", e.Response().Error.Details)
	}
	if base.Response().Error.Details != nil {
		t.Error("error without details should omit them")
	}
}

func TestDependencyNotReady(t *testing.T) {
	e := DependencyNotReady("broker", errors.New("dial tcp: refused"))
	if e.Status() != http.StatusServiceUnavailable || !e.Temporary() {
		t.Errorf("status = %d temporary = %v", e.Status(), e.Temporary())
	}
	if e.Detail("dependency") != "broker" || e.Message() != "broker not ready" {
		t.Errorf("got %q %q", e.Detail("dependency"), e.Message())
	}
	if UnknownStage("x").Temporary() {
		t.Error("400 reported as temporary")
	}
}
