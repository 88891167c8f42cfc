package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeParseError, "bad dataset")
		expected := "[PARSE_ERROR] bad dataset: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeNoPath, "no path")
		if !IsCode(err, CodeNoPath) {
			t.Error("expected IsCode to return true for CodeNoPath")
		}
		if IsCode(err, CodeUnbounded) {
			t.Error("expected no-path and unbounded to stay distinct")
		}
	})

	t.Run("CodeOfThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("cut-header: %w", New(CodeUnbounded, "all protected"))
		if got := CodeOf(err); got != CodeUnbounded {
			t.Errorf("expected UNBOUNDED, got %q", got)
		}
		if got := CodeOf(errors.New("plain")); got != "" {
			t.Errorf("expected empty code for foreign error, got %q", got)
		}
	})

	t.Run("NotFoundCarriesPath", func(t *testing.T) {
		err := NotFound("base/foo.h")
		expected := "[NOT_FOUND] base/foo.h is not a known file map[path:base/foo.h]"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("AddContextPlainError", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "load")
		if !IsCode(err, CodeInternal) {
			t.Errorf("expected plain errors to become internal, got %v", err)
		}
	})
}
