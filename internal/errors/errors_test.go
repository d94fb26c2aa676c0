package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError(t *testing.T) {
	err := New("TEST_001", "test error")

	if err.Code != "TEST_001" {
		t.Errorf("expected code TEST_001, got %s", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", err.Message)
	}
}

func TestAppErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := New("TEST_001", "test error", cause)

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "underlying error") {
		t.Errorf("expected error string to contain cause, got %s", errStr)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := New("TEST_001", "test error", cause)

	if err.Unwrap() != cause {
		t.Errorf("expected unwrap to return cause")
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("expected errors.Is to reach the cause")
	}
}

func TestAppErrorIsMatchesCode(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("no digits"), ErrNoCarnet.Code, "reading agenda.pdf")
	outer := fmt.Errorf("import: %w", wrapped)

	if !stderrors.Is(outer, ErrNoCarnet) {
		t.Error("expected wrapped error to match ErrNoCarnet")
	}
	if stderrors.Is(outer, ErrCarnetMismatch) {
		t.Error("did not expect wrapped error to match ErrCarnetMismatch")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := New("TEST_001", "test error")
	stdErr := fmt.Errorf("standard error")

	if !IsAppError(appErr) {
		t.Error("expected IsAppError to return true for AppError")
	}
	if IsAppError(stdErr) {
		t.Error("expected IsAppError to return false for standard error")
	}
}

func TestGetCode(t *testing.T) {
	appErr := New("TEST_001", "test error")
	stdErr := fmt.Errorf("standard error")

	if GetCode(appErr) != "TEST_001" {
		t.Errorf("expected code TEST_001, got %s", GetCode(appErr))
	}
	if GetCode(stdErr) != "UNKNOWN" {
		t.Errorf("expected code UNKNOWN for standard error, got %s", GetCode(stdErr))
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *AppError
		code string
	}{
		{ErrConfigInvalid, "CONFIG_002"},
		{ErrNoCarnet, "DOC_001"},
		{ErrCarnetMismatch, "DOC_002"},
		{ErrNotPDF, "DOC_003"},
		{ErrProfileRequired, "PROFILE_001"},
		{ErrUnparseableDateTime, "AGENDA_001"},
		{ErrAppointmentNotFound, "AGENDA_002"},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
		}
	}
}
