package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestMurmurError_Error(t *testing.T) {
	err := &MurmurError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "record not found",
	}

	expected := "NOT_FOUND: record not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("comments are required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "comments are required" {
		t.Errorf("Message = %q, want %q", err.Message, "comments are required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("comment_buffer")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["key"] != "comment_buffer" {
		t.Errorf("Details[key] = %v, want %q", err.Details["key"], "comment_buffer")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/seed.jsonl")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["path"] != "/tmp/seed.jsonl" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/tmp/seed.jsonl")
	}
}

func TestNewGeneratorExhausted(t *testing.T) {
	cause := fmt.Errorf("rate limited")
	err := NewGeneratorExhausted(5, cause)

	if err.Code != ErrGeneratorExhausted {
		t.Errorf("Code = %q, want %q", err.Code, ErrGeneratorExhausted)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Details["attempts"] != 5 {
		t.Errorf("Details[attempts] = %v, want 5", err.Details["attempts"])
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestNewPage(t *testing.T) {
	err := NewPage("navigate", fmt.Errorf("timeout"))

	if err.Code != ErrPage {
		t.Errorf("Code = %q, want %q", err.Code, ErrPage)
	}
	if err.Message != "navigate failed: timeout" {
		t.Errorf("Message = %q, want %q", err.Message, "navigate failed: timeout")
	}
}

func TestNewStorage(t *testing.T) {
	err := NewStorage("save record", nil)

	if err.Code != ErrStorage {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorage)
	}
	if err.Message != "save record failed" {
		t.Errorf("Message = %q, want %q", err.Message, "save record failed")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("database connection failed"))

	if err.Code != ErrInternal {
		t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
	}
	if err.Message != "database connection failed" {
		t.Errorf("Message = %q, want %q", err.Message, "database connection failed")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("cycle: %w", NewGeneratorExhausted(3, nil)), ErrGeneratorExhausted, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
