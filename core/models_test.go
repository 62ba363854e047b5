package core

import (
	"errors"
	"testing"
)

func TestFragmentID(t *testing.T) {
	tests := []struct {
		name       string
		documentID string
		chunk      int
		want       string
	}{
		{name: "first chunk", documentID: "drive_1-item_42", chunk: 0, want: "drive_1-item_42-0"},
		{name: "multi digit chunk", documentID: "d-i", chunk: 17, want: "d-i-17"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FragmentID(tt.documentID, tt.chunk); got != tt.want {
				t.Errorf("FragmentID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndexResult_OK(t *testing.T) {
	tests := []struct {
		name   string
		result IndexResult
		want   bool
	}{
		{name: "present", result: IndexResult{DocumentID: "a", State: IndexStatePresent}, want: true},
		{name: "indexed", result: IndexResult{DocumentID: "a", State: IndexStateIndexed}, want: true},
		{name: "failed", result: IndexResult{DocumentID: "a", State: IndexStateFailed, Err: ErrIndexingTimeout}, want: false},
		{name: "zero value", result: IndexResult{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndexState_String(t *testing.T) {
	if IndexStatePresent.String() != "present" || IndexStateIndexed.String() != "indexed" || IndexStateFailed.String() != "failed" {
		t.Errorf("unexpected state names: %s %s %s", IndexStatePresent, IndexStateIndexed, IndexStateFailed)
	}
}

func TestTypedErrors_Unwrap(t *testing.T) {
	searchErr := error(&RepositorySearchError{StatusCode: 403, Code: "accessDenied", Message: "nope"})
	if !errors.Is(searchErr, ErrRepositorySearch) {
		t.Errorf("RepositorySearchError should unwrap to ErrRepositorySearch")
	}
	var rse *RepositorySearchError
	if !errors.As(searchErr, &rse) || rse.StatusCode != 403 {
		t.Errorf("errors.As failed for RepositorySearchError")
	}

	typeErr := error(&UnsupportedFileTypeError{Extension: ".txt"})
	if !errors.Is(typeErr, ErrUnsupportedFileType) {
		t.Errorf("UnsupportedFileTypeError should unwrap to ErrUnsupportedFileType")
	}
	if typeErr.Error() != `unsupported file type ".txt"` {
		t.Errorf("unexpected message %q", typeErr.Error())
	}
}
