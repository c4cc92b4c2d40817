package diskspace

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestCheckAvailableSpace(t *testing.T) {
	target := filepath.Join(t.TempDir(), "layout.json")

	tests := []struct {
		name     string
		required int64
		margin   float64
		wantErr  bool
	}{
		{"zero bytes", 0, 1.1, false},
		{"small entry", 4096, 1.1, false},
		{"margin below one", 4096, 0.5, false},
		{"exabyte", 1 << 60, 1.1, true},
	}

	if GetAvailableSpace(target) == 0 {
		t.Skip("filesystem does not report free space")
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAvailableSpace(target, tt.required, tt.margin)
			if tt.wantErr {
				if !IsInsufficientSpaceError(err) {
					t.Fatalf("expected InsufficientSpaceError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckAvailableSpace_MissingParent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "absent", "deeper", "file")
	if err := CheckAvailableSpace(target, 1<<60, 1.1); err != nil {
		t.Errorf("unqueryable path should pass, got %v", err)
	}
	if got := GetAvailableSpace(target); got != 0 {
		t.Errorf("GetAvailableSpace = %d, want 0", got)
	}
}

func TestInsufficientSpaceError(t *testing.T) {
	err := &InsufficientSpaceError{Path: "/cache/x", RequiredBytes: 3 << 20, AvailableBytes: 1 << 20}
	want := "insufficient disk space for /cache/x: need 3.00 MB, have 1.00 MB available"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("save: %w", err)
	if !IsInsufficientSpaceError(wrapped) {
		t.Error("wrapped error should be detected")
	}
	if IsInsufficientSpaceError(fmt.Errorf("other")) {
		t.Error("unrelated error detected as insufficient space")
	}
}
