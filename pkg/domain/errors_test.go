package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConflictError_UnwrapsToSentinel(t *testing.T) {
	var err error = &ConflictError{EntityID: "site-1", PartitionKey: PartitionDraft, Expected: 5, Actual: 6}

	if !errors.Is(err, ErrConflict) {
		t.Error("ConflictError should match ErrConflict")
	}

	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatal("errors.As should find ConflictError")
	}
	if cerr.Actual != 6 {
		t.Errorf("Actual = %d, want 6", cerr.Actual)
	}

	// Wrapping preserves the chain.
	wrapped := fmt.Errorf("save draft: %w", err)
	if !errors.Is(wrapped, ErrConflict) {
		t.Error("wrapped ConflictError should still match ErrConflict")
	}
}

func TestValidationError_UnwrapsToSentinel(t *testing.T) {
	var err error = &ValidationError{Problems: []string{"duplicate component id \"c1\""}}

	if !errors.Is(err, ErrValidationFailed) {
		t.Error("ValidationError should match ErrValidationFailed")
	}
}
