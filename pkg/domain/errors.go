package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no snapshot exists for the requested
// entity, partition or sequence. "No published version yet" is a normal
// state, not an alarm condition.
var ErrNotFound = errors.New("snapshot not found")

// ErrConflict is returned when an optimistic save loses the race: the
// stored sequence no longer matches the writer's expectation. Recoverable
// by reload-and-retry.
var ErrConflict = errors.New("sequence conflict")

// ErrTemplateNotFound is returned when a component template name is not
// registered in the library.
var ErrTemplateNotFound = errors.New("template not found")

// ErrValidationFailed is returned when a snapshot fails structural
// validation before publish.
var ErrValidationFailed = errors.New("validation failed")

// ErrStorageUnavailable is returned when the Persister's backing store
// could not be reached. Transient; callers retry with backoff. Never
// silently treated as ErrNotFound.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ConflictError reports a failed optimistic save, carrying the sequence
// the store actually holds so callers can rebase their edit.
type ConflictError struct {
	EntityID     string
	PartitionKey string
	Expected     uint64
	Actual       uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sequence conflict on %s/%s: expected previous sequence %d, store has %d",
		e.EntityID, e.PartitionKey, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError aggregates the structural problems found in a snapshot.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
