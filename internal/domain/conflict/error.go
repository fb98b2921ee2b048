package conflict

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("conflict not found")
	ErrInvalidStrategy  = errors.New("invalid resolution strategy")
	ErrUnmergeable      = errors.New("changes cannot be merged automatically")
	ErrMergeUnsupported = errors.New("merge is not available for this conflict")
	ErrInvalidMerged    = errors.New("merged payload must be a JSON object")
)

// MergeError lists the fields changed on both sides that could not be combined.
type MergeError struct {
	Fields []string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnmergeable, strings.Join(e.Fields, ", "))
}

func (e *MergeError) Is(target error) bool {
	return target == ErrUnmergeable
}
