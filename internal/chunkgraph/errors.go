package chunkgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoOwner means no chunk produces the requested file.
	ErrNoOwner = errors.New("no chunk owns asset")
	// ErrAmbiguousOwner means more than one chunk produces the requested file.
	ErrAmbiguousOwner = errors.New("asset owned by more than one chunk")
)

// OwnershipError reports a file whose owning chunk cannot be determined.
type OwnershipError struct {
	File   string
	Owners []string
}

func (e *OwnershipError) Error() string {
	if len(e.Owners) == 0 {
		return fmt.Sprintf("%s: %v", e.File, ErrNoOwner)
	}
	return fmt.Sprintf("%s: %v (%s)", e.File, ErrAmbiguousOwner, strings.Join(e.Owners, ", "))
}

// Unwrap lets errors.Is match ErrNoOwner or ErrAmbiguousOwner.
func (e *OwnershipError) Unwrap() error {
	if len(e.Owners) == 0 {
		return ErrNoOwner
	}
	return ErrAmbiguousOwner
}
