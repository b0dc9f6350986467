package core

import (
	"errors"

	"github.com/dosco/docfind/core/internal/docpath"
)

// ErrInvalidPath is wrapped by every path validation failure.
var ErrInvalidPath = docpath.ErrInvalid

// PathError describes a malformed dotted or wildcard path.
type PathError = docpath.Error

var (
	ErrEmptyCollection = errors.New("filter has no collection")
	ErrMaxDepth        = errors.New("include depth limit exceeded")
)

// ValidatePath checks a dotted path the way the engine does before using it
// for projection or extraction.
func ValidatePath(path string) error {
	return docpath.Validate(path)
}

var errNilStore = errors.New("store is required")
