package catalog

import (
	"errors"
	"fmt"
)

// Errors returned while loading catalog sources.
var (
	// ErrInvalidJSON indicates a catalog document is not valid JSON.
	ErrInvalidJSON = errors.New("invalid catalog json")

	// ErrInvalidSchema indicates a catalog document has the wrong structure.
	ErrInvalidSchema = errors.New("invalid component schema")

	// ErrNotLoaded indicates the catalog has not finished loading.
	ErrNotLoaded = errors.New("catalog not loaded")

	// ErrScript indicates a Lua catalog script failed.
	ErrScript = errors.New("catalog script failed")
)

// SourceError wraps a failure to read one catalog source.
type SourceError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("catalog source %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}
