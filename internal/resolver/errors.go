package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSource indicates the URL matches no known source.
	ErrUnsupportedSource = errors.New("unsupported media source")

	// ErrAuthRequired indicates the source needs credentials that are
	// not configured.
	ErrAuthRequired = errors.New("source requires authentication")
)

// ResolutionError reports an upstream failure with its HTTP status.
type ResolutionError struct {
	Status int
	URL    string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed with status %d for %s", e.Status, e.URL)
}
