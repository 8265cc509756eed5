package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidYAML indicates the file is not parseable YAML.
	ErrInvalidYAML = errors.New("invalid schedule YAML")

	// ErrUnsafeTag indicates the YAML carries a non-safe custom tag.
	ErrUnsafeTag = errors.New("schedule YAML contains unsafe tag")

	// ErrFileTooLarge indicates the schedule file exceeds the size cap.
	ErrFileTooLarge = errors.New("schedule file exceeds size limit")

	// ErrScheduleNotFound indicates no YAML file exists for the channel.
	// Recoverable: callers fall back to the DB-defined schedule.
	ErrScheduleNotFound = errors.New("schedule file not found")
)

// MalformedDirectiveError reports an op the parser could not understand.
// Parsing continues past it.
type MalformedDirectiveError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e MalformedDirectiveError) Error() string {
	return fmt.Sprintf("malformed schedule directive at %s: %s", e.Path, e.Reason)
}
