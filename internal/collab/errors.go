// Package collab defines the external collaborator services the workflows
// invoke synchronously: the data catalog, the permission store, and the
// crawl-job runner. All three are black boxes behind these interfaces.
package collab

import "errors"

// ErrAlreadyExists is returned by creation calls when the named resource
// already exists. Workflows treat it as a recoverable conflict, never as
// a failure.
var ErrAlreadyExists = errors.New("resource already exists")

// ErrNotFound is returned when a named resource does not exist.
var ErrNotFound = errors.New("resource not found")

// IsAlreadyExists reports whether err is an idempotency conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
