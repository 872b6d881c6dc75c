// Package errors holds the one typed, sentinel-style error pkg/store raises
// against its FileStore's DataRecord index: a tombstone or lookup request
// for an id the B+Tree never saw.
package errors

import (
	"fmt"
)

// IndexNotFoundError is returned when a record id has no entry in a
// FileStore's offset index, e.g. a delete targeting an id that was never
// persisted.
type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}
