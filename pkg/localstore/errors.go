// Package localstore keeps small named values on local disk, the way a
// browser keeps local storage: a flat namespace of string keys whose values
// survive restarts.
package localstore

import "errors"

var (
	// ErrCorrupted indicates a record whose checksum does not match
	ErrCorrupted = errors.New("localstore: corrupted record")

	// ErrTruncated indicates a record cut short, usually by a crash mid-write
	ErrTruncated = errors.New("localstore: truncated record")

	// ErrClosed indicates an operation on a closed store
	ErrClosed = errors.New("localstore: store closed")

	// ErrEmptyKey indicates a write with an empty key
	ErrEmptyKey = errors.New("localstore: empty key")
)
