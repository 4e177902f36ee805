// ABOUTME: Errors shared by the native binding and its stub.
// ABOUTME: ErrUnavailable signals a build without the tdjson tag.

package tdjson

import "errors"

var (
	// ErrUnavailable is returned when the binary was built without libtdjson.
	ErrUnavailable = errors.New("tdjson: built without the tdjson tag")

	// ErrCreate is returned when the library could not allocate a client.
	ErrCreate = errors.New("tdjson: client creation failed")
)
