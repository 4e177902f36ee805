// ABOUTME: Placeholder used when the binary is built without libtdjson.
// ABOUTME: New always fails with ErrUnavailable.

//go:build !tdjson

package tdjson

import "github.com/2389/tdsession/internal/engine"

// New reports that the native engine is not compiled in.
func New() (engine.Client, error) {
	return nil, ErrUnavailable
}

// Factory returns New as an engine.Factory.
func Factory() engine.Factory {
	return New
}
