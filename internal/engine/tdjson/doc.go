// Package tdjson binds the native libtdjson client.
//
// The binding is compiled only with the "tdjson" build tag and requires the
// library and its headers at build time. Without the tag, New returns
// ErrUnavailable so the rest of the program still builds and can use a
// remote engine through the bridge package instead.
package tdjson
