// Package engine defines the boundary to the external asynchronous engine.
//
// The engine speaks opaque JSON messages. A Client wraps one engine handle:
// Send submits a request, Receive pulls the next emitted event, Execute makes a
// synchronous stateless call and Destroy releases the handle. Implementations
// live in subpackages: tdjson binds the native library, bridge reaches a remote
// engine over gRPC and enginetest provides a scripted engine for tests.
package engine
