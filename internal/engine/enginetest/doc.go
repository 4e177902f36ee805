// Package enginetest provides a scripted in-memory engine for tests.
//
// Tests register handlers per request type; a handler can reply to the
// request and push further updates, which is enough to drive the session
// through a full login or to simulate an engine that never answers.
package enginetest
