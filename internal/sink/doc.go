// Package sink forwards session updates to external systems.
//
// RedisStream is a session.UpdateHandler that appends every delivered update
// to a Redis stream with XADD, one entry per update holding its type tag and
// raw JSON. An optional type filter limits which updates are written and
// MaxLen caps the stream length approximately.
package sink
