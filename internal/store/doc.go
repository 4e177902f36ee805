// Package store persists triage data for the session core in SQLite.
//
// # Tables
//
//   - unknown_errors: engine error (code, message) pairs missing from the
//     error table, with their normalized pattern, a hit count and the first
//     and last time they were seen. Filled through tderr.Recorder.
//   - session_events: a journal of session lifecycle events (start, stop,
//     authorization state changes), filled through session.Journal.
//
// # Drivers
//
// SQLiteStore opens either the pure-Go "sqlite" driver (modernc.org/sqlite,
// the default) or, in cgo builds, the "sqlite3" driver from
// github.com/mattn/go-sqlite3. Both use WAL mode and the same schema.
//
//	s, err := store.NewSQLiteStore(path, store.DriverModernc)
//	resolver := tderr.NewResolver(s, logger)
//	ctrl := session.New(factory, cfg, session.Options{Resolver: resolver, Journal: s})
package store
