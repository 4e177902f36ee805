// Package tderr resolves engine error responses into typed errors.
//
// An engine error is a (code, message) pair. Digit runs following an
// underscore are replaced by "X" to form a pattern ("FLOOD_WAIT_35" becomes
// "FLOOD_WAIT_X"), and the (code, pattern) pair is looked up in a static table
// of kinds. The 429 "retry after N" text has its own pattern. The first digit
// run is kept as Error.Value.
//
// Kinds are comparable with errors.Is:
//
//	if errors.Is(err, tderr.PhoneNumberInvalid) { ... }
//
// Pairs missing from the table resolve to the Unknown kind with the engine's
// code and message intact. The Resolver hands them to its Recorder for triage.
package tderr
