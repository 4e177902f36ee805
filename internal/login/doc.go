// Package login drives the engine's authorization sequence.
//
// The engine reports its authorization state through updates. Machine reacts
// to each state by issuing the request the engine is waiting for: the login
// key (phone number or bot token), the one-time code, and the cloud password.
// Values come from the Credentials given to Request, falling back to a
// CredentialProvider for anything missing. The machine itself performs no
// I/O; the prompt package supplies an interactive provider.
//
// # Ordering
//
// States are ranked and the machine only moves forward:
//
//	WaitTdlibParameters < WaitEncryptionKey < WaitPhoneNumber < WaitCode
//	  < WaitPassword < Ready < LoggingOut < Closing < Closed
//
// A state ranked at or below the current one is ignored until Reset. The
// terminal states Closed and LoggingOut always stop the session, whether or
// not a login is in progress. Closing is recorded only; the engine follows it
// with Closed.
//
// # Failure
//
// Any failed request aborts the session through the stop callback, as does
// WaitPhoneNumber when no login was requested (ErrLoginRequired).
package login
