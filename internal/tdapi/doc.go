// Package tdapi is the message layer between the session core and the engine.
//
// # Envelope
//
// Every engine message is a JSON object with an "@type" discriminator.
// DecodeEnvelope reads only what routing needs:
//
//   - Type: the "@type" tag
//   - Extra: the "@extra" correlation field, if any
//   - StateType: the nested authorization state tag of updateAuthorizationState
//
// The full payload stays in Envelope.Raw until a worker decodes it.
//
// # Objects
//
// Object is the decoded form. Registry maps type tags to constructors; tags
// without a constructor decode to *Unknown so nothing is lost. Marshal writes
// an Object back to the wire with "@type" and an optional "@extra".
//
// Only the messages the session core itself sends or inspects are modelled
// here (parameters, authentication, logging, errors and authorization states).
// Applications register their own types on a Registry.
//
// # Authorization states
//
// AuthorizationState is a closed set of variants. Engine states outside the
// set decode to AuthorizationStateOther.
package tdapi
