// ABOUTME: Envelope decoding for raw engine events.
// ABOUTME: Extracts the type tag, correlation field and nested auth state in one pass.

package tdapi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/tdsession/internal/msgid"
)

// ErrMissingType is returned for messages without an "@type" field.
var ErrMissingType = errors.New("message has no @type")

// Envelope is one undecoded engine message.
type Envelope struct {
	Type      string
	Extra     string
	StateType string
	Raw       json.RawMessage
}

type header struct {
	Type               string          `json:"@type"`
	Extra              json.RawMessage `json:"@extra"`
	AuthorizationState *struct {
		Type string `json:"@type"`
	} `json:"authorization_state"`
}

// DecodeEnvelope parses the routing fields of a raw engine message.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if h.Type == "" {
		return nil, ErrMissingType
	}

	env := &Envelope{
		Type:  h.Type,
		Extra: extraString(h.Extra),
		Raw:   json.RawMessage(data),
	}
	if h.AuthorizationState != nil {
		env.StateType = h.AuthorizationState.Type
	}
	return env, nil
}

// extraString normalizes "@extra" to text. Strings are unquoted and numbers
// keep their literal form; anything else is not a correlation id.
func extraString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// CorrelationID returns the id carried in "@extra", if it parses as one.
func (e *Envelope) CorrelationID() (msgid.ID, bool) {
	if e.Extra == "" {
		return 0, false
	}
	id, err := msgid.Parse(e.Extra)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LifecycleState returns the authorization state tag carried by the envelope,
// either as a bare state object or nested in updateAuthorizationState.
func (e *Envelope) LifecycleState() string {
	if e.Type == TypeUpdateAuthorizationState {
		return e.StateType
	}
	if isAuthorizationStateType(e.Type) {
		return e.Type
	}
	return ""
}
