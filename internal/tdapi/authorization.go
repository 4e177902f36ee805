// ABOUTME: Closed variant set for engine authorization states and the state update.
// ABOUTME: Unlisted engine states decode to AuthorizationStateOther.

package tdapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Authorization type tags.
const (
	TypeUpdateAuthorizationState              = "updateAuthorizationState"
	TypeAuthorizationStateWaitTdlibParameters = "authorizationStateWaitTdlibParameters"
	TypeAuthorizationStateWaitEncryptionKey   = "authorizationStateWaitEncryptionKey"
	TypeAuthorizationStateWaitPhoneNumber     = "authorizationStateWaitPhoneNumber"
	TypeAuthorizationStateWaitCode            = "authorizationStateWaitCode"
	TypeAuthorizationStateWaitPassword        = "authorizationStateWaitPassword"
	TypeAuthorizationStateReady               = "authorizationStateReady"
	TypeAuthorizationStateLoggingOut          = "authorizationStateLoggingOut"
	TypeAuthorizationStateClosing             = "authorizationStateClosing"
	TypeAuthorizationStateClosed              = "authorizationStateClosed"
)

func isAuthorizationStateType(t string) bool {
	return strings.HasPrefix(t, "authorizationState")
}

// AuthorizationState is one of the AuthorizationState* types in this package.
type AuthorizationState interface {
	Object
	isAuthorizationState()
}

// AuthorizationStateWaitTdlibParameters asks for setTdlibParameters.
type AuthorizationStateWaitTdlibParameters struct{}

// AuthorizationStateWaitEncryptionKey asks for the database encryption key.
type AuthorizationStateWaitEncryptionKey struct {
	IsEncrypted bool `json:"is_encrypted"`
}

// AuthorizationStateWaitPhoneNumber asks for a phone number or bot token.
type AuthorizationStateWaitPhoneNumber struct{}

// AuthorizationStateWaitCode asks for the one-time login code.
type AuthorizationStateWaitCode struct {
	IsRegistered bool `json:"is_registered"`
}

// AuthorizationStateWaitPassword asks for the two-step verification password.
type AuthorizationStateWaitPassword struct {
	PasswordHint            string `json:"password_hint"`
	HasRecoveryEmailAddress bool   `json:"has_recovery_email_address"`
}

// AuthorizationStateReady means the session is authorized.
type AuthorizationStateReady struct{}

// AuthorizationStateLoggingOut means the user is being logged out.
type AuthorizationStateLoggingOut struct{}

// AuthorizationStateClosing means the engine is closing the session.
type AuthorizationStateClosing struct{}

// AuthorizationStateClosed means the engine session is gone.
type AuthorizationStateClosed struct{}

// AuthorizationStateOther is an engine state this package does not model.
type AuthorizationStateOther struct {
	TypeTag string
	Raw     json.RawMessage
}

func (*AuthorizationStateWaitTdlibParameters) Type() string {
	return TypeAuthorizationStateWaitTdlibParameters
}
func (*AuthorizationStateWaitEncryptionKey) Type() string {
	return TypeAuthorizationStateWaitEncryptionKey
}
func (*AuthorizationStateWaitPhoneNumber) Type() string { return TypeAuthorizationStateWaitPhoneNumber }
func (*AuthorizationStateWaitCode) Type() string        { return TypeAuthorizationStateWaitCode }
func (*AuthorizationStateWaitPassword) Type() string    { return TypeAuthorizationStateWaitPassword }
func (*AuthorizationStateReady) Type() string           { return TypeAuthorizationStateReady }
func (*AuthorizationStateLoggingOut) Type() string      { return TypeAuthorizationStateLoggingOut }
func (*AuthorizationStateClosing) Type() string         { return TypeAuthorizationStateClosing }
func (*AuthorizationStateClosed) Type() string          { return TypeAuthorizationStateClosed }
func (s *AuthorizationStateOther) Type() string         { return s.TypeTag }

func (*AuthorizationStateWaitTdlibParameters) isAuthorizationState() {}
func (*AuthorizationStateWaitEncryptionKey) isAuthorizationState()   {}
func (*AuthorizationStateWaitPhoneNumber) isAuthorizationState()     {}
func (*AuthorizationStateWaitCode) isAuthorizationState()            {}
func (*AuthorizationStateWaitPassword) isAuthorizationState()        {}
func (*AuthorizationStateReady) isAuthorizationState()               {}
func (*AuthorizationStateLoggingOut) isAuthorizationState()          {}
func (*AuthorizationStateClosing) isAuthorizationState()             {}
func (*AuthorizationStateClosed) isAuthorizationState()              {}
func (*AuthorizationStateOther) isAuthorizationState()               {}

func (s AuthorizationStateWaitEncryptionKey) MarshalJSON() ([]byte, error) {
	type plain AuthorizationStateWaitEncryptionKey
	return typed(TypeAuthorizationStateWaitEncryptionKey, plain(s))
}

func (s AuthorizationStateWaitCode) MarshalJSON() ([]byte, error) {
	type plain AuthorizationStateWaitCode
	return typed(TypeAuthorizationStateWaitCode, plain(s))
}

func (s AuthorizationStateWaitPassword) MarshalJSON() ([]byte, error) {
	type plain AuthorizationStateWaitPassword
	return typed(TypeAuthorizationStateWaitPassword, plain(s))
}

func (AuthorizationStateWaitTdlibParameters) MarshalJSON() ([]byte, error) {
	return typed(TypeAuthorizationStateWaitTdlibParameters, struct{}{})
}
func (AuthorizationStateWaitPhoneNumber) MarshalJSON() ([]byte, error) {
	return typed(TypeAuthorizationStateWaitPhoneNumber, struct{}{})
}
func (AuthorizationStateReady) MarshalJSON() ([]byte, error) {
	return typed(TypeAuthorizationStateReady, struct{}{})
}
func (AuthorizationStateLoggingOut) MarshalJSON() ([]byte, error) {
	return typed(TypeAuthorizationStateLoggingOut, struct{}{})
}
func (AuthorizationStateClosing) MarshalJSON() ([]byte, error) {
	return typed(TypeAuthorizationStateClosing, struct{}{})
}
func (AuthorizationStateClosed) MarshalJSON() ([]byte, error) {
	return typed(TypeAuthorizationStateClosed, struct{}{})
}

func (s AuthorizationStateOther) MarshalJSON() ([]byte, error) {
	fields, err := objectFields(s.Raw)
	if err != nil {
		return nil, err
	}
	return encodeFields(fields, s.TypeTag, "")
}

// DecodeAuthorizationState decodes a state object by its "@type".
func DecodeAuthorizationState(data []byte) (AuthorizationState, error) {
	var h struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decoding authorization state: %w", err)
	}

	var st AuthorizationState
	switch h.Type {
	case TypeAuthorizationStateWaitTdlibParameters:
		st = &AuthorizationStateWaitTdlibParameters{}
	case TypeAuthorizationStateWaitEncryptionKey:
		st = &AuthorizationStateWaitEncryptionKey{}
	case TypeAuthorizationStateWaitPhoneNumber:
		st = &AuthorizationStateWaitPhoneNumber{}
	case TypeAuthorizationStateWaitCode:
		st = &AuthorizationStateWaitCode{}
	case TypeAuthorizationStateWaitPassword:
		st = &AuthorizationStateWaitPassword{}
	case TypeAuthorizationStateReady:
		st = &AuthorizationStateReady{}
	case TypeAuthorizationStateLoggingOut:
		st = &AuthorizationStateLoggingOut{}
	case TypeAuthorizationStateClosing:
		st = &AuthorizationStateClosing{}
	case TypeAuthorizationStateClosed:
		st = &AuthorizationStateClosed{}
	case "":
		return nil, ErrMissingType
	default:
		return &AuthorizationStateOther{TypeTag: h.Type, Raw: json.RawMessage(data)}, nil
	}

	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", h.Type, err)
	}
	return st, nil
}

// UpdateAuthorizationState reports a change of the session's authorization state.
type UpdateAuthorizationState struct {
	AuthorizationState AuthorizationState
}

func (*UpdateAuthorizationState) Type() string { return TypeUpdateAuthorizationState }

func (u *UpdateAuthorizationState) UnmarshalJSON(data []byte) error {
	var raw struct {
		State json.RawMessage `json:"authorization_state"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.State) == 0 {
		return errors.New("updateAuthorizationState without authorization_state")
	}
	st, err := DecodeAuthorizationState(raw.State)
	if err != nil {
		return err
	}
	u.AuthorizationState = st
	return nil
}

func (u UpdateAuthorizationState) MarshalJSON() ([]byte, error) {
	return typed(TypeUpdateAuthorizationState, struct {
		State AuthorizationState `json:"authorization_state"`
	}{u.AuthorizationState})
}

// AsAuthorizationState extracts the state from an update or a bare state object.
func AsAuthorizationState(obj Object) (AuthorizationState, bool) {
	switch v := obj.(type) {
	case *UpdateAuthorizationState:
		return v.AuthorizationState, v.AuthorizationState != nil
	case AuthorizationState:
		return v, true
	default:
		return nil, false
	}
}
