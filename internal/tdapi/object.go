// ABOUTME: Object interface, type registry and wire marshalling for engine messages.
// ABOUTME: Unregistered tags decode to Unknown; Marshal injects @type and @extra.

package tdapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// Object is a decoded engine message.
type Object interface {
	Type() string
}

// Unknown holds a message whose tag has no registered constructor.
type Unknown struct {
	TypeTag string
	Raw     json.RawMessage
}

// Type implements Object.
func (u *Unknown) Type() string { return u.TypeTag }

// Registry maps type tags to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func() Object
}

// NewRegistry returns a registry preloaded with the core message types.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]func() Object)}
	registerCore(r)
	return r
}

// Register adds or replaces the constructor for a tag.
func (r *Registry) Register(typ string, ctor func() Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[typ] = ctor
}

// Decode turns an envelope into a typed Object.
func (r *Registry) Decode(env *Envelope) (Object, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[env.Type]
	r.mu.RUnlock()

	if !ok {
		return &Unknown{TypeTag: env.Type, Raw: env.Raw}, nil
	}

	obj := ctor()
	if err := json.Unmarshal(env.Raw, obj); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Type, err)
	}
	return obj, nil
}

// DecodeBytes decodes a raw message in one step.
func (r *Registry) DecodeBytes(data []byte) (Object, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return r.Decode(env)
}

// Marshal encodes obj for the engine, adding "@extra" when extra is set.
func Marshal(obj Object, extra string) ([]byte, error) {
	var body []byte
	if u, ok := obj.(*Unknown); ok {
		body = u.Raw
	} else {
		var err error
		if body, err = json.Marshal(obj); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", obj.Type(), err)
		}
	}
	fields, err := objectFields(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", obj.Type(), err)
	}
	return encodeFields(fields, obj.Type(), extra)
}

// typed marshals v with its "@type". Nested objects call it from MarshalJSON.
func typed(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(body)
	if err != nil {
		return nil, err
	}
	return encodeFields(fields, typ, "")
}

func objectFields(body []byte) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return fields, nil
}

func encodeFields(fields map[string]json.RawMessage, typ, extra string) ([]byte, error) {
	delete(fields, "@extra")
	fields["@type"] = quote(typ)
	if extra != "" {
		fields["@extra"] = quote(extra)
	}
	return json.Marshal(fields)
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
