package codec

import (
	"encoding/gob"
	"fmt"
	"io"
)

// GobSerializer implements Serializer using encoding/gob.
//
// Values are encoded as a gob interface value, so concrete payload types
// must be registered (once, at startup) with Register before they can
// round-trip through a broadcast.
type GobSerializer struct{}

// NewGobSerializer returns a gob-backed Serializer.
func NewGobSerializer() *GobSerializer {
	return &GobSerializer{}
}

// Register records a concrete payload type with the gob registry.
// Builtins such as string, int64, and []byte need no registration.
func Register(value any) {
	gob.Register(value)
}

// Encode writes one value to w.
func (s *GobSerializer) Encode(w io.Writer, value any) error {
	wrapper := payloadEnvelope{Value: value}
	if err := gob.NewEncoder(w).Encode(&wrapper); err != nil {
		return fmt.Errorf("gob encode failed: %w", err)
	}
	return nil
}

// Decode reads one value from r.
func (s *GobSerializer) Decode(r io.Reader) (any, error) {
	var wrapper payloadEnvelope
	if err := gob.NewDecoder(r).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("gob decode failed: %w", err)
	}
	return wrapper.Value, nil
}

// payloadEnvelope lets gob carry payloads of any registered type through a
// single interface field.
type payloadEnvelope struct {
	Value any
}

var _ Serializer = (*GobSerializer)(nil)
