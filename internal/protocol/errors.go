package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedField  = errors.New("protocol: malformed field")
	ErrTranscode       = errors.New("protocol: transcode failed")
	ErrSchemaViolation = errors.New("protocol: schema violation")
	ErrUnknownPacketID = errors.New("protocol: unknown packet id")

	// ErrCancelled lets a handler cancel its packet by returning it. It is
	// never reported as a failure.
	ErrCancelled = errors.New("protocol: packet cancelled")
)

// MalformedFieldError reports a cursor/byte-length mismatch while decoding or
// a value that cannot be encoded as its declared type.
type MalformedFieldError struct {
	Field  string
	Offset int
	Reason string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("protocol: malformed %s at offset %d: %s", e.Field, e.Offset, e.Reason)
}

func (e *MalformedFieldError) Unwrap() error { return ErrMalformedField }

// TranscodeError is the per-packet failure surfaced to callers. Err carries
// the underlying cause (a MalformedFieldError, a handler error, ...).
type TranscodeError struct {
	Direction Direction
	PacketID  int32
	Position  int
	Err       error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf(
		"protocol: transcode %s packet 0x%02X op=%d: %v",
		e.Direction,
		e.PacketID,
		e.Position,
		e.Err,
	)
}

func (e *TranscodeError) Unwrap() []error { return []error{ErrTranscode, e.Err} }

// SchemaViolationError reports a tree rewrite that would produce an invalid shape.
type SchemaViolationError struct {
	Path   string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("protocol: schema violation: %s", e.Reason)
	}
	return fmt.Sprintf("protocol: schema violation at %s: %s", e.Path, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error { return ErrSchemaViolation }

// UnknownPacketError reports a packet id with no registered descriptor in strict mode.
type UnknownPacketError struct {
	Direction Direction
	PacketID  int32
}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("protocol: no descriptor for %s packet 0x%02X", e.Direction, e.PacketID)
}

func (e *UnknownPacketError) Unwrap() error { return ErrUnknownPacketID }
