package protocol

import (
	"errors"
	"io"
	"testing"
)

func TestTranscodeErrorMatchesCauseAndKind(t *testing.T) {
	cause := &MalformedFieldError{Field: "varint", Offset: 3, Reason: "truncated"}
	err := error(&TranscodeError{Direction: Clientbound, PacketID: 0x52, Position: 1, Err: cause})

	if !errors.Is(err, ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
	if !errors.Is(err, ErrMalformedField) {
		t.Fatalf("expected ErrMalformedField through cause, got %v", err)
	}
	var mf *MalformedFieldError
	if !errors.As(err, &mf) || mf.Offset != 3 {
		t.Fatalf("expected malformed cause at offset 3, got %v", err)
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("unexpected io.EOF match")
	}
}

func TestErrorKindsAreDistinct(t *testing.T) {
	sv := error(&SchemaViolationError{Path: "value[0]", Reason: "heterogeneous list"})
	up := error(&UnknownPacketError{Direction: Serverbound, PacketID: 7})
	if !errors.Is(sv, ErrSchemaViolation) || errors.Is(sv, ErrUnknownPacketID) {
		t.Fatalf("schema violation kind mismatch: %v", sv)
	}
	if !errors.Is(up, ErrUnknownPacketID) || errors.Is(up, ErrSchemaViolation) {
		t.Fatalf("unknown packet kind mismatch: %v", up)
	}
}

func TestDirectionStringAndReverse(t *testing.T) {
	if Clientbound.String() != "clientbound" || Serverbound.String() != "serverbound" {
		t.Fatalf("unexpected direction names: %s %s", Clientbound, Serverbound)
	}
	if Clientbound.Reverse() != Serverbound || Serverbound.Reverse() != Clientbound {
		t.Fatalf("reverse mismatch")
	}
}
