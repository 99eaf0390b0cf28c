package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/backwire/internal/testutil/testlog"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Frame{ID: 0x52, Body: []byte{0x01, 0xFF}}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x03, 0x52, 0x01, 0xFF}) {
		t.Fatalf("unexpected wire bytes: %x", buf.Bytes())
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.ID != in.ID || !bytes.Equal(out.Body, in.Body) {
		t.Fatalf("frame mismatch: got=%+v want=%+v", out, in)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameShortBodyIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{0x05, 0x01, 0x02}), DefaultLimits())
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	_, err = ReadFrame(bytes.NewReader([]byte{0x80}), DefaultLimits())
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame for split prefix, got %v", err)
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxFrameBytes: 4}
	_, err := ReadFrame(bytes.NewReader([]byte{0x05, 1, 2, 3, 4, 5}), limits)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	err = WriteFrame(io.Discard, Frame{ID: 1, Body: make([]byte, 4)}, limits)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge on write, got %v", err)
	}
}

func TestReadFrameRejectsZeroLengthAndLongPrefix(t *testing.T) {
	testlog.Start(t)
	if _, err := ReadFrame(bytes.NewReader([]byte{0x00}), DefaultLimits()); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	prefix := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := ReadFrame(bytes.NewReader(prefix), DefaultLimits()); !errors.Is(err, ErrVarIntTooLarge) {
		t.Fatalf("expected ErrVarIntTooLarge, got %v", err)
	}
}
