package webarg

import (
	"errors"
	"strings"
	"testing"
)

func TestReturnValueRoundTrip(t *testing.T) {
	in := ReturnValue{
		ExitReason: ExitCallbackURL,
		LastURL:    "https://example.invalid/done",
	}

	buf, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(buf) != ReturnValueSize {
		t.Fatalf("expected %d bytes, got %d", ReturnValueSize, len(buf))
	}

	out, err := DecodeReturnValue(buf)
	if err != nil {
		t.Fatalf("DecodeReturnValue failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestReturnValueEmptyURL(t *testing.T) {
	buf, err := ReturnValue{ExitReason: ExitEndButtonPressed}.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	out, err := DecodeReturnValue(buf)
	if err != nil {
		t.Fatalf("DecodeReturnValue failed: %v", err)
	}
	if out.LastURL != "" {
		t.Errorf("expected empty URL, got %q", out.LastURL)
	}
}

func TestReturnValueURLAtCapacity(t *testing.T) {
	url := strings.Repeat("a", LastURLCapacity)
	if _, err := (ReturnValue{LastURL: url}).Encode(); err != nil {
		t.Errorf("URL at capacity must encode, got %v", err)
	}
}

func TestReturnValueURLTooLong(t *testing.T) {
	url := strings.Repeat("a", LastURLCapacity+1)
	_, err := ReturnValue{LastURL: url}.Encode()
	if !errors.Is(err, ErrURLTooLong) {
		t.Fatalf("expected ErrURLTooLong, got %v", err)
	}
}

func TestDecodeReturnValueShort(t *testing.T) {
	if _, err := DecodeReturnValue(make([]byte, ReturnValueSize-1)); !errors.Is(err, ErrMalformedArgument) {
		t.Fatalf("expected ErrMalformedArgument, got %v", err)
	}
}
