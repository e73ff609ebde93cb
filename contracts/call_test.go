package contracts

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeCallPayloadRoundTrip(t *testing.T) {
	payload := EncodeCallPayload("transfer", []byte("args-bytes"))
	name, args, err := DecodeCallPayload(payload)
	if err != nil {
		t.Fatalf("DecodeCallPayload: %v", err)
	}
	if name != "transfer" {
		t.Fatalf("name=%q", name)
	}
	if !bytes.Equal(args, []byte("args-bytes")) {
		t.Fatalf("args=%q", args)
	}
}

func TestDecodeCallPayload_EmptyArgs(t *testing.T) {
	payload := EncodeCallPayload("ping", nil)
	name, args, err := DecodeCallPayload(payload)
	if err != nil {
		t.Fatalf("DecodeCallPayload: %v", err)
	}
	if name != "ping" || len(args) != 0 {
		t.Fatalf("name=%q args=%q", name, args)
	}
}

func TestDecodeCallPayload_TooShort(t *testing.T) {
	if _, _, err := DecodeCallPayload([]byte{0x01}); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestDecodeCallPayload_NameLenExceedsPayload(t *testing.T) {
	payload := []byte{0xff, 0xff}
	if _, _, err := DecodeCallPayload(payload); err == nil {
		t.Fatalf("expected error when name_len exceeds payload")
	}
}

func TestDecodeCallPayload_EmptyName(t *testing.T) {
	payload := EncodeCallPayload("", []byte("x"))
	if _, _, err := DecodeCallPayload(payload); err == nil {
		t.Fatalf("expected error for empty function name")
	}
}
