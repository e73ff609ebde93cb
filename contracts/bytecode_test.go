package contracts

import "testing"

func TestValidateBytecode(t *testing.T) {
	valid := append([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, 0)
	if err := ValidateBytecode(valid); err != nil {
		t.Fatalf("expected valid bytecode to pass, got %v", err)
	}
}

func TestValidateBytecode_Empty(t *testing.T) {
	if err := ValidateBytecode(nil); err == nil {
		t.Fatalf("expected error for empty bytecode")
	}
}

func TestValidateBytecode_BadMagic(t *testing.T) {
	if err := ValidateBytecode([]byte{0x01, 0x02, 0x03, 0x04}); err == nil {
		t.Fatalf("expected error for missing WASM magic")
	}
}

func TestValidateBytecode_TooLarge(t *testing.T) {
	code := make([]byte, MaxBytecodeSize+1)
	copy(code, wasmMagic)
	if err := ValidateBytecode(code); err == nil {
		t.Fatalf("expected error for oversized bytecode")
	}
}
