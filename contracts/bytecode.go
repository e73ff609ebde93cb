package contracts

import (
	"bytes"
	"errors"
)

// MaxBytecodeSize bounds a contract's deployed WASM bytes (spec §9
// supplement, original_source/core/src/contract.rs::validate_bytecode).
const MaxBytecodeSize = 1 << 20 // 1 MiB

// wasmMagic is the four-byte WASM binary format magic number.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// ValidateBytecode checks a contract deployment's WASM bytes before they
// are ever handed to the sandbox: non-empty, at most MaxBytecodeSize, and
// beginning with the WASM magic. Grounded on
// original_source/core/src/contract.rs::validate_bytecode; adopted
// because spec.md's distillation dropped the explicit deploy-time check
// (see DESIGN.md).
func ValidateBytecode(code []byte) error {
	if len(code) == 0 {
		return errors.New("contracts: empty bytecode")
	}
	if len(code) > MaxBytecodeSize {
		return errors.New("contracts: bytecode exceeds 1 MiB")
	}
	if !bytes.HasPrefix(code, wasmMagic) {
		return errors.New("contracts: missing WASM magic number")
	}
	return nil
}
