// Package contracts implements the spec §4.7 WASM sandbox: deterministic,
// fuel- and time-bounded execution of deployed contract bytecode through
// a narrow host-function ABI. Grounded on the teacher's own pack-sibling
// wasmer-go usage in
// _examples/orbas1-Synnergy/synnergy-network/core/virtual_machine.go
// (HeavyVM/registerHost: engine/store/module/instance construction, host
// functions returning ([]wasmer.Value, error), bounds-checked memory
// access via instance.Exports.GetMemory("memory").Data()).
package contracts

import "boundless.dev/node/consensus"

// DefaultStorageQuota is the default number of key/value slots a newly
// deployed contract is granted (spec §4.7, original_source/core/src/
// contract.rs::ContractState::new). Reuses consensus's constant so the
// apply-path default and the sandbox's own default never drift apart.
const DefaultStorageQuota = consensus.ContractDeployDefaultStorageQuota

// MaxValueBytes is the per-value byte ceiling a storage_set call is held
// to (spec §4.7).
const MaxValueBytes = consensus.ContractDeployMaxValueBytes

// ExecutionConfig enumerates the recognized execution-configuration keys
// from spec §4.7.
type ExecutionConfig struct {
	MaxFuel             uint64
	MaxMemoryPages      uint32 // page = 64 KiB
	MaxStackSize        uint32
	MaxExecutionTimeMS  uint64
	EnableCache         bool
	UsePoolingAllocator bool
	MaxPooledInstances  int
}

// DefaultExecutionConfig is spec §4.7's default profile.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxFuel:            100_000_000,
		MaxMemoryPages:     256,
		MaxStackSize:       1 << 20,
		MaxExecutionTimeMS: 10_000,
		EnableCache:         true,
		UsePoolingAllocator: false,
		MaxPooledInstances:  64,
	}
}

// ProdExecutionConfig tightens the fuel budget for mainnet-style nodes.
func ProdExecutionConfig() ExecutionConfig {
	cfg := DefaultExecutionConfig()
	cfg.MaxFuel = 50_000_000
	return cfg
}

// TestExecutionConfig widens the fuel budget for deterministic test
// fixtures that don't need to exercise OutOfFuel.
func TestExecutionConfig() ExecutionConfig {
	cfg := DefaultExecutionConfig()
	cfg.MaxFuel = 1_000_000_000
	return cfg
}
