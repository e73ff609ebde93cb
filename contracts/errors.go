package contracts

import "fmt"

// CompilationError wraps a wasmer module-compile failure (spec §4.7). A
// non-deterministic error — every node must reject the same block.
type CompilationError struct{ Cause error }

func (e *CompilationError) Error() string { return fmt.Sprintf("contracts: compilation: %v", e.Cause) }
func (e *CompilationError) Unwrap() error { return e.Cause }

// InstantiationError wraps a wasmer instantiate failure (missing memory
// export, unresolved import, global init trap).
type InstantiationError struct{ Cause error }

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("contracts: instantiation: %v", e.Cause)
}
func (e *InstantiationError) Unwrap() error { return e.Cause }

// FunctionNotFound means the requested entry point isn't exported by the
// module.
type FunctionNotFound struct{ Name string }

func (e *FunctionNotFound) Error() string {
	return fmt.Sprintf("contracts: function not found: %q", e.Name)
}

// OutOfFuel is returned when execution consumes more fuel than the
// configured budget allows.
type OutOfFuel struct {
	Consumed uint64
	Limit    uint64
}

func (e *OutOfFuel) Error() string {
	return fmt.Sprintf("contracts: out of fuel (%d/%d)", e.Consumed, e.Limit)
}

// MemoryError covers out-of-bounds host memory access and memory-page
// quota violations.
type MemoryError struct{ Cause error }

func (e *MemoryError) Error() string { return fmt.Sprintf("contracts: memory: %v", e.Cause) }
func (e *MemoryError) Unwrap() error { return e.Cause }

// ExecutionError wraps a WASM execution trap.
type ExecutionError struct{ Cause error }

func (e *ExecutionError) Error() string { return fmt.Sprintf("contracts: execution trap: %v", e.Cause) }
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Timeout is returned when the wall-clock deadline elapses before the
// call returns.
type Timeout struct{ LimitMS uint64 }

func (e *Timeout) Error() string {
	return fmt.Sprintf("contracts: execution exceeded %dms deadline", e.LimitMS)
}
