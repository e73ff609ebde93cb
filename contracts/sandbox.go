package contracts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wasmerio/wasmer-go/wasmer"

	"boundless.dev/node/consensus"
	"boundless.dev/node/crypto"
)

// Per-host-call fuel prices. wasmer-go v1.0.4 has no Wasmtime-style
// per-instruction fuel-consumption API, so fuel here prices the only
// deterministic, observable work a contract can ask the host to do;
// raw in-module compute (loops, arithmetic) is instead bounded by the
// wall-clock deadline below. See DESIGN.md.
const (
	fuelCostStorageGet     = 100
	fuelCostStorageSet     = 200
	fuelCostStorageRemove  = 150
	fuelCostSHA3           = 50
	fuelCostGetCaller      = 10
	fuelCostGetBlockHeight = 5
	fuelCostGetTimestamp   = 5
	fuelCostLog            = 20

	maxSHA3InputBytes = 10 * 1024 * 1024
	maxLogBytes       = 1024
)

// fuelMeter tracks consumption against ExecutionConfig.MaxFuel.
type fuelMeter struct {
	limit uint64
	used  uint64
}

func (f *fuelMeter) consume(cost uint64) error {
	if f.used+cost > f.limit {
		f.used = f.limit
		return &OutOfFuel{Consumed: f.used, Limit: f.limit}
	}
	f.used += cost
	return nil
}

type cachedModule struct {
	store  *wasmer.Store
	module *wasmer.Module
}

// Sandbox compiles and executes contract WASM bytecode under the spec
// §4.7 host ABI, fuel budget, memory-page quota, and wall-clock deadline.
type Sandbox struct {
	engine *wasmer.Engine
	cfg    ExecutionConfig

	mu    sync.Mutex
	cache map[consensus.Hash]*cachedModule
}

// NewSandbox constructs a Sandbox bound to cfg. A fresh *wasmer.Engine is
// created per Sandbox; compiled modules are cached by code hash when
// cfg.EnableCache is set.
func NewSandbox(cfg ExecutionConfig) *Sandbox {
	return &Sandbox{
		engine: wasmer.NewEngine(),
		cfg:    cfg,
		cache:  make(map[consensus.Hash]*cachedModule),
	}
}

func (sb *Sandbox) compile(code []byte) (*wasmer.Store, *wasmer.Module, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	codeHash := consensus.Hash(crypto.Default().SHA3_256(code))
	if sb.cfg.EnableCache {
		if cm, ok := sb.cache[codeHash]; ok {
			return cm.store, cm.module, nil
		}
	}

	store := wasmer.NewStore(sb.engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, nil, &CompilationError{Cause: err}
	}
	if sb.cfg.EnableCache {
		sb.cache[codeHash] = &cachedModule{store: store, module: module}
	}
	return store, module, nil
}

// Execute instantiates code and invokes req.FunctionName against state,
// returning the call's journal (applied by the caller on success only)
// or a typed error (spec §4.7's error taxonomy). state is never mutated:
// all writes are journaled and only ever handed back to the caller.
func (sb *Sandbox) Execute(code []byte, state ContractState, req CallRequest) (*CallResult, error) {
	store, module, err := sb.compile(code)
	if err != nil {
		return nil, err
	}

	storage := newJournaledStorage(state)
	hctx := &hostCtx{storage: storage, req: req, fuel: &fuelMeter{limit: sb.cfg.MaxFuel}}

	imports := registerHost(store, hctx)
	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return nil, &InstantiationError{Cause: err}
	}
	defer instance.Close()

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, &InstantiationError{Cause: errors.New("wasm module does not export linear memory")}
	}
	hctx.mem = mem

	if err := checkMemoryQuota(mem, sb.cfg); err != nil {
		return nil, err
	}

	fn, err := instance.Exports.GetFunction(req.FunctionName)
	if err != nil {
		return nil, &FunctionNotFound{Name: req.FunctionName}
	}

	argsPtr, argsLen, err := writeCallArgs(mem, req.Args)
	if err != nil {
		return nil, &MemoryError{Cause: err}
	}

	type outcome struct {
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		_, callErr := fn(argsPtr, argsLen)
		done <- outcome{err: callErr}
	}()

	deadline := time.Duration(sb.cfg.MaxExecutionTimeMS) * time.Millisecond
	select {
	case out := <-done:
		if out.err != nil {
			var fuelErr *OutOfFuel
			if errors.As(out.err, &fuelErr) {
				return nil, fuelErr
			}
			return nil, &ExecutionError{Cause: out.err}
		}
		if err := checkMemoryQuota(mem, sb.cfg); err != nil {
			return nil, err
		}
		return &CallResult{
			FuelUsed: hctx.fuel.used,
			Journal:  storage.journal,
			Logs:     hctx.logs,
		}, nil
	case <-time.After(deadline):
		return nil, &Timeout{LimitMS: sb.cfg.MaxExecutionTimeMS}
	}
}

// checkMemoryQuota enforces max_memory_pages (spec §4.7). wasmer-go
// v1.0.4 has no store-level memory limiter, so this is checked
// explicitly at the points execution can observe memory growth.
func checkMemoryQuota(mem *wasmer.Memory, cfg ExecutionConfig) error {
	if uint32(mem.Size()) > cfg.MaxMemoryPages {
		return &MemoryError{Cause: fmt.Errorf("memory grew to %d pages, limit %d", mem.Size(), cfg.MaxMemoryPages)}
	}
	return nil
}

// writeCallArgs places the call's argument bytes at the tail of the
// instance's linear memory, growing it if necessary, and returns the
// (ptr, len) pair to invoke the entry point with. This implementation's
// own convention (spec §4.7 fixes the transaction-level wire encoding of
// a call, not how args reach the module) — see DESIGN.md.
func writeCallArgs(mem *wasmer.Memory, args []byte) (int32, int32, error) {
	if len(args) == 0 {
		return 0, 0, nil
	}
	data := mem.Data()
	offset := len(data)
	needed := uint32(len(args))
	pages := (needed + 65535) / 65536
	if pages > 0 {
		if !mem.Grow(wasmer.Pages(pages)) {
			return 0, 0, errors.New("failed to grow memory for call arguments")
		}
	}
	data = mem.Data()
	if offset+len(args) > len(data) {
		return 0, 0, errors.New("memory growth did not provide enough room for call arguments")
	}
	copy(data[offset:], args)
	return int32(offset), int32(len(args)), nil
}

// hostCtx is the state shared by every host ABI function for one call.
type hostCtx struct {
	mem     *wasmer.Memory
	storage *journaledStorage
	req     CallRequest
	fuel    *fuelMeter
	logs    []string
}

func (h *hostCtx) readMem(ptr, ln int32) ([]byte, error) {
	if ptr < 0 || ln < 0 {
		return nil, errors.New("negative pointer or length")
	}
	data := h.mem.Data()
	end := int(ptr) + int(ln)
	if end > len(data) {
		return nil, errors.New("read out of bounds")
	}
	out := make([]byte, ln)
	copy(out, data[ptr:end])
	return out, nil
}

func (h *hostCtx) writeMem(ptr int32, b []byte) error {
	if ptr < 0 {
		return errors.New("negative pointer")
	}
	data := h.mem.Data()
	end := int(ptr) + len(b)
	if end > len(data) {
		return errors.New("write out of bounds")
	}
	copy(data[ptr:end], b)
	return nil
}

// registerHost builds the module `env` import set implementing spec
// §4.7's host ABI table. Grounded on
// _examples/orbas1-Synnergy/synnergy-network/core/virtual_machine.go's
// registerHost (store/ImportObject/NewFunction/NewFunctionType wiring).
func registerHost(store *wasmer.Store, h *hostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	i32 := wasmer.ValueKind(wasmer.I32)
	i64 := wasmer.ValueKind(wasmer.I64)

	storageGet := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostStorageGet); err != nil {
				return nil, err
			}
			kPtr, kLen, vPtr, vLenPtr := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			key, err := h.readMem(kPtr, kLen)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			val, ok := h.storage.get(key)
			if !ok {
				return []wasmer.Value{wasmer.NewI32(0)}, nil
			}
			if err := h.writeMem(vPtr, val); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			lenBuf := make([]byte, 4)
			binary.LittleEndian.PutUint32(lenBuf, uint32(len(val)))
			if err := h.writeMem(vLenPtr, lenBuf); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(1)}, nil
		},
	)

	storageSet := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostStorageSet); err != nil {
				return nil, err
			}
			kPtr, kLen, vPtr, vLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			key, err := h.readMem(kPtr, kLen)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			val, err := h.readMem(vPtr, vLen)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(h.storage.set(key, val))}, nil
		},
	)

	storageRemove := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostStorageRemove); err != nil {
				return nil, err
			}
			kPtr, kLen := args[0].I32(), args[1].I32()
			key, err := h.readMem(kPtr, kLen)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(h.storage.remove(key))}, nil
		},
	)

	sha3Fn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostSHA3); err != nil {
				return nil, err
			}
			dPtr, dLen, outPtr := args[0].I32(), args[1].I32(), args[2].I32()
			if dLen > maxSHA3InputBytes {
				return []wasmer.Value{wasmer.NewI32(-2)}, nil
			}
			data, err := h.readMem(dPtr, dLen)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			sum := crypto.Default().SHA3_256(data)
			if err := h.writeMem(outPtr, sum[:]); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	getCaller := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostGetCaller); err != nil {
				return nil, err
			}
			outPtr := args[0].I32()
			if err := h.writeMem(outPtr, h.req.Caller[:]); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	getBlockHeight := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(i64)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostGetBlockHeight); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI64(int64(h.req.BlockHeight))}, nil
		},
	)

	getTimestamp := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(i64)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostGetTimestamp); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI64(int64(h.req.Timestamp))}, nil
		},
	)

	logFn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.fuel.consume(fuelCostLog); err != nil {
				return nil, err
			}
			ptr, ln := args[0].I32(), args[1].I32()
			if ln > maxLogBytes {
				return []wasmer.Value{wasmer.NewI32(-2)}, nil
			}
			msg, err := h.readMem(ptr, ln)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			h.logs = append(h.logs, string(msg))
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	imports.Register("env", map[string]wasmer.IntoExtern{
		"storage_get":      storageGet,
		"storage_set":      storageSet,
		"storage_remove":   storageRemove,
		"sha3_256":         sha3Fn,
		"get_caller":       getCaller,
		"get_block_height": getBlockHeight,
		"get_timestamp":    getTimestamp,
		"log":              logFn,
	})

	return imports
}
