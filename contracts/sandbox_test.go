package contracts

import (
	"errors"
	"testing"
)

func TestDefaultExecutionConfig(t *testing.T) {
	cfg := DefaultExecutionConfig()
	if cfg.MaxFuel != 100_000_000 {
		t.Fatalf("MaxFuel=%d", cfg.MaxFuel)
	}
	if cfg.MaxMemoryPages != 256 {
		t.Fatalf("MaxMemoryPages=%d", cfg.MaxMemoryPages)
	}
	if cfg.MaxExecutionTimeMS != 10_000 {
		t.Fatalf("MaxExecutionTimeMS=%d", cfg.MaxExecutionTimeMS)
	}
}

func TestProdExecutionConfig(t *testing.T) {
	cfg := ProdExecutionConfig()
	if cfg.MaxFuel != 50_000_000 {
		t.Fatalf("MaxFuel=%d", cfg.MaxFuel)
	}
}

func TestTestExecutionConfig(t *testing.T) {
	cfg := TestExecutionConfig()
	if cfg.MaxFuel != 1_000_000_000 {
		t.Fatalf("MaxFuel=%d", cfg.MaxFuel)
	}
}

func TestFuelMeter_ConsumeWithinLimit(t *testing.T) {
	f := &fuelMeter{limit: 100}
	if err := f.consume(60); err != nil {
		t.Fatalf("consume 60: %v", err)
	}
	if err := f.consume(40); err != nil {
		t.Fatalf("consume 40: %v", err)
	}
	if f.used != 100 {
		t.Fatalf("used=%d", f.used)
	}
}

func TestFuelMeter_OutOfFuel(t *testing.T) {
	f := &fuelMeter{limit: 100}
	if err := f.consume(60); err != nil {
		t.Fatalf("consume 60: %v", err)
	}
	err := f.consume(60)
	if err == nil {
		t.Fatalf("expected out-of-fuel error")
	}
	var oof *OutOfFuel
	if !errors.As(err, &oof) {
		t.Fatalf("expected *OutOfFuel, got %T", err)
	}
	if oof.Limit != 100 {
		t.Fatalf("Limit=%d", oof.Limit)
	}
}

func TestSandboxExecute_MalformedBytecodeIsCompilationError(t *testing.T) {
	sb := NewSandbox(TestExecutionConfig())
	// Valid WASM magic/version header followed by bytes that are not a
	// valid section (id 0xff), so wasmer must reject it.
	code := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff}
	_, err := sb.Execute(code, ContractState{Quota: 10, KV: map[string][]byte{}}, CallRequest{FunctionName: "run"})
	if err == nil {
		t.Fatalf("expected compilation error for malformed module")
	}
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected *CompilationError, got %T: %v", err, err)
	}
}

func TestSandboxExecute_CachesCompiledModule(t *testing.T) {
	sb := NewSandbox(DefaultExecutionConfig())
	if !sb.cfg.EnableCache {
		t.Fatalf("expected default config to enable caching")
	}
	code := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	store1, module1, err := sb.compile(code)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	store2, module2, err := sb.compile(code)
	if err != nil {
		t.Fatalf("compile (second): %v", err)
	}
	if store1 != store2 || module1 != module2 {
		t.Fatalf("expected identical cached store/module on second compile")
	}
}
