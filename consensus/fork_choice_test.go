package consensus

import (
	"math/big"
	"testing"
)

func TestWorkFromTarget_Vectors(t *testing.T) {
	// target = MAX_INT>>32 (the ceiling, compact-encodes as the easiest
	// difficulty): work = floor(2^256 / (target+1)), which for the ceiling
	// is a small number, not exactly 1, since the "+1" denominator shifts
	// the boundary relative to a plain 2^256/target formula.
	var ceiling [32]byte
	copy(ceiling[:], maxTargetBig[:])
	compact := EncodeCompactTarget(ceiling)

	w, err := WorkFromTarget(compact)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if w.Sign() <= 0 {
		t.Fatalf("work must be positive, got %s", w.Text(16))
	}

	// A much smaller target (harder difficulty) must yield strictly more work.
	harder := EncodeCompactTarget(mustBytes32Hex(t, "0000000000000000000000000000000000000000000000000000000000000001"))
	wHarder, err := WorkFromTarget(harder)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if wHarder.Cmp(w) <= 0 {
		t.Fatalf("harder target should yield more work: harder=%s easier=%s", wHarder.Text(16), w.Text(16))
	}
}

func TestChainWork_SumsPerBlock(t *testing.T) {
	t1 := mustBytes32Hex(t, "0000000000000000000000000000000000000000000000000000000000000001")
	targets := []uint32{EncodeCompactTarget(t1), EncodeCompactTarget(t1)}

	total, err := ChainWork(targets)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	single, err := WorkFromTarget(targets[0])
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := new(big.Int).Mul(single, big.NewInt(2))
	if total.Cmp(want) != 0 {
		t.Fatalf("chainwork mismatch: got %s want %s", total.Text(16), want.Text(16))
	}
}

func TestIsBetterChain(t *testing.T) {
	low := big.NewInt(10)
	high := big.NewInt(20)
	if !IsBetterChain(high, low) {
		t.Fatalf("expected high work to beat low work")
	}
	if IsBetterChain(low, high) {
		t.Fatalf("expected low work not to beat high work")
	}
	if IsBetterChain(low, low) {
		t.Fatalf("equal work must not count as better (strictly greater required)")
	}
}
