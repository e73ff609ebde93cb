package consensus

import "testing"

func h(b byte) Hash {
	var out Hash
	out[0] = b
	return out
}

func TestMerkleRoot_Empty(t *testing.T) {
	if got := MerkleRoot(nil); got != (Hash{}) {
		t.Fatalf("expected zero hash for empty list, got %x", got)
	}
}

func TestMerkleRoot_Single(t *testing.T) {
	leaf := h(1)
	if got := MerkleRoot([]Hash{leaf}); got != leaf {
		t.Fatalf("single-leaf root should equal the leaf itself: got %x want %x", got, leaf)
	}
}

func TestMerkleRoot_OddDuplicatesLast(t *testing.T) {
	h1, h2, h3 := h(1), h(2), h(3)
	// Level 0: [h1,h2,h3] -> odd, duplicate h3: [h1,h2,h3,h3]
	// Level 1: [hash(h1,h2), hash(h3,h3)]
	var pre [64]byte
	copy(pre[:32], h1[:])
	copy(pre[32:], h2[:])
	left := HashBytes(pre[:])
	copy(pre[:32], h3[:])
	copy(pre[32:], h3[:])
	right := HashBytes(pre[:])
	copy(pre[:32], left[:])
	copy(pre[32:], right[:])
	want := HashBytes(pre[:])

	got := MerkleRoot([]Hash{h1, h2, h3})
	if got != want {
		t.Fatalf("root mismatch: got %x want %x", got, want)
	}
}

func TestMerkleProof_FourLeaves(t *testing.T) {
	h1, h2, h3, h4 := h(1), h(2), h(3), h(4)
	leaves := []Hash{h1, h2, h3, h4}
	root := MerkleRoot(leaves)

	steps, gotRoot, err := GenerateMerkleProof(leaves, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRoot != root {
		t.Fatalf("proof root mismatch: got %x want %x", gotRoot, root)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 proof steps, got %d", len(steps))
	}
	// index 2 (h3) is left at level 0, so its sibling is h4.
	if steps[0].Sibling != h4 || !steps[0].IsRight {
		t.Fatalf("step0 mismatch: %+v", steps[0])
	}

	if !VerifyMerkleProof(h3, steps, root) {
		t.Fatalf("valid proof failed to verify")
	}

	tampered := make([]MerkleProofStep, len(steps))
	copy(tampered, steps)
	tampered[0].Sibling[0] ^= 0xff
	if VerifyMerkleProof(h3, tampered, root) {
		t.Fatalf("tampered proof incorrectly verified")
	}
}
