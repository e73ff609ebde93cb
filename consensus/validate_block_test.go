package consensus

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"boundless.dev/node/crypto"
)

// withPowAlwaysPasses overrides the PoW check for the duration of a test so
// block-validation logic can be exercised end to end without brute-forcing
// a real proof of work (expected cost ~2^32 hashes at the easiest real
// target). PowCheck's own hash-vs-target correctness is covered by
// pow_test.go.
func withPowAlwaysPasses(t *testing.T) {
	t.Helper()
	prev := powCheckFn
	powCheckFn = func(Hash, uint32) error { return nil }
	t.Cleanup(func() { powCheckFn = prev })
}

func easiestTarget() uint32 {
	return EncodeCompactTarget(maxTargetBigCopy())
}

func maxTargetBigCopy() [32]byte {
	var out [32]byte
	copy(out[:], maxTargetBig[:])
	return out
}

func coinbaseTx(height uint64, amount uint64) Transaction {
	return Transaction{
		Version: 1,
		Outputs: []TxOutput{{
			Amount:              amount,
			RecipientPubkeyHash: HashBytes([]byte("miner")),
		}},
		Timestamp: 2_000,
		Data:      []byte{byte(height)},
	}
}

func TestValidateBlock_GenesisChildAccepted(t *testing.T) {
	withPowAlwaysPasses(t)

	prev := PrevBlockContext{
		Height:           0,
		BestHash:         Hash{},
		Timestamp:        1_000,
		DifficultyTarget: easiestTarget(),
	}

	subsidy := BlockSubsidy(1, 0)
	cb := coinbaseTx(1, subsidy)

	header := BlockHeader{
		Version:          1,
		PreviousHash:     prev.BestHash,
		Timestamp:        1_500,
		Height:           1,
		DifficultyTarget: prev.DifficultyTarget,
	}
	block := Block{Transactions: []Transaction{cb}}
	header.MerkleRoot = MerkleRoot(TxHashes(block))
	block.Header = header

	result, err := ValidateBlock(block, prev, fakeUTXOSet{}, 1_500+10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalFees != 0 {
		t.Fatalf("expected zero fees, got %d", result.TotalFees)
	}
}

func TestValidateBlock_RejectsWrongLinkage(t *testing.T) {
	prev := PrevBlockContext{Height: 5, BestHash: HashBytes([]byte("tip")), Timestamp: 1_000, DifficultyTarget: easiestTarget()}
	block := Block{
		Header: BlockHeader{Height: 6, PreviousHash: HashBytes([]byte("wrong-parent")), Timestamp: 1_500},
	}
	_, err := ValidateBlock(block, prev, fakeUTXOSet{}, 2_000)
	var ce *Error
	if !errors.As(err, &ce) || ce.Code != CodeLinkageInvalid {
		t.Fatalf("expected LINKAGE_INVALID, got %v", err)
	}
}

func TestValidateBlock_RejectsNonIncreasingTimestamp(t *testing.T) {
	prev := PrevBlockContext{Height: 1, BestHash: Hash{}, Timestamp: 1_000, DifficultyTarget: easiestTarget()}
	block := Block{
		Header: BlockHeader{Height: 2, PreviousHash: Hash{}, Timestamp: 1_000, DifficultyTarget: prev.DifficultyTarget},
	}
	_, err := ValidateBlock(block, prev, fakeUTXOSet{}, 2_000)
	var ce *Error
	if !errors.As(err, &ce) || ce.Code != CodeTimestampInvalid {
		t.Fatalf("expected TIMESTAMP_INVALID, got %v", err)
	}
}

func TestValidateBlock_RejectsPowFailure(t *testing.T) {
	prev := PrevBlockContext{Height: 0, BestHash: Hash{}, Timestamp: 1_000, DifficultyTarget: easiestTarget()}
	cb := coinbaseTx(1, BlockSubsidy(1, 0))
	header := BlockHeader{Version: 1, PreviousHash: prev.BestHash, Timestamp: 1_500, Height: 1, DifficultyTarget: prev.DifficultyTarget}
	block := Block{Transactions: []Transaction{cb}}
	header.MerkleRoot = MerkleRoot(TxHashes(block))
	block.Header = header

	// No PoW override installed: the header's real hash essentially never
	// beats the easiest real target on the first try.
	_, err := ValidateBlock(block, prev, fakeUTXOSet{}, 1_500+10)
	var ce *Error
	if !errors.As(err, &ce) || ce.Code != CodePowInvalid {
		t.Fatalf("expected POW_INVALID, got %v", err)
	}
}

func TestValidateBlock_SpendsEarlierTxInSameBlock(t *testing.T) {
	withPowAlwaysPasses(t)

	prev := PrevBlockContext{Height: 0, BestHash: Hash{}, Timestamp: 1_000, DifficultyTarget: easiestTarget()}

	cb := coinbaseTx(1, BlockSubsidy(1, 0))
	cbHash := TxHash(cb)

	pub, priv, _ := ed25519.GenerateKey(nil)
	spendTx := Transaction{
		Version: 1,
		Inputs: []TxInput{{
			PreviousOutputHash: cbHash,
			OutputIndex:        0,
			PublicKey:          pub,
		}},
		Outputs:   []TxOutput{{Amount: cb.Outputs[0].Amount - 1_000, RecipientPubkeyHash: HashBytes([]byte("payee"))}},
		Timestamp: 2_000,
	}
	sigHash := SigningHash(spendTx)
	spendTx.Inputs[0].Signature = Signature{Tag: crypto.TagEd25519, Bytes: ed25519.Sign(priv, sigHash[:])}

	header := BlockHeader{Version: 1, PreviousHash: prev.BestHash, Timestamp: 1_500, Height: 1, DifficultyTarget: prev.DifficultyTarget}
	block := Block{Transactions: []Transaction{cb, spendTx}}
	header.MerkleRoot = MerkleRoot(TxHashes(block))
	block.Header = header

	result, err := ValidateBlock(block, prev, fakeUTXOSet{}, 1_500+10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalFees != 1_000 {
		t.Fatalf("fee mismatch: got %d want 1000", result.TotalFees)
	}
}

func TestValidateBlock_RejectsSecondCoinbase(t *testing.T) {
	withPowAlwaysPasses(t)

	prev := PrevBlockContext{Height: 0, BestHash: Hash{}, Timestamp: 1_000, DifficultyTarget: easiestTarget()}
	cb := coinbaseTx(1, BlockSubsidy(1, 0))
	secondCoinbaseLike := Transaction{
		Version:   1,
		Outputs:   []TxOutput{{Amount: 1, RecipientPubkeyHash: HashBytes([]byte("x"))}},
		Timestamp: 2_000,
	}
	header := BlockHeader{Version: 1, PreviousHash: prev.BestHash, Timestamp: 1_500, Height: 1, DifficultyTarget: prev.DifficultyTarget}
	block := Block{Transactions: []Transaction{cb, secondCoinbaseLike}}
	header.MerkleRoot = MerkleRoot(TxHashes(block))
	block.Header = header

	_, err := ValidateBlock(block, prev, fakeUTXOSet{}, 1_500+10)
	var ce *Error
	if !errors.As(err, &ce) || ce.Code != CodeDuplicateCoinbase {
		t.Fatalf("expected DUPLICATE_COINBASE, got %v", err)
	}
}
