package mempool

import (
	"crypto/ed25519"
	"testing"
	"time"

	"boundless.dev/node/consensus"
	"boundless.dev/node/crypto"
)

type fakeUTXOSource struct {
	utxos map[consensus.OutPoint]consensus.TxOutput
}

func (f *fakeUTXOSource) GetUTXO(op consensus.OutPoint) (consensus.TxOutput, bool) {
	out, ok := f.utxos[op]
	return out, ok
}

func signedSpend(t *testing.T, spend consensus.OutPoint, inputAmount, outAmount uint64) consensus.Transaction {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	tx := consensus.Transaction{
		Version: 1,
		Inputs: []consensus.TxInput{{
			PreviousOutputHash: spend.TxHash,
			OutputIndex:        spend.OutputIndex,
			PublicKey:          pub,
		}},
		Outputs: []consensus.TxOutput{{
			Amount:              outAmount,
			RecipientPubkeyHash: consensus.HashBytes([]byte("payee")),
		}},
		Timestamp: 1000,
	}
	sigHash := consensus.SigningHash(tx)
	tx.Inputs[0].Signature = consensus.Signature{Tag: crypto.TagEd25519, Bytes: ed25519.Sign(priv, sigHash[:])}
	return tx
}

func hashN(b byte) consensus.Hash {
	var h consensus.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestPool_AdmitAndPending(t *testing.T) {
	spendHash := hashN(0x01)
	op := consensus.OutPoint{TxHash: spendHash, OutputIndex: 0}
	tx := signedSpend(t, op, 1000, 700)
	state := &fakeUTXOSource{utxos: map[consensus.OutPoint]consensus.TxOutput{
		op: {Amount: 1000, RecipientPubkeyHash: consensus.HashBytes([]byte("ignored"))},
	}}

	p := NewPool(DefaultConfig())
	entry, err := p.Admit(tx, state, time.Unix(1, 0))
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if entry.Fee != 300 {
		t.Fatalf("fee=%d, want 300", entry.Fee)
	}
	if p.Len() != 1 {
		t.Fatalf("Len=%d, want 1", p.Len())
	}
	pending := p.Pending(10)
	if len(pending) != 1 {
		t.Fatalf("Pending len=%d, want 1", len(pending))
	}
}

func TestPool_RejectsDuplicate(t *testing.T) {
	spendHash := hashN(0x02)
	op := consensus.OutPoint{TxHash: spendHash, OutputIndex: 0}
	tx := signedSpend(t, op, 1000, 700)
	state := &fakeUTXOSource{utxos: map[consensus.OutPoint]consensus.TxOutput{
		op: {Amount: 1000},
	}}

	p := NewPool(DefaultConfig())
	if _, err := p.Admit(tx, state, time.Unix(1, 0)); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if _, err := p.Admit(tx, state, time.Unix(2, 0)); err != ErrAlreadyInPool {
		t.Fatalf("expected ErrAlreadyInPool, got %v", err)
	}
}

func TestPool_RejectsConflictingInput(t *testing.T) {
	spendHash := hashN(0x03)
	op := consensus.OutPoint{TxHash: spendHash, OutputIndex: 0}
	tx1 := signedSpend(t, op, 1000, 700)
	tx2 := signedSpend(t, op, 1000, 800)
	state := &fakeUTXOSource{utxos: map[consensus.OutPoint]consensus.TxOutput{
		op: {Amount: 1000},
	}}

	p := NewPool(DefaultConfig())
	if _, err := p.Admit(tx1, state, time.Unix(1, 0)); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if _, err := p.Admit(tx2, state, time.Unix(2, 0)); err != ErrConflicting {
		t.Fatalf("expected ErrConflicting, got %v", err)
	}
}

func TestPool_EvictsLowestFeeRateFirst(t *testing.T) {
	// Each tx is sized identically; give the cap room for exactly one.
	op1 := consensus.OutPoint{TxHash: hashN(0x10), OutputIndex: 0}
	op2 := consensus.OutPoint{TxHash: hashN(0x11), OutputIndex: 0}
	lowFee := signedSpend(t, op1, 1000, 800)  // fee 200
	highFee := signedSpend(t, op2, 1000, 700) // fee 300
	state := &fakeUTXOSource{utxos: map[consensus.OutPoint]consensus.TxOutput{
		op1: {Amount: 1000},
		op2: {Amount: 1000},
	}}

	size := consensus.TransactionSizeBytes(lowFee)
	p := NewPool(Config{MaxBytes: size + 1})

	if _, err := p.Admit(lowFee, state, time.Unix(1, 0)); err != nil {
		t.Fatalf("admit lowFee: %v", err)
	}
	if _, err := p.Admit(highFee, state, time.Unix(2, 0)); err != nil {
		t.Fatalf("admit highFee: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len=%d, want 1 after eviction", p.Len())
	}
	if p.Has(consensus.TxHash(lowFee)) {
		t.Fatalf("expected low fee-rate tx to be evicted")
	}
	if !p.Has(consensus.TxHash(highFee)) {
		t.Fatalf("expected high fee-rate tx to remain")
	}
}

func TestPool_RemoveMinedDropsConfirmedTx(t *testing.T) {
	op := consensus.OutPoint{TxHash: hashN(0x20), OutputIndex: 0}
	tx := signedSpend(t, op, 1000, 700)
	state := &fakeUTXOSource{utxos: map[consensus.OutPoint]consensus.TxOutput{
		op: {Amount: 1000},
	}}

	p := NewPool(DefaultConfig())
	if _, err := p.Admit(tx, state, time.Unix(1, 0)); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	block := consensus.Block{Transactions: []consensus.Transaction{{}, tx}}
	p.RemoveMined(block)
	if p.Len() != 0 {
		t.Fatalf("Len=%d, want 0 after RemoveMined", p.Len())
	}
}
