package node

import (
	"testing"
	"time"

	"boundless.dev/node/consensus"
	"boundless.dev/node/mempool"
	"boundless.dev/node/p2p"
	"boundless.dev/node/store"
)

func newTestSyncEngine(t *testing.T) *SyncEngine {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(dir, "00112233445566778899aabbccddeeff00112233445566778899aabbccddee")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	cs := NewChainState()
	eng, err := NewSyncEngine(cs, db, DefaultSyncConfig(""))
	if err != nil {
		t.Fatalf("NewSyncEngine: %v", err)
	}
	return eng
}

func TestPeer_HandleGetStatus(t *testing.T) {
	eng := newTestSyncEngine(t)
	var p Peer
	resp, err := p.Handle(eng, nil, &p2p.Message{Command: p2p.CmdGetStatus}, time.Unix(1, 0))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Command != p2p.CmdStatus {
		t.Fatalf("expected status response, got %q", resp.Command)
	}
	status, err := p2p.DecodeStatusPayload(resp.Payload)
	if err != nil {
		t.Fatalf("DecodeStatusPayload: %v", err)
	}
	if status.Height != 0 {
		t.Fatalf("expected height 0 on a fresh chain, got %d", status.Height)
	}
}

func TestPeer_HandlePing(t *testing.T) {
	eng := newTestSyncEngine(t)
	var p Peer
	pingPayload, err := p2p.EncodePingPayload(p2p.PingPayload{Nonce: 7})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Handle(eng, nil, &p2p.Message{Command: p2p.CmdPing, Payload: pingPayload}, time.Unix(1, 0))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Command != p2p.CmdPong {
		t.Fatalf("expected pong response, got %q", resp.Command)
	}
	pong, err := p2p.DecodePongPayload(resp.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if pong.Nonce != 7 {
		t.Fatalf("nonce=%d, want 7", pong.Nonce)
	}
}

func TestPeer_HandleUnrecognizedCommandBansPeer(t *testing.T) {
	eng := newTestSyncEngine(t)
	var p Peer
	now := time.Unix(1, 0)
	_, err := p.Handle(eng, nil, &p2p.Message{Command: "notarealcommand"}, now)
	if err == nil {
		t.Fatalf("expected error for unrecognized command")
	}
	if p.ban.Score(now) != p2p.UnrecognizedCommandBanDelta {
		t.Fatalf("ban score=%d, want %d", p.ban.Score(now), p2p.UnrecognizedCommandBanDelta)
	}
}

func TestPeer_HandleNewTransactionAdmitsToMempool(t *testing.T) {
	eng := newTestSyncEngine(t)
	pool := mempool.NewPool(mempool.DefaultConfig())
	var p Peer

	// Seed the chain state with a spendable UTXO so a valid tx can admit.
	cb := coinbaseAt(1, 5000)
	block := consensus.Block{Header: consensus.BlockHeader{Height: 1}, Transactions: []consensus.Transaction{cb}}
	if err := eng.chainState.ApplyBlock(block, ApplyDelta{Fees: []uint64{0}}); err != nil {
		t.Fatalf("seed ApplyBlock: %v", err)
	}
	cbHash := consensus.TxHash(cb)
	spendTx := signedTxAt(t, consensus.OutPoint{TxHash: cbHash, OutputIndex: 0}, 4000, 2)

	payload := p2p.EncodeNewTransactionPayload(p2p.NewTransactionPayload{Transaction: spendTx})
	_, err := p.Handle(eng, pool, &p2p.Message{Command: p2p.CmdNewTransaction, Payload: payload}, time.Unix(1, 0))
	if err != nil {
		t.Fatalf("Handle NewTransaction: %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("pool.Len()=%d, want 1", pool.Len())
	}
}
