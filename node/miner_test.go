package node

import (
	"context"
	"testing"
	"time"

	"boundless.dev/node/consensus"
)

func withAlwaysPassingMinerPow(t *testing.T) {
	t.Helper()
	prev := powCheckFnForMiner
	powCheckFnForMiner = func(consensus.Hash, uint32) error { return nil }
	t.Cleanup(func() { powCheckFnForMiner = prev })
}

func testCoinbase(amount uint64) consensus.Transaction {
	return consensus.Transaction{
		Version: 1,
		Outputs: []consensus.TxOutput{{
			Amount:              amount,
			RecipientPubkeyHash: consensus.HashBytes([]byte("miner")),
		}},
		Timestamp: 1_777_000_000,
	}
}

func minerEasiestTarget() uint32 {
	return consensus.EncodeCompactTarget([32]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00,
	})
}

func TestMiner_MineBlockFromEmptyState(t *testing.T) {
	withAlwaysPassingMinerPow(t)

	chainState := NewChainState()
	cfg := DefaultMinerConfig()
	cfg.TimestampSource = func() uint64 { return 1_777_000_000 }
	miner, err := NewMiner(chainState, cfg)
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}

	cb := testCoinbase(consensus.BlockSubsidy(1, 0))
	result, err := miner.MineBlock(context.Background(), nil, 1, consensus.Hash{}, minerEasiestTarget(), cb, nil)
	if err != nil {
		t.Fatalf("mine block: %v", err)
	}
	if result.Block.Header.Height != 1 {
		t.Fatalf("height=%d, want 1", result.Block.Header.Height)
	}
	if len(result.Block.Transactions) != 1 {
		t.Fatalf("tx count=%d, want 1", len(result.Block.Transactions))
	}
	if result.HashesComputed == 0 {
		t.Fatalf("expected hashes_computed >= 1")
	}
}

func TestMiner_MineBlockIncludesPendingTxs(t *testing.T) {
	withAlwaysPassingMinerPow(t)

	chainState := NewChainState()
	miner, err := NewMiner(chainState, DefaultMinerConfig())
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}

	cb := testCoinbase(consensus.BlockSubsidy(1, 0))
	extra := consensus.Transaction{Version: 1, Outputs: []consensus.TxOutput{{Amount: 1, RecipientPubkeyHash: consensus.HashBytes([]byte("x"))}}}
	result, err := miner.MineBlock(context.Background(), nil, 1, consensus.Hash{}, minerEasiestTarget(), cb, []consensus.Transaction{extra})
	if err != nil {
		t.Fatalf("mine block: %v", err)
	}
	if len(result.Block.Transactions) != 2 {
		t.Fatalf("tx count=%d, want 2", len(result.Block.Transactions))
	}
}

func TestMiner_MineBlockRespectsStopSignal(t *testing.T) {
	chainState := NewChainState()
	miner, err := NewMiner(chainState, DefaultMinerConfig())
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}

	stop := make(chan struct{})
	close(stop)

	cb := testCoinbase(consensus.BlockSubsidy(1, 0))
	_, err = miner.MineBlock(context.Background(), stop, 1, consensus.Hash{}, minerEasiestTarget(), cb, nil)
	if err != ErrMiningStopped {
		t.Fatalf("expected ErrMiningStopped, got %v", err)
	}
}

func TestMiner_MineBlockRespectsContextCancellation(t *testing.T) {
	chainState := NewChainState()
	miner, err := NewMiner(chainState, DefaultMinerConfig())
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	cb := testCoinbase(consensus.BlockSubsidy(1, 0))
	_, err = miner.MineBlock(ctx, nil, 1, consensus.Hash{}, minerEasiestTarget(), cb, nil)
	if err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestMiner_MineBlockUsesConfiguredWorkerCount(t *testing.T) {
	withAlwaysPassingMinerPow(t)

	chainState := NewChainState()
	cfg := DefaultMinerConfig()
	cfg.Workers = 4
	miner, err := NewMiner(chainState, cfg)
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}
	cb := testCoinbase(consensus.BlockSubsidy(1, 0))
	if _, err := miner.MineBlock(context.Background(), nil, 1, consensus.Hash{}, minerEasiestTarget(), cb, nil); err != nil {
		t.Fatalf("mine block: %v", err)
	}
}
