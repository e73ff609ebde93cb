package node

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"boundless.dev/node/consensus"
	"boundless.dev/node/mempool"
	"boundless.dev/node/store"
)

const defaultIBDLagSeconds = 24 * 60 * 60

// SyncConfig configures a SyncEngine (spec §4.4, §6).
type SyncConfig struct {
	ChainStatePath   string
	HeaderBatchLimit uint64
	IBDLagSeconds    uint64
	Network          string
}

// HeaderRequest is what a peer should be asked for next during header sync
// (spec §4.4: getblocks with an optional locator hash).
type HeaderRequest struct {
	FromHash consensus.Hash
	HasFrom  bool
	Limit    uint64
}

// SyncEngine drives block ingestion: it hands blocks to the durable store
// for consensus validation and chain selection, then keeps the derived
// ChainState view (tx index, balances, contracts) in step with whatever
// the store decides is the best chain.
type SyncEngine struct {
	chainState *ChainState
	db         *store.DB
	cfg        SyncConfig
	mempool    *mempool.Pool

	mu              sync.RWMutex
	tipTimestamp    uint64
	bestKnownHeight uint64
}

// AttachMempool wires a mempool into the engine so every accepted or
// reorg-replayed block drops its confirmed transactions from the pool
// (spec §4.6: "To mempool: signals which transactions were included").
func (s *SyncEngine) AttachMempool(pool *mempool.Pool) {
	if s == nil {
		return
	}
	s.mempool = pool
}

func DefaultSyncConfig(chainStatePath string) SyncConfig {
	return SyncConfig{
		HeaderBatchLimit: 512,
		IBDLagSeconds:    defaultIBDLagSeconds,
		ChainStatePath:   chainStatePath,
		Network:          "devnet",
	}
}

func NewSyncEngine(chainState *ChainState, db *store.DB, cfg SyncConfig) (*SyncEngine, error) {
	if chainState == nil {
		return nil, errors.New("nil chainstate")
	}
	if cfg.HeaderBatchLimit == 0 {
		cfg.HeaderBatchLimit = 512
	}
	if cfg.IBDLagSeconds == 0 {
		cfg.IBDLagSeconds = defaultIBDLagSeconds
	}
	return &SyncEngine{
		chainState: chainState,
		db:         db,
		cfg:        cfg,
	}, nil
}

// OpenSyncEngine opens a durable store-backed sync engine, loading the
// persisted ChainState snapshot and rebuilding it from the store's best
// chain if it's missing or has drifted from the store's tip (a reorg
// landed after the last chainstate save, or no snapshot was ever written).
func OpenSyncEngine(db *store.DB, cfg SyncConfig) (*SyncEngine, error) {
	if db == nil {
		return nil, errors.New("sync: nil store")
	}
	cs, err := LoadChainState(cfg.ChainStatePath)
	if err != nil {
		return nil, err
	}
	if m := db.Manifest(); m != nil && (!cs.HasTip || cs.Height != m.TipHeight || hex.EncodeToString(cs.BestHash[:]) != m.TipHashHex) {
		rebuilt, err := rebuildChainStateFromStore(db)
		if err != nil {
			return nil, err
		}
		cs = rebuilt
	}
	return NewSyncEngine(cs, db, cfg)
}

// ChainState exposes the engine's live derived view (UTXOs, balances,
// contracts) for callers that need to feed it to a Miner or mempool.Pool.
func (s *SyncEngine) ChainState() *ChainState {
	if s == nil {
		return nil
	}
	return s.chainState
}

func (s *SyncEngine) HeaderSyncRequest() HeaderRequest {
	if s == nil || s.chainState == nil {
		return HeaderRequest{}
	}
	if !s.chainState.HasTip {
		return HeaderRequest{
			HasFrom: false,
			Limit:   s.cfg.HeaderBatchLimit,
		}
	}
	_, bestHash, _, _ := s.chainState.Snapshot()
	return HeaderRequest{
		FromHash: bestHash,
		HasFrom:  true,
		Limit:    s.cfg.HeaderBatchLimit,
	}
}

func (s *SyncEngine) RecordBestKnownHeight(height uint64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if height > s.bestKnownHeight {
		s.bestKnownHeight = height
	}
}

func (s *SyncEngine) BestKnownHeight() uint64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bestKnownHeight
}

func (s *SyncEngine) IsInIBD(nowUnix uint64) bool {
	if s == nil || s.chainState == nil {
		return true
	}
	if !s.chainState.HasTip {
		return true
	}
	s.mu.RLock()
	tipTimestamp := s.tipTimestamp
	ibdLag := s.cfg.IBDLagSeconds
	s.mu.RUnlock()
	if nowUnix < tipTimestamp {
		return true
	}
	return nowUnix-tipTimestamp > ibdLag
}

// ApplyResult summarizes what ApplyBlock did to both the durable store and
// its derived ChainState view.
type ApplyResult struct {
	Decision store.ApplyDecision
	Height   uint64
	Hash     consensus.Hash
}

// ApplyBlock offers a wire-encoded block to the engine: it parses and
// validates the block through the durable store (which owns chain
// selection and reorg), then brings the ChainState view up to date with
// whatever the store decided. wallClock is the node's current time,
// passed through to consensus.ValidateBlock's future-drift check.
func (s *SyncEngine) ApplyBlock(blockBytes []byte, wallClock uint64) (*ApplyResult, error) {
	if s == nil || s.chainState == nil || s.db == nil {
		return nil, errors.New("sync engine is not initialized")
	}
	block, err := consensus.ParseBlock(blockBytes)
	if err != nil {
		return nil, err
	}
	blockHash := consensus.BlockHeaderHash(block.Header)

	decision, err := s.db.ApplyBlock(block, wallClock)
	if err != nil {
		return nil, fmt.Errorf("sync: apply block: %w", err)
	}

	switch decision {
	case store.ApplyAccepted:
		if err := s.applyToChainState(block); err != nil {
			return nil, err
		}
		if s.mempool != nil {
			s.mempool.RemoveMined(block)
		}
	case store.ApplyReorged:
		rebuilt, err := rebuildChainStateFromStore(s.db)
		if err != nil {
			return nil, err
		}
		s.chainState.replaceFrom(rebuilt)
		if s.mempool != nil {
			s.mempool.RemoveMined(block)
		}
	}

	if s.cfg.ChainStatePath != "" && (decision == store.ApplyAccepted || decision == store.ApplyReorged) {
		if err := s.chainState.Save(s.cfg.ChainStatePath); err != nil {
			return nil, fmt.Errorf("sync: save chainstate: %w", err)
		}
	}

	s.mu.Lock()
	if decision == store.ApplyAccepted || decision == store.ApplyReorged {
		s.tipTimestamp = block.Header.Timestamp
	}
	if block.Header.Height > s.bestKnownHeight {
		s.bestKnownHeight = block.Header.Height
	}
	s.mu.Unlock()

	return &ApplyResult{Decision: decision, Height: block.Header.Height, Hash: blockHash}, nil
}

// applyToChainState folds block into the engine's live ChainState,
// deriving each non-coinbase transaction's fee from the view's current
// UTXO set before ChainState.ApplyBlock consumes it.
func (s *SyncEngine) applyToChainState(block consensus.Block) error {
	fees, err := computeFees(s.chainState, block)
	if err != nil {
		return err
	}
	return s.chainState.ApplyBlock(block, ApplyDelta{Fees: fees})
}

// rebuildChainStateFromStore replays the store's entire best chain into a
// fresh ChainState. Used on startup when no usable snapshot exists, and
// after a reorg moves the tip off the chain a view was built from — undo
// records only cover the durable UTXO/undo bucket, not the ChainState's
// secondary tx/proof/contract indexes, so a full replay is simplest and
// correct rather than trying to run those indexes backwards too.
func rebuildChainStateFromStore(db *store.DB) (*ChainState, error) {
	blocks, err := db.BestChainBlocks()
	if err != nil {
		return nil, err
	}
	fresh := NewChainState()
	for _, block := range blocks {
		fees, err := computeFees(fresh, block)
		if err != nil {
			return nil, err
		}
		if err := fresh.ApplyBlock(block, ApplyDelta{Fees: fees}); err != nil {
			return nil, err
		}
	}
	return fresh, nil
}

// computeFees derives each transaction's fee (inputs minus outputs) from
// cs's current UTXO set; the coinbase is always fee 0. Must run before
// ChainState.ApplyBlock consumes the inputs it needs to look up.
func computeFees(cs *ChainState, block consensus.Block) ([]uint64, error) {
	fees := make([]uint64, len(block.Transactions))
	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}
		var in, out uint64
		for _, txin := range tx.Inputs {
			op := consensus.OutPoint{TxHash: txin.PreviousOutputHash, OutputIndex: txin.OutputIndex}
			utxo, ok := cs.GetUTXO(op)
			if !ok {
				return nil, fmt.Errorf("sync: fee calc: missing utxo %+v", op)
			}
			in += utxo.Amount
		}
		for _, o := range tx.Outputs {
			out += o.Amount
		}
		if in < out {
			return nil, fmt.Errorf("sync: fee calc: tx outputs exceed inputs")
		}
		fees[i] = in - out
	}
	return fees, nil
}
