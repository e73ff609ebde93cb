package store

import (
	"fmt"

	"boundless.dev/node/consensus"
)

// InitGenesis initializes an empty chain DB from the network's genesis
// block. Genesis is not reachable through ValidateBlock (it has no
// predecessor to link against or inherit a difficulty target from), so this
// applies the subset of spec §4.3's checks that still make sense at height
// 0 — proof of work, Merkle root, per-transaction validity, coinbase value —
// directly.
func (d *DB) InitGenesis(genesis consensus.Block) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("db: not open")
	}
	if d.manifest != nil {
		return fmt.Errorf("chain already initialized (manifest exists)")
	}
	header := genesis.Header
	if header.Height != 0 {
		return fmt.Errorf("genesis: height must be 0")
	}
	if header.PreviousHash != (consensus.Hash{}) {
		return fmt.Errorf("genesis: previous_hash must be zero")
	}
	if err := consensus.ValidateDifficultyTarget(header.DifficultyTarget); err != nil {
		return err
	}
	blockHash := consensus.BlockHeaderHash(header)
	if err := consensus.CheckPow(blockHash, header.DifficultyTarget); err != nil {
		return err
	}
	if got := consensus.MerkleRoot(consensus.TxHashes(genesis)); got != header.MerkleRoot {
		return fmt.Errorf("genesis: merkle_root mismatch")
	}
	if len(genesis.Transactions) == 0 {
		return fmt.Errorf("genesis: block has no transactions")
	}

	utxo := make(map[consensus.OutPoint]consensus.TxOutput)
	var coinbaseValue uint64
	for i, tx := range genesis.Transactions {
		isCoinbase := i == 0
		result, err := consensus.ValidateTransaction(tx, mapUTXOSource(utxo), isCoinbase)
		if err != nil {
			return fmt.Errorf("genesis: tx %d: %w", i, err)
		}
		_ = result
		txHash := consensus.TxHash(tx)
		for idx, out := range tx.Outputs {
			utxo[consensus.OutPoint{TxHash: txHash, OutputIndex: uint32(idx)}] = out
			if isCoinbase {
				coinbaseValue += out.Amount
			}
		}
	}
	subsidy := consensus.BlockSubsidy(0, 0)
	if coinbaseValue > subsidy {
		return fmt.Errorf("genesis: coinbase value %d exceeds subsidy %d", coinbaseValue, subsidy)
	}

	work, err := WorkFromTarget(header.DifficultyTarget)
	if err != nil {
		return err
	}

	if err := d.persistAppliedBlock(blockHash, genesis, UndoRecord{}, utxo, nil, BlockIndexEntry{
		Height:           0,
		PrevHash:         consensus.Hash{},
		CumulativeWork:   work,
		Status:           BlockStatusValid,
		AlreadyGenerated: coinbaseValue,
		DifficultyTarget: header.DifficultyTarget,
		Timestamp:        header.Timestamp,
	}); err != nil {
		return err
	}

	m := &Manifest{
		SchemaVersion:           SchemaVersionV1,
		ChainIDHex:              hex32(blockHash),
		TipHashHex:              hex32(blockHash),
		TipHeight:               0,
		TipCumulativeWorkDec:    work.Text(10),
		LastAppliedBlockHashHex: hex32(blockHash),
		LastAppliedHeight:       0,
	}
	return d.SetManifest(m)
}

type mapUTXOSource map[consensus.OutPoint]consensus.TxOutput

func (m mapUTXOSource) GetUTXO(op consensus.OutPoint) (consensus.TxOutput, bool) {
	out, ok := m[op]
	return out, ok
}

// diskUTXOSource reads through to the bbolt-backed utxo bucket, so
// non-genesis blocks validate against the authoritative on-disk set rather
// than a full in-memory snapshot.
type diskUTXOSource struct{ d *DB }

func (s diskUTXOSource) GetUTXO(op consensus.OutPoint) (consensus.TxOutput, bool) {
	out, ok, err := s.d.GetUTXO(op)
	if err != nil {
		return consensus.TxOutput{}, false
	}
	return out, ok
}
