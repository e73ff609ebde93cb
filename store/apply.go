package store

import (
	"fmt"
	"math/big"

	"boundless.dev/node/consensus"

	bolt "go.etcd.io/bbolt"
)

// ApplyDecision is the outcome of offering a block to the store.
type ApplyDecision string

const (
	ApplyAccepted   ApplyDecision = "ACCEPTED"    // extended the current best chain
	ApplyOrphaned   ApplyDecision = "ORPHANED"    // parent unknown; stored, not indexed
	ApplyStoredFork ApplyDecision = "STORED_FORK" // valid but not the best chain
	ApplyReorged    ApplyDecision = "REORGED"     // became the best chain via a reorg
)

// persistAppliedBlock writes a block's header, body, index entry, undo
// record, and UTXO delta in one bbolt transaction.
func (d *DB) persistAppliedBlock(
	blockHash consensus.Hash,
	block consensus.Block,
	undo UndoRecord,
	created map[consensus.OutPoint]consensus.TxOutput,
	spent []consensus.OutPoint,
	index BlockIndexEntry,
) error {
	headerBytes := encodeBlockHeaderStrict(block.Header)
	blockBytes := consensus.BlockBytes(block)
	undoBytes, err := encodeUndoRecord(undo)
	if err != nil {
		return err
	}
	indexBytes, err := encodeIndexEntry(index)
	if err != nil {
		return err
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(blockHash[:], headerBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(blockHash[:], blockBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(blockHash[:], indexBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUndo).Put(blockHash[:], undoBytes); err != nil {
			return err
		}
		bu := tx.Bucket(bucketUtxo)
		for _, op := range spent {
			if err := bu.Delete(encodeOutpointKey(op)); err != nil {
				return err
			}
		}
		for op, out := range created {
			val, err := encodeUtxoEntry(out)
			if err != nil {
				return err
			}
			if err := bu.Put(encodeOutpointKey(op), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// windowStartTimestamp walks back n index entries from fromHash (following
// PrevHash) and returns that ancestor's cached timestamp, for computing the
// actual elapsed time of a retarget epoch (spec §4.5).
func (d *DB) windowStartTimestamp(fromHash consensus.Hash, n uint64) (uint64, error) {
	cur := fromHash
	for i := uint64(0); i < n; i++ {
		idx, ok, err := d.GetIndex(cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("apply: missing ancestor %d steps back from %s", n, hex32(fromHash))
		}
		cur = consensus.Hash(idx.PrevHash)
	}
	idx, ok, err := d.GetIndex(cur)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("apply: missing window-start ancestor")
	}
	return idx.Timestamp, nil
}

// buildPrevContext assembles the PrevBlockContext a candidate child of
// parentHash needs to run consensus.ValidateBlock, including the
// precomputed retarget target on an epoch boundary.
func (d *DB) buildPrevContext(parentHash consensus.Hash, childHeight uint64) (consensus.PrevBlockContext, error) {
	parent, ok, err := d.GetIndex(parentHash)
	if err != nil {
		return consensus.PrevBlockContext{}, err
	}
	if !ok {
		return consensus.PrevBlockContext{}, fmt.Errorf("apply: unknown parent")
	}
	ctx := consensus.PrevBlockContext{
		Height:           parent.Height,
		BestHash:         parentHash,
		Timestamp:        parent.Timestamp,
		DifficultyTarget: parent.DifficultyTarget,
		AlreadyGenerated: parent.AlreadyGenerated,
	}
	if consensus.ShouldAdjustDifficulty(childHeight) {
		windowStart, err := d.windowStartTimestamp(parentHash, consensus.RetargetInterval-1)
		if err != nil {
			return consensus.PrevBlockContext{}, err
		}
		actualSecs := parent.Timestamp - windowStart
		if parent.Timestamp < windowStart {
			actualSecs = 0
		}
		expected, err := consensus.AdjustDifficulty(parent.DifficultyTarget, actualSecs, consensus.ExpectedEpochTimeSecs)
		if err != nil {
			return consensus.PrevBlockContext{}, err
		}
		ctx.ExpectedTarget = expected
	}
	return ctx, nil
}

// ApplyBlock offers a fully-formed block to the store. It validates the
// block against the state its parent implies, and — when the block
// extends or beats the current tip — persists it and updates the
// manifest, triggering a reorg if the block forks off an ancestor of the
// current tip with greater cumulative work.
func (d *DB) ApplyBlock(block consensus.Block, wallClock uint64) (ApplyDecision, error) {
	if d == nil || d.db == nil {
		return "", fmt.Errorf("store: not open")
	}
	if d.manifest == nil {
		return "", fmt.Errorf("store: chain not initialized, call InitGenesis first")
	}

	blockHash := consensus.BlockHeaderHash(block.Header)
	if _, ok, err := d.GetIndex(blockHash); err != nil {
		return "", err
	} else if ok {
		return "", fmt.Errorf("apply: block already known")
	}

	parentHash := block.Header.PreviousHash
	parentIdx, ok, err := d.GetIndex(parentHash)
	if err != nil {
		return "", err
	}
	if !ok {
		// Parent not yet known: store header+body so a later sibling/child
		// delivery can discover it, but do not index or validate further.
		if err := d.db.Update(func(tx *bolt.Tx) error {
			if err := tx.Bucket(bucketHeaders).Put(blockHash[:], encodeBlockHeaderStrict(block.Header)); err != nil {
				return err
			}
			return tx.Bucket(bucketBlocks).Put(blockHash[:], consensus.BlockBytes(block))
		}); err != nil {
			return "", err
		}
		return ApplyOrphaned, nil
	}

	prevCtx, err := d.buildPrevContext(parentHash, block.Header.Height)
	if err != nil {
		return "", err
	}

	tipHash, err := parseHex32(d.manifest.TipHashHex)
	if err != nil {
		return "", err
	}

	var result consensus.BlockValidationResult
	var work *big.Int
	var created map[consensus.OutPoint]consensus.TxOutput
	var spent []consensus.OutPoint
	var undo UndoRecord

	if parentHash == tipHash {
		// Common case: extends the current tip directly. Validate against
		// the live on-disk UTXO set.
		result, err = consensus.ValidateBlock(block, prevCtx, diskUTXOSource{d}, wallClock)
		if err != nil {
			return "", err
		}
		created, spent, undo, err = computeBlockDelta(d, block)
		if err != nil {
			return "", err
		}
		work, err = d.cumulativeWorkFor(parentIdx, block.Header.DifficultyTarget)
		if err != nil {
			return "", err
		}
		if err := d.persistAppliedBlock(blockHash, block, undo, created, spent, BlockIndexEntry{
			Height:           block.Header.Height,
			PrevHash:         parentHash,
			CumulativeWork:   work,
			Status:           BlockStatusValid,
			AlreadyGenerated: prevCtx.AlreadyGenerated + consensus.BlockSubsidy(block.Header.Height, prevCtx.AlreadyGenerated),
			DifficultyTarget: block.Header.DifficultyTarget,
			Timestamp:        block.Header.Timestamp,
		}); err != nil {
			return "", err
		}
		if err := d.advanceManifestTip(blockHash, block.Header.Height, work); err != nil {
			return "", err
		}
		return ApplyAccepted, nil
	}

	// Forks off some ancestor of the tip. Validate using a UTXO view
	// rebuilt at the fork parent (not the live tip-relative set), then
	// decide whether its cumulative work beats the tip.
	utxoAtParent, err := d.utxoSnapshotAt(parentHash)
	if err != nil {
		return "", err
	}
	result, err = consensus.ValidateBlock(block, prevCtx, utxoAtParent, wallClock)
	if err != nil {
		return "", err
	}
	_ = result
	work, err = d.cumulativeWorkFor(parentIdx, block.Header.DifficultyTarget)
	if err != nil {
		return "", err
	}

	index := BlockIndexEntry{
		Height:           block.Header.Height,
		PrevHash:         parentHash,
		CumulativeWork:   work,
		Status:           BlockStatusValid,
		AlreadyGenerated: prevCtx.AlreadyGenerated + consensus.BlockSubsidy(block.Header.Height, prevCtx.AlreadyGenerated),
		DifficultyTarget: block.Header.DifficultyTarget,
		Timestamp:        block.Header.Timestamp,
	}
	headerBytes := encodeBlockHeaderStrict(block.Header)
	blockBytes := consensus.BlockBytes(block)
	indexBytes, err := encodeIndexEntry(index)
	if err != nil {
		return "", err
	}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(blockHash[:], headerBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(blockHash[:], blockBytes); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(blockHash[:], indexBytes)
	}); err != nil {
		return "", err
	}

	tipWork := new(big.Int)
	if _, ok := tipWork.SetString(d.manifest.TipCumulativeWorkDec, 10); !ok {
		return "", fmt.Errorf("apply: manifest tip_cumulative_work: parse")
	}
	if work.Cmp(tipWork) <= 0 {
		return ApplyStoredFork, nil
	}
	if err := d.reorgTo(blockHash, index); err != nil {
		return "", err
	}
	return ApplyReorged, nil
}

func (d *DB) cumulativeWorkFor(parent *BlockIndexEntry, childTargetCompact uint32) (*big.Int, error) {
	w, err := WorkFromTarget(childTargetCompact)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(parent.CumulativeWork, w), nil
}

func (d *DB) advanceManifestTip(tipHash consensus.Hash, height uint64, work *big.Int) error {
	m := &Manifest{
		SchemaVersion:           SchemaVersionV1,
		ChainIDHex:              d.manifest.ChainIDHex,
		TipHashHex:              hex32(tipHash),
		TipHeight:               height,
		TipCumulativeWorkDec:    work.Text(10),
		LastAppliedBlockHashHex: hex32(tipHash),
		LastAppliedHeight:       height,
	}
	return d.SetManifest(m)
}

// computeBlockDelta derives the UTXO set changes and undo record a block
// applied on top of the live on-disk UTXO set would produce, without
// writing anything.
func computeBlockDelta(d *DB, block consensus.Block) (created map[consensus.OutPoint]consensus.TxOutput, spent []consensus.OutPoint, undo UndoRecord, err error) {
	created = make(map[consensus.OutPoint]consensus.TxOutput)
	for i, tx := range block.Transactions {
		isCoinbase := i == 0
		if !isCoinbase {
			for _, in := range tx.Inputs {
				op := consensus.OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}
				var restored consensus.TxOutput
				if out, ok := created[op]; ok {
					restored = out
					delete(created, op)
				} else {
					var gerr error
					restored, gerr = d.mustGetUTXO(op)
					if gerr != nil {
						return nil, nil, UndoRecord{}, gerr
					}
				}
				undo.Spent = append(undo.Spent, UndoSpent{OutPoint: op, RestoredEntry: restored})
				spent = append(spent, op)
			}
		}
		txHash := consensus.TxHash(tx)
		for idx, out := range tx.Outputs {
			op := consensus.OutPoint{TxHash: txHash, OutputIndex: uint32(idx)}
			created[op] = out
			undo.Created = append(undo.Created, op)
		}
	}
	return created, spent, undo, nil
}

func (d *DB) mustGetUTXO(op consensus.OutPoint) (consensus.TxOutput, error) {
	out, ok, err := d.GetUTXO(op)
	if err != nil {
		return consensus.TxOutput{}, err
	}
	if !ok {
		return consensus.TxOutput{}, fmt.Errorf("apply: missing utxo %+v", op)
	}
	return out, nil
}

// utxoSnapshotAt rebuilds the UTXO set as of targetHash, which may be off
// the current best chain entirely (a stored fork candidate's parent). It
// starts from the live on-disk set, undoes every block between the tip and
// the fork point shared with targetHash, then forward-replays every stored
// block between that fork point and targetHash. Used only off the hot path
// (validating a block whose parent is not the current tip).
func (d *DB) utxoSnapshotAt(targetHash consensus.Hash) (mapUTXOSource, error) {
	live, err := d.LoadUTXOSet()
	if err != nil {
		return nil, err
	}
	tipHash, err := parseHex32(d.manifest.TipHashHex)
	if err != nil {
		return nil, err
	}

	_, disconnect, connect, err := d.findForkPoint(consensus.Hash(tipHash), targetHash)
	if err != nil {
		return nil, err
	}

	for _, h := range disconnect {
		undo, ok, err := d.GetUndo(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("apply: missing undo record for %s", hex32(h))
		}
		for _, op := range undo.Created {
			delete(live, op)
		}
		for _, s := range undo.Spent {
			live[s.OutPoint] = s.RestoredEntry
		}
	}

	reverseHashes(connect)
	for _, h := range connect {
		blockBytes, ok, err := d.GetBlockBytes(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("apply: missing block body for %s", hex32(h))
		}
		block, err := consensus.ParseBlock(blockBytes)
		if err != nil {
			return nil, err
		}
		for i, tx := range block.Transactions {
			if i != 0 {
				for _, in := range tx.Inputs {
					delete(live, consensus.OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex})
				}
			}
			txHash := consensus.TxHash(tx)
			for idx, out := range tx.Outputs {
				live[consensus.OutPoint{TxHash: txHash, OutputIndex: uint32(idx)}] = out
			}
		}
	}
	return mapUTXOSource(live), nil
}
