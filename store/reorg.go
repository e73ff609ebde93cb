package store

import (
	"fmt"

	"boundless.dev/node/consensus"

	bolt "go.etcd.io/bbolt"
)

// findForkPoint returns the common ancestor of a and b, plus each side's
// path of descendants down to (but excluding) that ancestor, ordered from
// the given tip back toward the fork.
func (d *DB) findForkPoint(a, b consensus.Hash) (fork consensus.Hash, pathA, pathB []consensus.Hash, err error) {
	idxA, ok, err := d.GetIndex(a)
	if err != nil {
		return consensus.Hash{}, nil, nil, err
	}
	if !ok {
		return consensus.Hash{}, nil, nil, fmt.Errorf("reorg: unknown hash %s", hex32(a))
	}
	idxB, ok, err := d.GetIndex(b)
	if err != nil {
		return consensus.Hash{}, nil, nil, err
	}
	if !ok {
		return consensus.Hash{}, nil, nil, fmt.Errorf("reorg: unknown hash %s", hex32(b))
	}

	curA, heightA := a, idxA.Height
	curB, heightB := b, idxB.Height

	for heightA > heightB {
		pathA = append(pathA, curA)
		idx, ok, err := d.GetIndex(curA)
		if err != nil || !ok {
			return consensus.Hash{}, nil, nil, fmt.Errorf("reorg: walk back a: %v", err)
		}
		curA = consensus.Hash(idx.PrevHash)
		heightA--
	}
	for heightB > heightA {
		pathB = append(pathB, curB)
		idx, ok, err := d.GetIndex(curB)
		if err != nil || !ok {
			return consensus.Hash{}, nil, nil, fmt.Errorf("reorg: walk back b: %v", err)
		}
		curB = consensus.Hash(idx.PrevHash)
		heightB--
	}

	for curA != curB {
		pathA = append(pathA, curA)
		pathB = append(pathB, curB)
		idxA, ok, err := d.GetIndex(curA)
		if err != nil || !ok {
			return consensus.Hash{}, nil, nil, fmt.Errorf("reorg: walk back to fork a: %v", err)
		}
		idxB, ok, err := d.GetIndex(curB)
		if err != nil || !ok {
			return consensus.Hash{}, nil, nil, fmt.Errorf("reorg: walk back to fork b: %v", err)
		}
		curA = consensus.Hash(idxA.PrevHash)
		curB = consensus.Hash(idxB.PrevHash)
	}
	return curA, pathA, pathB, nil
}

func reverseHashes(s []consensus.Hash) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// reorgTo disconnects the current tip's chain down to its fork with
// newTipHash, then connects newTipHash's chain up from that fork,
// recomputing and persisting each newly-connected block's UTXO delta and
// undo record, and finally advances the manifest tip.
func (d *DB) reorgTo(newTipHash consensus.Hash, newTipIndex BlockIndexEntry) error {
	tipHash, err := parseHex32(d.manifest.TipHashHex)
	if err != nil {
		return err
	}

	_, disconnect, connect, err := d.findForkPoint(consensus.Hash(tipHash), newTipHash)
	if err != nil {
		return err
	}

	// disconnect is ordered tip -> fork (newest first): undo each in that order.
	for _, h := range disconnect {
		undo, ok, err := d.GetUndo(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reorg: missing undo record for %s", hex32(h))
		}
		if err := d.db.Update(func(tx *bolt.Tx) error {
			bu := tx.Bucket(bucketUtxo)
			for _, op := range undo.Created {
				if err := bu.Delete(encodeOutpointKey(op)); err != nil {
					return err
				}
			}
			for _, s := range undo.Spent {
				val, err := encodeUtxoEntry(s.RestoredEntry)
				if err != nil {
					return err
				}
				if err := bu.Put(encodeOutpointKey(s.OutPoint), val); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}

	// connect is ordered newTip -> fork (newest first): reverse to connect oldest-first.
	reverseHashes(connect)
	for _, h := range connect {
		blockBytes, ok, err := d.GetBlockBytes(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reorg: missing block body for %s", hex32(h))
		}
		block, err := consensus.ParseBlock(blockBytes)
		if err != nil {
			return err
		}
		created, spent, undo, err := computeBlockDelta(d, block)
		if err != nil {
			return err
		}
		idx, ok, err := d.GetIndex(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reorg: missing index entry for %s", hex32(h))
		}
		if err := d.db.Update(func(tx *bolt.Tx) error {
			undoBytes, err := encodeUndoRecord(undo)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketUndo).Put(h[:], undoBytes); err != nil {
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
		}); err != nil {
			return err
		}
		idx.Status = BlockStatusValid
		if err := d.PutIndex(h, *idx); err != nil {
			return err
		}
	}

	return d.advanceManifestTip(newTipHash, newTipIndex.Height, newTipIndex.CumulativeWork)
}
