package store

import (
	"encoding/binary"
	"fmt"

	"boundless.dev/node/consensus"

	bolt "go.etcd.io/bbolt"
)

// parseBlockHeaderBytesStrict decodes the fixed-layout header encoding
// this store persists headers in (spec §3 field order: version,
// previous_hash, merkle_root, timestamp, difficulty_target, nonce,
// height — all fixed-width, no CompactSize fields, so the layout is a
// constant length unlike the tx/block wire encodings).
func parseBlockHeaderBytesStrict(b []byte) (consensus.BlockHeader, error) {
	const want = 4 + 32 + 32 + 8 + 4 + 8 + 8
	if len(b) != want {
		return consensus.BlockHeader{}, fmt.Errorf("block-header-bytes: expected %d bytes, got %d", want, len(b))
	}
	var h consensus.BlockHeader
	off := 0
	h.Version = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	copy(h.PreviousHash[:], b[off:off+32])
	off += 32
	copy(h.MerkleRoot[:], b[off:off+32])
	off += 32
	h.Timestamp = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	h.DifficultyTarget = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	h.Nonce = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	h.Height = binary.LittleEndian.Uint64(b[off : off+8])
	return h, nil
}

func encodeBlockHeaderStrict(h consensus.BlockHeader) []byte {
	out := make([]byte, 0, 4+32+32+8+4+8+8)
	out = consensus.AppendU32le(out, h.Version)
	out = append(out, h.PreviousHash[:]...)
	out = append(out, h.MerkleRoot[:]...)
	out = consensus.AppendU64le(out, h.Timestamp)
	out = consensus.AppendU32le(out, h.DifficultyTarget)
	out = consensus.AppendU64le(out, h.Nonce)
	out = consensus.AppendU64le(out, h.Height)
	return out
}

func (d *DB) GetHeader(hash [32]byte) (*consensus.BlockHeader, bool, error) {
	var out *consensus.BlockHeader
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(hash[:])
		if v == nil {
			return nil
		}
		h, err := parseBlockHeaderBytesStrict(v)
		if err != nil {
			return err
		}
		out = &h
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

func (d *DB) PutHeaderStruct(hash [32]byte, h consensus.BlockHeader) error {
	return d.PutHeader(hash, encodeBlockHeaderStrict(h))
}

// BestChainBlocks returns every block on the current best chain from
// genesis to the tip, oldest first. Used to rebuild a derived view (such
// as node.ChainState's tx index) after a reorg moves the tip off a chain
// the view was built from.
func (d *DB) BestChainBlocks() ([]consensus.Block, error) {
	if d.manifest == nil {
		return nil, fmt.Errorf("store: chain not initialized")
	}
	tipHash, err := parseHex32(d.manifest.TipHashHex)
	if err != nil {
		return nil, err
	}
	var hashes []consensus.Hash
	cur := consensus.Hash(tipHash)
	for {
		hashes = append(hashes, cur)
		idx, ok, err := d.GetIndex(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("store: missing index entry for %s", hex32(cur))
		}
		if idx.Height == 0 {
			break
		}
		cur = consensus.Hash(idx.PrevHash)
	}
	reverseHashes(hashes)

	blocks := make([]consensus.Block, 0, len(hashes))
	for _, h := range hashes {
		raw, ok, err := d.GetBlockBytes(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("store: missing block body for %s", hex32(h))
		}
		block, err := consensus.ParseBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (d *DB) LoadUTXOSet() (map[consensus.OutPoint]consensus.TxOutput, error) {
	utxo := make(map[consensus.OutPoint]consensus.TxOutput)
	err := d.db.View(func(tx *bolt.Tx) error {
		bu := tx.Bucket(bucketUtxo)
		return bu.ForEach(func(k, v []byte) error {
			p, err := decodeOutpointKey(k)
			if err != nil {
				return err
			}
			e, err := decodeUtxoEntry(v)
			if err != nil {
				return err
			}
			utxo[p] = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return utxo, nil
}
