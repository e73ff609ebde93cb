package p2p

import (
	"encoding/binary"
	"fmt"

	"boundless.dev/node/consensus"
)

// GetBlocksPayload requests up to Count blocks starting at StartHeight
// (spec §6: GetBlocks{start_height:u64, count:u32} -> Blocks{blocks:[Block]}).
type GetBlocksPayload struct {
	StartHeight uint64
	Count       uint32
}

func EncodeGetBlocksPayload(p GetBlocksPayload) []byte {
	out := make([]byte, 12)
	binary.LittleEndian.PutUint64(out[0:8], p.StartHeight)
	binary.LittleEndian.PutUint32(out[8:12], p.Count)
	return out
}

func DecodeGetBlocksPayload(b []byte) (*GetBlocksPayload, error) {
	if len(b) != 12 {
		return nil, fmt.Errorf("p2p: getblocks: invalid payload length")
	}
	return &GetBlocksPayload{
		StartHeight: binary.LittleEndian.Uint64(b[0:8]),
		Count:       binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// BlocksPayload answers GetBlocks with a run of whole blocks, each
// length-prefixed with its own CompactSize so a reader can stop at any
// block boundary on error.
type BlocksPayload struct {
	Blocks []consensus.Block
}

func EncodeBlocksPayload(p BlocksPayload) []byte {
	out := consensus.AppendCompactSize(nil, uint64(len(p.Blocks)))
	for _, blk := range p.Blocks {
		blkBytes := consensus.BlockBytes(blk)
		out = consensus.AppendCompactSize(out, uint64(len(blkBytes)))
		out = append(out, blkBytes...)
	}
	return out
}

func DecodeBlocksPayload(b []byte) (*BlocksPayload, error) {
	n, used, err := consensus.DecodeCompactSize(b)
	if err != nil {
		return nil, fmt.Errorf("p2p: blocks: %w", err)
	}
	off := used
	blocks := make([]consensus.Block, 0, n)
	for i := uint64(0); i < n; i++ {
		blkLen, lused, err := consensus.DecodeCompactSize(b[off:])
		if err != nil {
			return nil, fmt.Errorf("p2p: blocks: block length: %w", err)
		}
		off += lused
		if uint64(len(b)-off) < blkLen {
			return nil, fmt.Errorf("p2p: blocks: truncated block")
		}
		blk, err := consensus.ParseBlock(b[off : off+int(blkLen)])
		if err != nil {
			return nil, fmt.Errorf("p2p: blocks: %w", err)
		}
		off += int(blkLen)
		blocks = append(blocks, blk)
	}
	if off != len(b) {
		return nil, fmt.Errorf("p2p: blocks: trailing bytes")
	}
	return &BlocksPayload{Blocks: blocks}, nil
}

// NewBlockPayload announces a single freshly mined/received block.
type NewBlockPayload struct {
	Block consensus.Block
}

func EncodeNewBlockPayload(p NewBlockPayload) []byte {
	return consensus.BlockBytes(p.Block)
}

func DecodeNewBlockPayload(b []byte) (*NewBlockPayload, error) {
	blk, err := consensus.ParseBlock(b)
	if err != nil {
		return nil, fmt.Errorf("p2p: newblock: %w", err)
	}
	return &NewBlockPayload{Block: blk}, nil
}

// NewTransactionPayload announces a single transaction for mempool admission.
type NewTransactionPayload struct {
	Transaction consensus.Transaction
}

func EncodeNewTransactionPayload(p NewTransactionPayload) []byte {
	return consensus.EncodeTransaction(p.Transaction)
}

func DecodeNewTransactionPayload(b []byte) (*NewTransactionPayload, error) {
	tx, err := consensus.ParseTransaction(b)
	if err != nil {
		return nil, fmt.Errorf("p2p: newtx: %w", err)
	}
	return &NewTransactionPayload{Transaction: tx}, nil
}
