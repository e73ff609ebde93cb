package store

import (
	"encoding/binary"
	"fmt"

	"boundless.dev/node/consensus"
)

func encodeOutpointKey(p consensus.OutPoint) []byte {
	// tx_hash(32) || output_index(u32 little-endian)
	out := make([]byte, 32+4)
	copy(out[0:32], p.TxHash[:])
	binary.LittleEndian.PutUint32(out[32:36], p.OutputIndex)
	return out
}

func decodeOutpointKey(b []byte) (consensus.OutPoint, error) {
	if len(b) != 36 {
		return consensus.OutPoint{}, fmt.Errorf("outpoint: expected 36 bytes, got %d", len(b))
	}
	var txHash consensus.Hash
	copy(txHash[:], b[0:32])
	outputIndex := binary.LittleEndian.Uint32(b[32:36])
	return consensus.OutPoint{TxHash: txHash, OutputIndex: outputIndex}, nil
}

// encodeUtxoEntry is this store's own on-disk KV encoding (not a
// consensus wire format): amount u64le | recipient_pubkey_hash(32) |
// script_len CompactSize | script.
func encodeUtxoEntry(out consensus.TxOutput) ([]byte, error) {
	if len(out.Script) > 0xffffffff {
		return nil, fmt.Errorf("utxo: script too large")
	}
	scriptLen := consensus.AppendCompactSize(nil, uint64(len(out.Script)))
	buf := make([]byte, 0, 8+32+len(scriptLen)+len(out.Script))
	buf = consensus.AppendU64le(buf, out.Amount)
	buf = append(buf, out.RecipientPubkeyHash[:]...)
	buf = append(buf, scriptLen...)
	buf = append(buf, out.Script...)
	return buf, nil
}

func decodeUtxoEntry(b []byte) (consensus.TxOutput, error) {
	if len(b) < 8+32 {
		return consensus.TxOutput{}, fmt.Errorf("utxo: truncated")
	}
	off := 0
	amount := binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	var recipient consensus.Hash
	copy(recipient[:], b[off:off+32])
	off += 32

	scriptLen, n, err := consensus.DecodeCompactSize(b[off:])
	if err != nil {
		return consensus.TxOutput{}, fmt.Errorf("utxo: script_len: %w", err)
	}
	off += n
	dataLen := int(scriptLen)
	if dataLen < 0 || off+dataLen != len(b) {
		return consensus.TxOutput{}, fmt.Errorf("utxo: bad script_len")
	}
	script := append([]byte(nil), b[off:off+dataLen]...)
	return consensus.TxOutput{Amount: amount, RecipientPubkeyHash: recipient, Script: script}, nil
}
