package consensus

import (
	"encoding/binary"

	"boundless.dev/node/crypto"
)

// Wire decoding, mirroring encode.go's layout field-for-field. Needed
// wherever a block or transaction arrives as bytes rather than as an
// already-constructed struct: block archival reload, p2p ingestion.

func readU32le(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, newErr(KindValidation, CodeParse, "decode: truncated u32")
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), off + 4, nil
}

func readU64le(b []byte, off int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, off, newErr(KindValidation, CodeParse, "decode: truncated u64")
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), off + 8, nil
}

func readHash(b []byte, off int) (Hash, int, error) {
	var h Hash
	if off+32 > len(b) {
		return h, off, newErr(KindValidation, CodeParse, "decode: truncated hash")
	}
	copy(h[:], b[off:off+32])
	return h, off + 32, nil
}

func readBytesWithLen(b []byte, off int) ([]byte, int, error) {
	n, consumed, err := DecodeCompactSize(b[off:])
	if err != nil {
		return nil, off, err
	}
	off += consumed
	if uint64(off)+n > uint64(len(b)) {
		return nil, off, newErr(KindValidation, CodeParse, "decode: truncated length-prefixed field")
	}
	out := append([]byte(nil), b[off:off+int(n)]...)
	return out, off + int(n), nil
}

func readNonce(b []byte, off int) (*uint64, int, error) {
	if off >= len(b) {
		return nil, off, newErr(KindValidation, CodeParse, "decode: truncated nonce flag")
	}
	flag := b[off]
	off++
	if flag == 0 {
		return nil, off, nil
	}
	v, off, err := readU64le(b, off)
	if err != nil {
		return nil, off, err
	}
	return &v, off, nil
}

func parseTxInput(b []byte, off int) (TxInput, int, error) {
	var in TxInput
	var err error
	in.PreviousOutputHash, off, err = readHash(b, off)
	if err != nil {
		return in, off, err
	}
	in.OutputIndex, off, err = readU32le(b, off)
	if err != nil {
		return in, off, err
	}
	if off >= len(b) {
		return in, off, newErr(KindValidation, CodeParse, "decode: truncated signature tag")
	}
	in.Signature.Tag = crypto.Tag(b[off])
	off++
	in.Signature.Bytes, off, err = readBytesWithLen(b, off)
	if err != nil {
		return in, off, err
	}
	in.PublicKey, off, err = readBytesWithLen(b, off)
	if err != nil {
		return in, off, err
	}
	in.Nonce, off, err = readNonce(b, off)
	if err != nil {
		return in, off, err
	}
	return in, off, nil
}

func parseTxOutput(b []byte, off int) (TxOutput, int, error) {
	var out TxOutput
	var err error
	out.Amount, off, err = readU64le(b, off)
	if err != nil {
		return out, off, err
	}
	out.RecipientPubkeyHash, off, err = readHash(b, off)
	if err != nil {
		return out, off, err
	}
	out.Script, off, err = readBytesWithLen(b, off)
	if err != nil {
		return out, off, err
	}
	return out, off, nil
}

// ParseTransaction decodes a single canonically-encoded transaction from b,
// the inverse of transactionBytes. Trailing bytes are not an error — callers
// parsing a sequence of length-prefixed transactions slice b themselves.
func ParseTransaction(b []byte) (Transaction, error) {
	var tx Transaction
	var err error
	off := 0
	tx.Version, off, err = readU32le(b, off)
	if err != nil {
		return Transaction{}, err
	}
	nIn, consumed, err := DecodeCompactSize(b[off:])
	if err != nil {
		return Transaction{}, err
	}
	off += consumed
	tx.Inputs = make([]TxInput, nIn)
	for i := range tx.Inputs {
		tx.Inputs[i], off, err = parseTxInput(b, off)
		if err != nil {
			return Transaction{}, err
		}
	}
	nOut, consumed, err := DecodeCompactSize(b[off:])
	if err != nil {
		return Transaction{}, err
	}
	off += consumed
	tx.Outputs = make([]TxOutput, nOut)
	for i := range tx.Outputs {
		tx.Outputs[i], off, err = parseTxOutput(b, off)
		if err != nil {
			return Transaction{}, err
		}
	}
	tx.Timestamp, off, err = readU64le(b, off)
	if err != nil {
		return Transaction{}, err
	}
	tx.Data, _, err = readBytesWithLen(b, off)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// ParseBlockHeader decodes a fixed-layout block header, the inverse of
// blockHeaderBytes.
func ParseBlockHeader(b []byte) (BlockHeader, error) {
	const want = 4 + 32 + 32 + 8 + 4 + 8 + 8
	if len(b) != want {
		return BlockHeader{}, newErr(KindValidation, CodeParse, "decode: block header wrong length")
	}
	var h BlockHeader
	var err error
	off := 0
	h.Version, off, err = readU32le(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	h.PreviousHash, off, err = readHash(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	h.MerkleRoot, off, err = readHash(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	h.Timestamp, off, err = readU64le(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	h.DifficultyTarget, off, err = readU32le(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	h.Nonce, off, err = readU64le(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	h.Height, _, err = readU64le(b, off)
	if err != nil {
		return BlockHeader{}, err
	}
	return h, nil
}

// ParseBlock decodes a full block, the inverse of BlockBytes.
func ParseBlock(b []byte) (Block, error) {
	const headerLen = 4 + 32 + 32 + 8 + 4 + 8 + 8
	if len(b) < headerLen {
		return Block{}, newErr(KindValidation, CodeParse, "decode: block shorter than header")
	}
	header, err := ParseBlockHeader(b[:headerLen])
	if err != nil {
		return Block{}, err
	}
	off := headerLen
	nTx, consumed, err := DecodeCompactSize(b[off:])
	if err != nil {
		return Block{}, err
	}
	off += consumed
	txs := make([]Transaction, nTx)
	for i := range txs {
		txBytes, next, err := readBytesWithLen(b, off)
		if err != nil {
			return Block{}, err
		}
		off = next
		txs[i], err = ParseTransaction(txBytes)
		if err != nil {
			return Block{}, err
		}
	}
	return Block{Header: header, Transactions: txs}, nil
}
