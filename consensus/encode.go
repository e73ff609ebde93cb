package consensus

import "encoding/binary"

// Canonical serialization (spec §3, §4.1): fixed field order, CompactSize
// length prefixes for every variable-length field, little-endian fixed
// integers. This supersedes the teacher's covenant-model TxBytes/BlockBytes
// (which serialized a different Tx/Output/Witness shape entirely) — the
// wire-layout technique (append into a growable []byte, CompactSize for
// counts/lengths) is kept, the field set is spec's.

func appendHash(dst []byte, h Hash) []byte {
	return append(dst, h[:]...)
}

func appendBytesWithLen(dst []byte, b []byte) []byte {
	dst = AppendCompactSize(dst, uint64(len(b)))
	return append(dst, b...)
}

// txInputBytes appends the full (signature-included) encoding of in to dst.
func txInputBytes(dst []byte, in TxInput) []byte {
	dst = appendHash(dst, in.PreviousOutputHash)
	dst = AppendU32le(dst, in.OutputIndex)
	dst = append(dst, byte(in.Signature.Tag))
	dst = appendBytesWithLen(dst, in.Signature.Bytes)
	dst = appendBytesWithLen(dst, in.PublicKey)
	dst = appendNonce(dst, in.Nonce)
	return dst
}

// txInputSigningBytes appends in's encoding EXCLUDING the signature, per
// spec §3: "every field except input signatures" is part of the signing
// hash's input.
func txInputSigningBytes(dst []byte, in TxInput) []byte {
	dst = appendHash(dst, in.PreviousOutputHash)
	dst = AppendU32le(dst, in.OutputIndex)
	dst = appendBytesWithLen(dst, in.PublicKey)
	dst = appendNonce(dst, in.Nonce)
	return dst
}

func appendNonce(dst []byte, nonce *uint64) []byte {
	if nonce == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return AppendU64le(dst, *nonce)
}

func txOutputBytes(dst []byte, out TxOutput) []byte {
	dst = AppendU64le(dst, out.Amount)
	dst = appendHash(dst, out.RecipientPubkeyHash)
	dst = appendBytesWithLen(dst, out.Script)
	return dst
}

// transactionBytes serializes tx in full, including input signatures. Its
// hash is the transaction hash (OutPoint.TxHash, block Merkle leaves).
func transactionBytes(tx Transaction) []byte {
	out := make([]byte, 0, 128)
	out = AppendU32le(out, tx.Version)
	out = AppendCompactSize(out, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = txInputBytes(out, in)
	}
	out = AppendCompactSize(out, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = txOutputBytes(out, o)
	}
	out = AppendU64le(out, tx.Timestamp)
	out = appendBytesWithLen(out, tx.Data)
	return out
}

// EncodeTransaction returns tx's canonical wire encoding (spec §3), the
// same bytes ParseTransaction consumes and TxHash hashes.
func EncodeTransaction(tx Transaction) []byte {
	return transactionBytes(tx)
}

// transactionSigningBytes serializes tx with every input's signature bytes
// omitted (spec §3 "canonical hashes" / "signing hash").
func transactionSigningBytes(tx Transaction) []byte {
	out := make([]byte, 0, 128)
	out = AppendU32le(out, tx.Version)
	out = AppendCompactSize(out, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = txInputSigningBytes(out, in)
	}
	out = AppendCompactSize(out, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = txOutputBytes(out, o)
	}
	out = AppendU64le(out, tx.Timestamp)
	out = appendBytesWithLen(out, tx.Data)
	return out
}

// TxHash returns the transaction hash: hash of tx's full canonical
// serialization (spec §3).
func TxHash(tx Transaction) Hash {
	return HashBytes(transactionBytes(tx))
}

// SigningHash returns the message a transaction's inputs are signed over:
// hash of tx's canonical serialization with all input signature bytes
// excluded (spec §3, I5). It is independent of signature bytes by
// construction, preventing signature malleability.
func SigningHash(tx Transaction) Hash {
	return HashBytes(transactionSigningBytes(tx))
}

// TransactionSizeBytes returns len(transactionBytes(tx)) — the canonical
// encoded size used by §4.2's per-tx size ceiling and fee-rate checks.
func TransactionSizeBytes(tx Transaction) int {
	return len(transactionBytes(tx))
}

// blockHeaderBytes serializes header in the fixed canonical field order
// spec §3 names: version, previous_hash, merkle_root, timestamp,
// difficulty_target, nonce, height.
func blockHeaderBytes(header BlockHeader) []byte {
	out := make([]byte, 0, 4+32+32+8+4+8+8)
	out = AppendU32le(out, header.Version)
	out = appendHash(out, header.PreviousHash)
	out = appendHash(out, header.MerkleRoot)
	out = AppendU64le(out, header.Timestamp)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], header.DifficultyTarget)
	out = append(out, tmp4[:]...)
	out = AppendU64le(out, header.Nonce)
	out = AppendU64le(out, header.Height)
	return out
}

// BlockHeaderHash returns the block hash: hash(header) with header
// serialized in the fixed canonical order (spec §3).
func BlockHeaderHash(header BlockHeader) Hash {
	return HashBytes(blockHeaderBytes(header))
}

// BlockBytes serializes a full block: its header followed by its
// transactions (full encoding, signatures included).
func BlockBytes(block Block) []byte {
	out := make([]byte, 0, 256)
	out = append(out, blockHeaderBytes(block.Header)...)
	out = AppendCompactSize(out, uint64(len(block.Transactions)))
	for _, tx := range block.Transactions {
		txBytes := transactionBytes(tx)
		out = appendBytesWithLen(out, txBytes)
	}
	return out
}

// TxHashes returns the transaction hash of every tx in block.Transactions,
// in order — the Merkle leaf set (spec §4.1).
func TxHashes(block Block) []Hash {
	hashes := make([]Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		hashes[i] = TxHash(tx)
	}
	return hashes
}
