package consensus

import "boundless.dev/node/crypto"

// Address is the SHA3-256 hash of a public key (spec §2).
type Address [32]byte

// OutPoint identifies a single transaction output: the hash of the
// transaction that created it and the output's index within that
// transaction.
type OutPoint struct {
	TxHash      Hash
	OutputIndex uint32
}

// Signature is the tagged signature variant from spec §2: every
// signature carries the scheme it was produced with, so verification
// always dispatches on an explicit tag instead of guessing from key
// length.
type Signature struct {
	Tag   crypto.Tag
	Bytes []byte
}

// TxInput spends a previously-unspent output. PublicKey is interpreted
// according to Signature.Tag (for TagHybrid it is
// classical_public(32) || pqc_public, see crypto.verifyHybrid).
type TxInput struct {
	PreviousOutputHash Hash
	OutputIndex        uint32
	Signature          Signature
	PublicKey          []byte
	Nonce              *uint64
}

// TxOutput creates a new spendable output, or — when RecipientPubkeyHash
// equals ContractDeploymentMarker — registers a new WASM contract.
type TxOutput struct {
	Amount              uint64
	RecipientPubkeyHash Hash
	Script              []byte
}

// ContractDeploymentMarker is the literal 32-byte recipient hash that
// marks an output as a contract deployment rather than a value transfer.
// Grounded on original_source/core/src/contract.rs::CONTRACT_DEPLOYMENT_MARKER;
// resolves spec §9's open question about the magic address.
var ContractDeploymentMarker = Hash{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// IsContractDeployment reports whether out registers a new contract.
func (out TxOutput) IsContractDeployment() bool {
	return out.RecipientPubkeyHash == ContractDeploymentMarker && len(out.Script) > 0
}

// Transaction is the full spec §2 transaction. Data is an optional
// opaque payload (e.g. contract call data, proof anchor metadata).
type Transaction struct {
	Version   uint32
	Inputs    []TxInput
	Outputs   []TxOutput
	Timestamp uint64
	Data      []byte
}

// BlockHeader is the spec §2 block header. Height is carried explicitly
// (unlike the teacher's header, which derives height from chain
// position) because spec invariant I2 requires it to be checkable
// without external context.
type BlockHeader struct {
	Version          uint32
	PreviousHash     Hash
	MerkleRoot       Hash
	Timestamp        uint64
	DifficultyTarget uint32 // compact encoding, see target.go
	Nonce            uint64
	Height           uint64
}

// Block is a header plus its transactions; Transactions[0] must be the
// coinbase.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}
