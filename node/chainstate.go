package node

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"boundless.dev/node/consensus"
	"boundless.dev/node/contracts"
)

const (
	chainStateDiskVersion = 1
	chainStateFileName    = "chainstate.json"
)

// TxStatus is the tx_index status enum (spec §4.6).
type TxStatus string

const (
	TxPending   TxStatus = "Pending"
	TxConfirmed TxStatus = "Confirmed"
	TxFailed    TxStatus = "Failed"
)

// TxRecord is the tx_index value (spec §4.6).
type TxRecord struct {
	BlockHash   consensus.Hash
	BlockHeight uint64
	Timestamp   uint64
	Inputs      []consensus.OutPoint
	Outputs     []consensus.TxOutput
	Fee         uint64
	Status      TxStatus
}

// ProofAnchor is a contract-emitted attestation indexed by proof_id (spec
// §4.6): sha3_256(identity || proof_hash || timestamp LE64); see
// RecordProofAnchor.
type ProofAnchor struct {
	Identity  consensus.Address
	Type      string
	ProofHash consensus.Hash
	Height    uint64
	Timestamp uint64
	Metadata  []byte
}

// ContractInfo is the deploy-time record for a registered contract (spec
// §4.6, §4.7).
type ContractInfo struct {
	Wasm           []byte
	Deployer       consensus.Address
	DeployedHeight uint64
	DeployedTx     consensus.Hash
}

// ContractStorage is a contract's quota-bounded key/value store (spec
// §4.6, §4.7).
type ContractStorage struct {
	Quota       uint64
	Used        uint64
	KV          map[string][]byte
}

// ChainState is the authoritative, materialized chain view (spec §4.6):
// UTXO set, tx index (plus secondary indexes), proof anchors (plus
// secondary index), and contract registry/storage. Nonces guard
// signature replay on contract/account-typed transactions; balances are
// derived on demand from the UTXO set rather than stored directly.
type ChainState struct {
	mu sync.RWMutex

	HasTip            bool
	Height            uint64
	BestHash          consensus.Hash
	TotalSupply       uint64
	AlreadyGenerated  uint64
	CurrentDifficulty uint32

	Utxos  map[consensus.OutPoint]consensus.TxOutput
	Nonces map[consensus.Address]uint64

	TxIndex        map[consensus.Hash]TxRecord
	TxByAddress    map[consensus.Address][]consensus.Hash
	TxByHeight     map[uint64][]consensus.Hash

	Proofs         map[consensus.Hash]ProofAnchor
	ProofsByIdentity map[consensus.Address][]consensus.Hash

	Contracts map[consensus.Address]*ContractInfo
	Storage   map[consensus.Address]*ContractStorage
}

func NewChainState() *ChainState {
	return &ChainState{
		Utxos:            make(map[consensus.OutPoint]consensus.TxOutput),
		Nonces:           make(map[consensus.Address]uint64),
		TxIndex:          make(map[consensus.Hash]TxRecord),
		TxByAddress:      make(map[consensus.Address][]consensus.Hash),
		TxByHeight:       make(map[uint64][]consensus.Hash),
		Proofs:           make(map[consensus.Hash]ProofAnchor),
		ProofsByIdentity: make(map[consensus.Address][]consensus.Hash),
		Contracts:        make(map[consensus.Address]*ContractInfo),
		Storage:          make(map[consensus.Address]*ContractStorage),
	}
}

func ChainStatePath(dataDir string) string {
	return filepath.Join(dataDir, chainStateFileName)
}

// GetUTXO implements consensus.UTXOSource so ChainState can be validated
// against directly.
func (s *ChainState) GetUTXO(op consensus.OutPoint) (consensus.TxOutput, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.Utxos[op]
	return out, ok
}

// Snapshot returns the reader-visible fields exposed atomically (spec
// §4.6: height, best_hash, total_supply, current_difficulty).
func (s *ChainState) Snapshot() (height uint64, bestHash consensus.Hash, totalSupply uint64, difficulty uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Height, s.BestHash, s.TotalSupply, s.CurrentDifficulty
}

// GetBalance sums unspent outputs addressed to pubkeyHash (spec §4.6).
func (s *ChainState) GetBalance(pubkeyHash consensus.Hash) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, out := range s.Utxos {
		if out.RecipientPubkeyHash == pubkeyHash {
			total += out.Amount
		}
	}
	return total
}

// GetNonce returns the replay-guard nonce for an address (spec §2).
func (s *ChainState) GetNonce(addr consensus.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Nonces[addr]
}

// ApplyDelta is what ApplyBlock needs from a prior call to
// consensus.ValidateBlock: the per-tx fee list it already computed, so
// apply doesn't re-derive validation results.
type ApplyDelta struct {
	Fees []uint64
}

// ApplyBlock implements spec §4.6 apply_block: for each tx in order,
// remove spent UTXOs, add new UTXOs, update the tx_index and its
// secondary indexes, register contract deployments, recompute
// total_supply, and advance height/best_hash/current_difficulty. All
// mutations happen under a single write lock so no reader observes a
// partially-applied block (spec §5).
func (s *ChainState) ApplyBlock(block consensus.Block, delta ApplyDelta) error {
	if len(block.Transactions) == 0 {
		return errors.New("apply_block: empty block")
	}
	if len(delta.Fees) != len(block.Transactions) {
		return errors.New("apply_block: fee slice length mismatch")
	}

	for _, tx := range block.Transactions {
		for _, out := range tx.Outputs {
			if out.IsContractDeployment() {
				if err := contracts.ValidateBytecode(out.Script); err != nil {
					return fmt.Errorf("apply_block: contract deployment in tx %x: %w", consensus.TxHash(tx), err)
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	height := block.Header.Height
	var spentSum, createdSum uint64

	for i, tx := range block.Transactions {
		txHash := consensus.TxHash(tx)
		isCoinbase := i == 0

		var spent []consensus.OutPoint
		if !isCoinbase {
			for _, in := range tx.Inputs {
				op := consensus.OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}
				if out, ok := s.Utxos[op]; ok {
					spentSum += out.Amount
				}
				delete(s.Utxos, op)
				spent = append(spent, op)

				senderAddr := consensus.Address(consensus.HashBytes(in.PublicKey))
				s.TxByAddress[senderAddr] = append(s.TxByAddress[senderAddr], txHash)
				if in.Nonce != nil {
					s.Nonces[senderAddr] = *in.Nonce
				}
			}
		}

		for idx, out := range tx.Outputs {
			op := consensus.OutPoint{TxHash: txHash, OutputIndex: uint32(idx)}
			s.Utxos[op] = out
			createdSum += out.Amount

			recipientAddr := consensus.Address(out.RecipientPubkeyHash)
			s.TxByAddress[recipientAddr] = append(s.TxByAddress[recipientAddr], txHash)

			if out.IsContractDeployment() {
				contractAddr := consensus.Address(consensus.HashBytes(txHash[:]))
				s.Contracts[contractAddr] = &ContractInfo{
					Wasm:           out.Script,
					Deployer:       recipientAddr,
					DeployedHeight: height,
					DeployedTx:     txHash,
				}
				s.Storage[contractAddr] = &ContractStorage{
					Quota: consensus.ContractDeployDefaultStorageQuota,
					KV:    make(map[string][]byte),
				}
			}
		}

		s.TxIndex[txHash] = TxRecord{
			BlockHash:   consensus.BlockHeaderHash(block.Header),
			BlockHeight: height,
			Timestamp:   tx.Timestamp,
			Inputs:      spent,
			Outputs:     tx.Outputs,
			Fee:         delta.Fees[i],
			Status:      TxConfirmed,
		}
		s.TxByHeight[height] = append(s.TxByHeight[height], txHash)
	}

	s.HasTip = true
	s.Height = height
	s.BestHash = consensus.BlockHeaderHash(block.Header)
	s.CurrentDifficulty = block.Header.DifficultyTarget
	s.AlreadyGenerated += block.Transactions[0].Outputs[0].Amount
	s.TotalSupply = s.TotalSupply + createdSum - spentSum
	return nil
}

// replaceFrom atomically swaps this chain state's contents with fresh's.
// Used to rebuild the materialized view from the durable store after a
// reorg moves the best chain off the blocks this view was built from,
// without copying the mutex itself.
func (s *ChainState) replaceFrom(fresh *ChainState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HasTip = fresh.HasTip
	s.Height = fresh.Height
	s.BestHash = fresh.BestHash
	s.TotalSupply = fresh.TotalSupply
	s.AlreadyGenerated = fresh.AlreadyGenerated
	s.CurrentDifficulty = fresh.CurrentDifficulty
	s.Utxos = fresh.Utxos
	s.Nonces = fresh.Nonces
	s.TxIndex = fresh.TxIndex
	s.TxByAddress = fresh.TxByAddress
	s.TxByHeight = fresh.TxByHeight
	s.Proofs = fresh.Proofs
	s.ProofsByIdentity = fresh.ProofsByIdentity
	s.Contracts = fresh.Contracts
	s.Storage = fresh.Storage
}

// RecordProofAnchor registers a contract-emitted attestation (spec §4.6).
// proof_id = sha3_256(identity || proof_hash || timestamp LE64).
func (s *ChainState) RecordProofAnchor(anchor ProofAnchor) consensus.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 0, 32+32+8)
	buf = append(buf, anchor.Identity[:]...)
	buf = append(buf, anchor.ProofHash[:]...)
	buf = consensus.AppendU64le(buf, anchor.Timestamp)
	proofID := consensus.HashBytes(buf)

	s.Proofs[proofID] = anchor
	s.ProofsByIdentity[anchor.Identity] = append(s.ProofsByIdentity[anchor.Identity], proofID)
	return proofID
}

// --- disk persistence, grounded on the teacher's atomic JSON snapshot pattern ---

type chainStateDisk struct {
	Version           uint32          `json:"version"`
	HasTip            bool            `json:"has_tip"`
	Height            uint64          `json:"height"`
	BestHash          string          `json:"best_hash"`
	TotalSupply       uint64          `json:"total_supply"`
	AlreadyGenerated  uint64          `json:"already_generated"`
	CurrentDifficulty uint32          `json:"current_difficulty"`
	Utxos             []utxoDiskEntry `json:"utxos"`
	Nonces            []nonceDiskEntry `json:"nonces"`
}

type utxoDiskEntry struct {
	TxHash      string `json:"tx_hash"`
	OutputIndex uint32 `json:"output_index"`
	Amount      uint64 `json:"amount"`
	Recipient   string `json:"recipient_pubkey_hash"`
	Script      string `json:"script"`
}

type nonceDiskEntry struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

func LoadChainState(path string) (*ChainState, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewChainState(), nil
	}
	if err != nil {
		return nil, err
	}
	var disk chainStateDisk
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, fmt.Errorf("decode chainstate: %w", err)
	}
	return chainStateFromDisk(disk)
}

// Save persists the UTXO/nonce snapshot (spec's "state" column: a single
// serialized ChainState summary). tx_index/proofs/contracts are rebuilt
// from the block store on restart rather than duplicated here.
func (s *ChainState) Save(path string) error {
	if s == nil {
		return errors.New("nil chainstate")
	}
	s.mu.RLock()
	disk := stateToDisk(s)
	s.mu.RUnlock()

	raw, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chainstate: %w", err)
	}
	raw = append(raw, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return writeFileAtomic(path, raw, 0o600)
}

func stateToDisk(s *ChainState) chainStateDisk {
	utxos := make([]utxoDiskEntry, 0, len(s.Utxos))
	for op, out := range s.Utxos {
		utxos = append(utxos, utxoDiskEntry{
			TxHash:      hex.EncodeToString(op.TxHash[:]),
			OutputIndex: op.OutputIndex,
			Amount:      out.Amount,
			Recipient:   hex.EncodeToString(out.RecipientPubkeyHash[:]),
			Script:      hex.EncodeToString(out.Script),
		})
	}
	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].TxHash != utxos[j].TxHash {
			return utxos[i].TxHash < utxos[j].TxHash
		}
		return utxos[i].OutputIndex < utxos[j].OutputIndex
	})

	nonces := make([]nonceDiskEntry, 0, len(s.Nonces))
	for addr, n := range s.Nonces {
		nonces = append(nonces, nonceDiskEntry{Address: hex.EncodeToString(addr[:]), Nonce: n})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Address < nonces[j].Address })

	return chainStateDisk{
		Version:           chainStateDiskVersion,
		HasTip:            s.HasTip,
		Height:            s.Height,
		BestHash:          hex.EncodeToString(s.BestHash[:]),
		TotalSupply:       s.TotalSupply,
		AlreadyGenerated:  s.AlreadyGenerated,
		CurrentDifficulty: s.CurrentDifficulty,
		Utxos:             utxos,
		Nonces:            nonces,
	}
}

func chainStateFromDisk(disk chainStateDisk) (*ChainState, error) {
	if disk.Version != chainStateDiskVersion {
		return nil, fmt.Errorf("unsupported chainstate version: %d", disk.Version)
	}
	bestHash, err := parseHex32("best_hash", disk.BestHash)
	if err != nil {
		return nil, err
	}

	s := NewChainState()
	s.HasTip = disk.HasTip
	s.Height = disk.Height
	s.BestHash = bestHash
	s.TotalSupply = disk.TotalSupply
	s.AlreadyGenerated = disk.AlreadyGenerated
	s.CurrentDifficulty = disk.CurrentDifficulty

	for _, item := range disk.Utxos {
		txHash, err := parseHex32("utxo.tx_hash", item.TxHash)
		if err != nil {
			return nil, err
		}
		recipient, err := parseHex32("utxo.recipient_pubkey_hash", item.Recipient)
		if err != nil {
			return nil, err
		}
		script, err := parseHex("utxo.script", item.Script)
		if err != nil {
			return nil, err
		}
		op := consensus.OutPoint{TxHash: txHash, OutputIndex: item.OutputIndex}
		if _, exists := s.Utxos[op]; exists {
			return nil, fmt.Errorf("duplicate utxo outpoint: %s:%d", item.TxHash, item.OutputIndex)
		}
		s.Utxos[op] = consensus.TxOutput{Amount: item.Amount, RecipientPubkeyHash: recipient, Script: script}
	}

	for _, item := range disk.Nonces {
		raw, err := parseHex("nonce.address", item.Address)
		if err != nil {
			return nil, err
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("nonce.address: expected 32 bytes, got %d", len(raw))
		}
		var addr consensus.Address
		copy(addr[:], raw)
		s.Nonces[addr] = item.Nonce
	}

	return s, nil
}

func parseHex(name, value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed)%2 != 0 {
		return nil, fmt.Errorf("%s: odd-length hex", name)
	}
	out, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func parseHex32(name, value string) (consensus.Hash, error) {
	var out consensus.Hash
	raw, err := parseHex(name, value)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%s: expected 32 bytes, got %d", name, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
