package node

import (
	"fmt"

	"boundless.dev/node/consensus"
)

// DevnetGenesisTimestamp is the fixed timestamp baked into DefaultDevnetGenesis
// so every node on the "devnet" network computes the same genesis hash
// (and therefore the same chain ID) independent of when it first starts.
const DevnetGenesisTimestamp uint64 = 1_700_000_000

// DevnetGenesisRecipient is the fixed, publicly-known recipient of the
// devnet genesis coinbase. It intentionally is not any real node's
// signing key: genesis must be identical across every devnet node so
// they agree on a chain ID, independent of whose key created it.
var DevnetGenesisRecipient = consensus.HashBytes([]byte("boundless-devnet-genesis"))

// DefaultDevnetGenesis returns the shared devnet genesis block.
func DefaultDevnetGenesis() (consensus.Block, error) {
	return DevnetGenesis(DevnetGenesisRecipient, DevnetGenesisTimestamp)
}

// maxGenesisPowAttempts bounds the nonce search in DevnetGenesis; at the
// easiest possible target a solution is found on the first try in
// practice, so this is a deadlock guard, not a tuning knob.
const maxGenesisPowAttempts = 1_000_000

// DevnetGenesis builds a deterministic single-coinbase genesis block for
// local/dev networks, mined against the easiest difficulty target
// (spec §4.1's MAX_INT>>32 ceiling) so node startup never blocks on real
// proof-of-work. minerPubkeyHash receives the full height-0 subsidy.
func DevnetGenesis(minerPubkeyHash consensus.Hash, timestamp uint64) (consensus.Block, error) {
	coinbase := consensus.Transaction{
		Version: 1,
		Outputs: []consensus.TxOutput{{
			Amount:              consensus.BlockSubsidy(0, 0),
			RecipientPubkeyHash: minerPubkeyHash,
		}},
		Timestamp: timestamp,
	}

	block := consensus.Block{
		Header: consensus.BlockHeader{
			Version:          1,
			DifficultyTarget: consensus.EncodeCompactTarget(easiestTarget()),
			Timestamp:        timestamp,
			Height:           0,
		},
		Transactions: []consensus.Transaction{coinbase},
	}
	block.Header.MerkleRoot = consensus.MerkleRoot(consensus.TxHashes(block))

	for nonce := uint64(0); nonce < maxGenesisPowAttempts; nonce++ {
		block.Header.Nonce = nonce
		hash := consensus.BlockHeaderHash(block.Header)
		if consensus.CheckPow(hash, block.Header.DifficultyTarget) == nil {
			return block, nil
		}
	}
	return consensus.Block{}, fmt.Errorf("devnet genesis: no PoW solution found within %d attempts", maxGenesisPowAttempts)
}

// easiestTarget is MAX_INT>>32 (spec §4.1's target ceiling): the top 4
// bytes zero, the rest 0xff.
func easiestTarget() [32]byte {
	var t [32]byte
	for i := 4; i < len(t); i++ {
		t[i] = 0xff
	}
	return t
}
