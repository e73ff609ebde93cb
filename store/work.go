package store

import (
	"fmt"
	"math/big"

	"boundless.dev/node/consensus"
)

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// WorkFromTarget returns floor(2^256 / (target+1)) for PoW chainwork, given
// a block's compact difficulty target.
func WorkFromTarget(targetCompact uint32) (*big.Int, error) {
	target32, err := consensus.DecodeCompactTarget(targetCompact)
	if err != nil {
		return nil, fmt.Errorf("work: %w", err)
	}
	t := new(big.Int).SetBytes(target32[:])
	if t.Sign() <= 0 {
		return nil, fmt.Errorf("work: target must be > 0")
	}
	denom := new(big.Int).Add(t, big.NewInt(1))
	return new(big.Int).Quo(twoTo256, denom), nil
}

