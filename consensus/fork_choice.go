package consensus

import "math/big"

// WorkFromTarget computes the per-block chainwork contribution (spec §4.9,
// GLOSSARY "Chainwork"): floor(2^256 / (target+1)). The teacher's
// equivalent (fork_choice.go / node/store/work.go) both omit the "+1" and
// so diverge from the spec at the low-target extreme; this is the
// corrected formula.
func WorkFromTarget(targetCompact uint32) (*big.Int, error) {
	target, err := DecodeCompactTarget(targetCompact)
	if err != nil {
		return nil, err
	}
	t := new(big.Int).SetBytes(target[:])
	if t.Sign() < 0 {
		return nil, newErr(KindValidation, CodeParse, "fork_work: target is negative")
	}

	two256 := new(big.Int).Lsh(big.NewInt(1), 256)
	denom := new(big.Int).Add(t, big.NewInt(1))
	return new(big.Int).Div(two256, denom), nil
}

// ChainWork sums WorkFromTarget over a chain's compact targets in order
// (spec §4.9: "select the tip by greatest cumulative chainwork").
func ChainWork(targets []uint32) (*big.Int, error) {
	total := new(big.Int)
	for _, target := range targets {
		w, err := WorkFromTarget(target)
		if err != nil {
			return nil, err
		}
		total.Add(total, w)
	}
	return total, nil
}

// IsBetterChain reports whether candidateWork represents a strictly greater
// cumulative chainwork than currentWork — the sole criterion for triggering
// a reorg (spec §4.9, §8 scenario 5).
func IsBetterChain(candidateWork, currentWork *big.Int) bool {
	return candidateWork.Cmp(currentWork) > 0
}
