package consensus

// Consensus-critical constants (spec §4.5, §4.2, §4.3). These are bit-exact
// across every node; changing any of them is a hard fork.
const (
	// TargetBlockIntervalSecs is the desired average spacing between blocks.
	TargetBlockIntervalSecs uint64 = 300
	// RetargetInterval is the number of blocks per difficulty epoch.
	RetargetInterval uint64 = 1008
	// MaxAdjustmentFactor bounds a single retarget's swing in either direction.
	MaxAdjustmentFactor uint64 = 4
	// ExpectedEpochTimeSecs = RetargetInterval * TargetBlockIntervalSecs.
	ExpectedEpochTimeSecs uint64 = RetargetInterval * TargetBlockIntervalSecs

	// MaxFutureDriftSecs is how far a block's timestamp may exceed wall-clock.
	MaxFutureDriftSecs uint64 = 2 * 60 * 60

	// MaxTxSizeBytes bounds a single transaction's canonical encoding.
	MaxTxSizeBytes = 1 << 20 // 1 MiB
	// MaxTxInputs and MaxTxOutputs bound a single transaction's shape.
	MaxTxInputs  = 10_000
	MaxTxOutputs = 10_000
	// MinFeePerByte is the mempool/validator admission floor.
	MinFeePerByte uint64 = 1

	// MaxBlockWeightBytes bounds the sum of canonical tx sizes in a block.
	MaxBlockWeightBytes = 4 << 20 // 4 MiB

	// ContractDeployDefaultStorageQuota and ContractDeployMaxValueBytes are
	// the defaults assigned to a freshly deployed contract (spec §4.7).
	ContractDeployDefaultStorageQuota = 10_000
	ContractDeployMaxValueBytes       = 1024

	// Block subsidy schedule. Spec §4.3/§8 reference "subsidy(height)" and
	// a fixed total supply without pinning exact numbers; this keeps the
	// teacher's smoothly-decaying emission curve (consensus/subsidy.go)
	// rather than a Bitcoin-style halving — documented in DESIGN.md.
	MineableCap          uint64 = 21_000_000 * 1_0000_0000
	EmissionSpeedFactor         = 20
	TailEmissionPerBlock uint64 = 1_000_000
)

// maxTargetBig is the ceiling any decoded or retargeted 256-bit target
// saturates to: MAX_INT (2^256-1) right-shifted by 32, per spec §4.1.
var maxTargetBig = func() [32]byte {
	var full [32]byte
	for i := range full {
		full[i] = 0xff
	}
	t := bytesToBigEndianShifted(full, 32)
	return t
}()

// bytesToBigEndianShifted right-shifts the 256-bit big-endian value in b by
// shiftBits and returns the result re-packed into 32 bytes.
func bytesToBigEndianShifted(b [32]byte, shiftBits uint) [32]byte {
	shiftBytes := shiftBits / 8
	var out [32]byte
	if shiftBytes >= 32 {
		return out
	}
	copy(out[shiftBytes:], b[:32-shiftBytes])
	return out
}
