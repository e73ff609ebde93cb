package consensus

// PrevBlockContext is the slice of chain-state the block validator needs
// about the block it extends (spec §4.3 steps 1, 2, 8). The caller (chain
// state) assembles this from its authoritative tip.
type PrevBlockContext struct {
	Height           uint64
	BestHash         Hash
	Timestamp        uint64
	DifficultyTarget uint32
	// AlreadyGenerated is Σ subsidy-only coinbase value over heights
	// 1..Height (spec §4.3 step 6 / subsidy.go).
	AlreadyGenerated uint64
	// ExpectedTarget is DifficultyController.adjust(...)'s result,
	// precomputed by the caller when ShouldAdjustDifficulty(height) is
	// true; ignored otherwise (spec §4.3 step 8, I4).
	ExpectedTarget uint32
}

// BlockValidationResult is the pure outcome of validating a block: the
// per-tx fees collected, for the caller's bookkeeping (e.g. mempool
// eviction, total_supply recomputation).
type BlockValidationResult struct {
	Fees      []uint64
	TotalFees uint64
}

// overlayUTXOSource layers in-block created/spent outputs over a base
// UTXOSource, so a later transaction in the same block can spend an
// earlier one's outputs (spec §4.3 step 7, §5 "an input may reference an
// output created earlier in the same block").
type overlayUTXOSource struct {
	base    UTXOSource
	created map[OutPoint]TxOutput
	spent   map[OutPoint]struct{}
}

func (o *overlayUTXOSource) GetUTXO(op OutPoint) (TxOutput, bool) {
	if _, gone := o.spent[op]; gone {
		return TxOutput{}, false
	}
	if out, ok := o.created[op]; ok {
		return out, true
	}
	return o.base.GetUTXO(op)
}

// ValidateBlock implements spec §4.3's validate_block(block, prev_state).
// Failure is fatal for the whole block — there is no partial accept.
func ValidateBlock(block Block, prev PrevBlockContext, base UTXOSource, wallClock uint64) (BlockValidationResult, error) {
	header := block.Header

	// Step 1: header well-formed, linkage.
	if header.Height != prev.Height+1 {
		return BlockValidationResult{}, newErr(KindValidation, CodeHeightMismatch, "block height is not prev.height+1")
	}
	if header.PreviousHash != prev.BestHash {
		return BlockValidationResult{}, newErr(KindValidation, CodeLinkageInvalid, "previous_hash does not match prev.best_hash")
	}

	// Step 2: difficulty target well-formed and, on a retarget boundary,
	// equal to the precomputed expected value (step 8 folded in here).
	if err := ValidateDifficultyTarget(header.DifficultyTarget); err != nil {
		return BlockValidationResult{}, err
	}
	if ShouldAdjustDifficulty(header.Height) {
		if header.DifficultyTarget != prev.ExpectedTarget {
			return BlockValidationResult{}, newErr(KindValidation, CodeDifficultyUnexpected, "difficulty target does not match controller.adjust(...)")
		}
	} else if header.DifficultyTarget != prev.DifficultyTarget {
		return BlockValidationResult{}, newErr(KindValidation, CodeDifficultyUnexpected, "difficulty target changed outside a retarget boundary")
	}

	// Step 3: timestamp monotonicity and future-drift bound.
	if header.Timestamp <= prev.Timestamp {
		return BlockValidationResult{}, newErr(KindValidation, CodeTimestampInvalid, "timestamp does not strictly increase")
	}
	if header.Timestamp > wallClock+MaxFutureDriftSecs {
		return BlockValidationResult{}, newErr(KindValidation, CodeTimestampInvalid, "timestamp exceeds wall_clock+MAX_FUTURE_DRIFT")
	}

	// Step 4: proof of work.
	headerHash := BlockHeaderHash(header)
	if err := powCheckFn(headerHash, header.DifficultyTarget); err != nil {
		return BlockValidationResult{}, err
	}

	// Step 5: Merkle root.
	if got := MerkleRoot(TxHashes(block)); got != header.MerkleRoot {
		return BlockValidationResult{}, newErr(KindValidation, CodeMerkleInvalid, "merkle_root mismatch")
	}

	// Step 6/7: first tx is coinbase; every later tx validates against the
	// evolving in-block state; accumulate weight and fees along the way.
	if len(block.Transactions) == 0 {
		return BlockValidationResult{}, newErr(KindValidation, CodeFirstTxNotCoinbase, "block has no transactions")
	}

	overlay := &overlayUTXOSource{base: base, created: map[OutPoint]TxOutput{}, spent: map[OutPoint]struct{}{}}
	var blockWeight int
	fees := make([]uint64, len(block.Transactions))
	var totalFees uint64

	for i, tx := range block.Transactions {
		isCoinbase := i == 0
		if !isCoinbase && len(tx.Inputs) == 0 {
			return BlockValidationResult{}, newErr(KindValidation, CodeDuplicateCoinbase, "only the first transaction may have zero inputs")
		}

		result, err := ValidateTransaction(tx, overlay, isCoinbase)
		if err != nil {
			return BlockValidationResult{}, err
		}

		txHash := TxHash(tx)
		if !isCoinbase {
			for _, in := range tx.Inputs {
				overlay.spent[OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}] = struct{}{}
			}
			fees[i] = result.Fee
			sum, addErr := addUint64(totalFees, result.Fee)
			if addErr != nil {
				return BlockValidationResult{}, newErr(KindValidation, CodeAmountOverflow, "sum of block fees overflows u64")
			}
			totalFees = sum
		}
		for idx, out := range tx.Outputs {
			overlay.created[OutPoint{TxHash: txHash, OutputIndex: uint32(idx)}] = out
		}

		blockWeight += TransactionSizeBytes(tx)
		if blockWeight > MaxBlockWeightBytes {
			return BlockValidationResult{}, newErr(KindResourceLimit, CodeBlockWeightExceeded, "block weight exceeds ceiling")
		}
	}

	var coinbaseValue uint64
	for _, out := range block.Transactions[0].Outputs {
		sum, err := addUint64(coinbaseValue, out.Amount)
		if err != nil {
			return BlockValidationResult{}, newErr(KindValidation, CodeAmountOverflow, "coinbase value overflows u64")
		}
		coinbaseValue = sum
	}
	ceiling, err := addUint64(BlockSubsidy(header.Height, prev.AlreadyGenerated), totalFees)
	if err != nil {
		return BlockValidationResult{}, newErr(KindValidation, CodeAmountOverflow, "subsidy+fees overflows u64")
	}
	if coinbaseValue > ceiling {
		return BlockValidationResult{}, newErr(KindValidation, CodeValueConservation, "coinbase value exceeds subsidy+fees")
	}

	return BlockValidationResult{Fees: fees, TotalFees: totalFees}, nil
}
