package consensus

import "boundless.dev/node/crypto"

// UTXOSource is the minimal read-only view the transaction validator needs
// from chain state (spec §4.2: "look up the referenced UTXO in
// chain_state"). The node/chainstate package implements this against the
// authoritative UTXO map; block validation implements it against an
// evolving in-block snapshot (spec §4.3 step 7).
type UTXOSource interface {
	GetUTXO(op OutPoint) (TxOutput, bool)
}

// ValidateResult is the pure (side-effect-free) outcome of validating a
// non-coinbase transaction: the fee it pays, in base units.
type ValidateResult struct {
	Fee uint64
}

// ValidateTransaction implements spec §4.2's public contract
// validate(tx, chain_state). It performs no mutation; callers apply the
// state delta (or not) based on the result.
func ValidateTransaction(tx Transaction, state UTXOSource, isCoinbase bool) (ValidateResult, error) {
	if len(tx.Inputs) == 0 && !isCoinbase {
		return ValidateResult{}, newErr(KindValidation, CodeNoInputs, "transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return ValidateResult{}, newErr(KindValidation, CodeNoOutputs, "transaction has no outputs")
	}
	if len(tx.Inputs) > MaxTxInputs {
		return ValidateResult{}, newErr(KindResourceLimit, CodeTooManyInputs, "too many inputs")
	}
	if len(tx.Outputs) > MaxTxOutputs {
		return ValidateResult{}, newErr(KindResourceLimit, CodeTooManyOutputs, "too many outputs")
	}
	if size := TransactionSizeBytes(tx); size > MaxTxSizeBytes {
		return ValidateResult{}, newErr(KindResourceLimit, CodeTxTooLarge, "transaction exceeds size ceiling")
	}

	var outputTotal uint64
	for _, out := range tx.Outputs {
		if out.Amount == 0 {
			return ValidateResult{}, newErr(KindValidation, CodeZeroAmount, "output amount is zero")
		}
		sum, err := addUint64(outputTotal, out.Amount)
		if err != nil {
			return ValidateResult{}, newErr(KindValidation, CodeAmountOverflow, "sum of outputs overflows u64")
		}
		outputTotal = sum
	}

	if isCoinbase {
		// Coinbase has no inputs to verify or sum; its value ceiling
		// (subsidy + fees) is checked by the block validator (spec §4.3
		// step 6), which has visibility into the whole block's fees.
		return ValidateResult{}, nil
	}

	signingHash := SigningHash(tx)
	var inputTotal uint64
	for _, in := range tx.Inputs {
		op := OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}
		spent, ok := state.GetUTXO(op)
		if !ok {
			return ValidateResult{}, newErr(KindState, CodeMissingUTXO, "input references unknown outpoint")
		}

		ok, err := crypto.Default().Verify(in.Signature.Tag, in.PublicKey, in.Signature.Bytes, signingHash[:])
		if err != nil {
			return ValidateResult{}, wrapErr(KindValidation, CodeSigInvalid, "signature verification error", err)
		}
		if !ok {
			return ValidateResult{}, newErr(KindValidation, CodeSigInvalid, "signature does not verify")
		}

		sum, err2 := addUint64(inputTotal, spent.Amount)
		if err2 != nil {
			return ValidateResult{}, newErr(KindValidation, CodeAmountOverflow, "sum of inputs overflows u64")
		}
		inputTotal = sum
	}

	if outputTotal > inputTotal {
		return ValidateResult{}, newErr(KindValidation, CodeValueConservation, "outputs exceed inputs")
	}
	fee := inputTotal - outputTotal

	minFee := uint64(TransactionSizeBytes(tx)) * MinFeePerByte
	if fee < minFee {
		return ValidateResult{}, newErr(KindResourceLimit, CodeFeeTooLow, "fee below min_fee_per_byte floor")
	}

	return ValidateResult{Fee: fee}, nil
}
