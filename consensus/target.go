package consensus

import "math/big"

// Compact target encoding (spec §4.1, §3, GLOSSARY "Compact target"): a
// 32-bit packed representation of a 256-bit PoW target, one byte exponent
// followed by a 24-bit mantissa — the conventional "compact bits" scheme
// used by Bitcoin-family chains. No example repo in the retrieval pack
// vendors a usable CompactToBig/BigToCompact (daglabs-btcd references one
// but does not define it), so this file is authored directly from the
// spec's prose description; see DESIGN.md.

// maxTarget returns MAX_INT >> 32 as a big.Int, the saturation ceiling for
// decoded and retargeted targets.
func maxTarget() *big.Int {
	return new(big.Int).SetBytes(maxTargetBig[:])
}

// DecodeCompactTarget unpacks a compact 32-bit target into its 256-bit
// big-endian form. Exponents above 32 are invalid.
func DecodeCompactTarget(compact uint32) ([32]byte, error) {
	var zero [32]byte
	exponent := int(compact >> 24)
	mantissa := compact & 0x00ffffff

	if exponent > 32 {
		return zero, newErr(KindValidation, CodeParse, "compact target: exponent exceeds 32")
	}

	m := new(big.Int).SetUint64(uint64(mantissa))
	var target *big.Int
	if exponent <= 3 {
		target = new(big.Int).Rsh(m, uint((3-exponent)*8))
	} else {
		target = new(big.Int).Lsh(m, uint((exponent-3)*8))
	}

	if target.Cmp(maxTarget()) > 0 {
		target = maxTarget()
	}
	return bigIntTo32(target)
}

// EncodeCompactTarget packs a 256-bit big-endian target into its minimal
// compact form. encode(decode(c)) == c for every valid (already-minimal) c.
func EncodeCompactTarget(target [32]byte) uint32 {
	t := new(big.Int).SetBytes(target[:])
	if t.Sign() == 0 {
		return 0
	}

	be := t.Bytes() // big-endian, no leading zero bytes
	size := len(be)

	var mantissa uint32
	if size <= 3 {
		shifted := new(big.Int).Lsh(t, uint((3-size)*8))
		mantissa = uint32(shifted.Uint64())
	} else {
		shifted := new(big.Int).Rsh(t, uint((size-3)*8))
		mantissa = uint32(shifted.Uint64())
		// Rounding up to the next byte can overflow the mantissa's top
		// byte into the sign-adjacent range; Bitcoin's encoding grows the
		// exponent by one and shifts the mantissa down to compensate.
		if mantissa&0x00800000 != 0 {
			mantissa >>= 8
			size++
		}
	}
	mantissa &= 0x00ffffff

	return uint32(size)<<24 | mantissa
}

// ValidateDifficultyTarget checks a compact target lies within the bounds
// spec §4.3 step 2 requires (decodes validly and is within [hardest, easiest]).
func ValidateDifficultyTarget(compact uint32) error {
	exponent := compact >> 24
	if exponent > 32 {
		return newErr(KindValidation, CodeParse, "difficulty target: exponent exceeds 32")
	}
	decoded, err := DecodeCompactTarget(compact)
	if err != nil {
		return err
	}
	t := new(big.Int).SetBytes(decoded[:])
	if t.Sign() <= 0 {
		return newErr(KindValidation, CodeParse, "difficulty target: must be positive")
	}
	if t.Cmp(maxTarget()) > 0 {
		return newErr(KindValidation, CodeParse, "difficulty target: exceeds MAX_INT>>32 ceiling")
	}
	return nil
}

func bigIntTo32(x *big.Int) ([32]byte, error) {
	var out [32]byte
	if x.Sign() < 0 {
		return out, newErr(KindValidation, CodeParse, "u256: negative")
	}
	b := x.Bytes()
	if len(b) > 32 {
		return out, newErr(KindValidation, CodeParse, "u256: overflow")
	}
	copy(out[32-len(b):], b)
	return out, nil
}
