package crypto

import "crypto/ed25519"

// Hybrid signatures concatenate a classical Ed25519 sub-signature with an
// ML-DSA-44 sub-signature, both verified independently against the same
// message; both must succeed. Layout grounded on
// original_source/crypto/src/hybrid_fixed.rs::HybridSignature:
// public_key  = classical_public(32) || pqc_public
// signature   = classical_signature(64) || pqc_signature
func verifyHybrid(pubkey, sig, message []byte) (bool, error) {
	if len(pubkey) <= ed25519.PublicKeySize {
		return false, &VerifyError{Tag: TagHybrid, Kind: ErrMalformedInput, Msg: "public key too short for hybrid layout"}
	}
	if len(sig) <= ed25519.SignatureSize {
		return false, &VerifyError{Tag: TagHybrid, Kind: ErrMalformedInput, Msg: "signature too short for hybrid layout"}
	}

	classicalPub := pubkey[:ed25519.PublicKeySize]
	pqcPub := pubkey[ed25519.PublicKeySize:]
	classicalSig := sig[:ed25519.SignatureSize]
	pqcSig := sig[ed25519.SignatureSize:]

	classicalOK, err := verifyEd25519(classicalPub, classicalSig, message)
	if err != nil {
		var ve *VerifyError
		if !asVerifyError(err, &ve) || ve.Kind != ErrSignatureInvalid {
			return false, err
		}
		classicalOK = false
	}

	pqcOK, err := verifyMLDSA(pqcPub, pqcSig, message)
	if err != nil {
		var ve *VerifyError
		if !asVerifyError(err, &ve) || ve.Kind != ErrSignatureInvalid {
			return false, err
		}
		pqcOK = false
	}

	if !classicalOK || !pqcOK {
		return false, &VerifyError{Tag: TagHybrid, Kind: ErrSignatureInvalid, Msg: "classical or pqc sub-signature did not verify"}
	}
	return true, nil
}

func asVerifyError(err error, out **VerifyError) bool {
	ve, ok := err.(*VerifyError)
	if !ok {
		return false
	}
	*out = ve
	return true
}
