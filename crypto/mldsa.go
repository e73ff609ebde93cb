package crypto

import (
	"github.com/cloudflare/circl/sign/dilithium/mode2"
)

// verifyMLDSA implements the ML-DSA-44 (Dilithium2) signature variant.
// Grounded on orbas1-Synnergy's DilithiumVerify (mode3), adjusted to
// mode2 per original_source/crypto/src/pqc.rs (Dilithium2 == ML-DSA-44).
func verifyMLDSA(pubkey, sig, message []byte) (bool, error) {
	var pk mode2.PublicKey
	if err := pk.UnmarshalBinary(pubkey); err != nil {
		return false, &VerifyError{Tag: TagMLDSA, Kind: ErrMalformedInput, Msg: "public key malformed", Err: err}
	}
	if len(sig) != mode2.SignatureSize {
		return false, &VerifyError{Tag: TagMLDSA, Kind: ErrMalformedInput, Msg: "signature length invalid"}
	}
	if !mode2.Verify(&pk, message, sig) {
		return false, &VerifyError{Tag: TagMLDSA, Kind: ErrSignatureInvalid, Msg: "signature did not verify"}
	}
	return true, nil
}
