package crypto

import (
	"crypto/ed25519"
)

func verifyEd25519(pubkey, sig, message []byte) (bool, error) {
	if len(pubkey) != ed25519.PublicKeySize {
		return false, &VerifyError{Tag: TagEd25519, Kind: ErrMalformedInput, Msg: "public key length invalid"}
	}
	if len(sig) != ed25519.SignatureSize {
		return false, &VerifyError{Tag: TagEd25519, Kind: ErrMalformedInput, Msg: "signature length invalid"}
	}
	ok := ed25519.Verify(ed25519.PublicKey(pubkey), message, sig)
	if !ok {
		return false, &VerifyError{Tag: TagEd25519, Kind: ErrSignatureInvalid, Msg: "signature did not verify"}
	}
	return true, nil
}
