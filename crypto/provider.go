// Package crypto implements the tagged signature scheme dispatch used by
// the consensus layer: classical Ed25519, post-quantum ML-DSA, Falcon, and
// a hybrid combinator requiring both a classical and a post-quantum
// sub-signature to verify.
package crypto

// Tag identifies which signature scheme a Signature/PublicKey pair uses.
// It travels with every witness so a verifier never has to guess the
// scheme from key length alone.
type Tag uint8

const (
	TagEd25519 Tag = 0
	TagMLDSA   Tag = 1
	TagFalcon  Tag = 2
	TagHybrid  Tag = 3
)

func (t Tag) String() string {
	switch t {
	case TagEd25519:
		return "ed25519"
	case TagMLDSA:
		return "ml-dsa-44"
	case TagFalcon:
		return "falcon-512"
	case TagHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Provider verifies tagged signatures and hashes. It is the seam tests use
// to substitute deterministic fakes; production code always uses Default().
type Provider interface {
	SHA3_256(input []byte) [32]byte
	Verify(tag Tag, pubkey, sig, message []byte) (bool, error)
}

// Default returns the production crypto provider: Ed25519 from the
// standard library, ML-DSA-44 from cloudflare/circl, Falcon as an
// explicitly unsupported scheme, and hybrid composing the two former.
func Default() Provider {
	return stdProvider{}
}

type stdProvider struct{}

func (stdProvider) SHA3_256(input []byte) [32]byte {
	return sha3_256(input)
}

func (stdProvider) Verify(tag Tag, pubkey, sig, message []byte) (bool, error) {
	switch tag {
	case TagEd25519:
		return verifyEd25519(pubkey, sig, message)
	case TagMLDSA:
		return verifyMLDSA(pubkey, sig, message)
	case TagFalcon:
		return verifyFalcon(pubkey, sig, message)
	case TagHybrid:
		return verifyHybrid(pubkey, sig, message)
	default:
		return false, &VerifyError{Tag: tag, Kind: ErrUnsupportedScheme, Msg: "unknown signature tag"}
	}
}
