package consensus

import "crypto/sha3"

// Hash is the 32-byte SHA3-256 digest used throughout the chain: block
// hashes, transaction hashes, Merkle nodes, and addresses.
type Hash [32]byte

func sha3_256(b []byte) [32]byte {
	return sha3.Sum256(b)
}

// HashBytes returns the SHA3-256 digest of b as a Hash.
func HashBytes(b []byte) Hash {
	return Hash(sha3_256(b))
}

// BlockHash hashes a canonically-encoded block header.
func BlockHash(headerBytes []byte) (Hash, error) {
	if len(headerBytes) == 0 {
		return Hash{}, newErr(KindValidation, CodeParse, "block hash: empty header bytes")
	}
	return HashBytes(headerBytes), nil
}
