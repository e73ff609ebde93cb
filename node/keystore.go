package node

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"boundless.dev/node/crypto"
)

const (
	keyStoreFileName     = "node.key"
	keyStoreVersion      = "RBKSv1"
	keyStoreWrapAlgAESKW = "AES-256-KW"
	keyStoreWrapAlgNone  = "NONE"
)

// KeyStoreV1 is the on-disk format for the node's local Ed25519 signing
// key (spec §6's MASTER_ENCRYPTION_KEY). Grounded on the teacher's
// clients/go/node/keymgr.go keystore format; simplified to a single
// software AES-KW wrap path since this node has no wolfcrypt shim.
type KeyStoreV1 struct {
	Version   string `json:"version"`
	PubkeyHex string `json:"pubkey_hex"`
	KeyIDHex  string `json:"key_id_hex"`
	WrapAlg   string `json:"wrap_alg"`
	SeedHex   string `json:"seed_hex"` // wrapped (AES-256-KW) when WrapAlg != NONE, plaintext otherwise
}

// KeyStorePath returns the node key file's path within dataDir.
func KeyStorePath(dataDir string) string {
	return filepath.Join(dataDir, keyStoreFileName)
}

// LoadOrCreateSigningKey loads the node's Ed25519 signing key from
// dataDir, generating and persisting a fresh one if none exists yet.
// masterKeyHex is spec §6's MASTER_ENCRYPTION_KEY (cfg.MasterEncryptionKeyHex):
// when non-empty it must decode to a 32-byte AES-256 key-wrap KEK, and the
// seed is wrapped at rest under it; when empty the seed is stored as
// plaintext hex (dev-only, matching the teacher's non-strict mode).
func LoadOrCreateSigningKey(dataDir, masterKeyHex string) (ed25519.PrivateKey, error) {
	path := KeyStorePath(dataDir)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("keystore: generate key: %w", err)
		}
		if err := saveKeyStore(dataDir, pub, priv.Seed(), masterKeyHex); err != nil {
			return nil, err
		}
		return priv, nil
	} else if err != nil {
		return nil, err
	}
	return loadKeyStore(dataDir, masterKeyHex)
}

func saveKeyStore(dataDir string, pub ed25519.PublicKey, seed []byte, masterKeyHex string) error {
	keyID := crypto.Default().SHA3_256(pub)

	ks := KeyStoreV1{
		Version:   keyStoreVersion,
		PubkeyHex: hex.EncodeToString(pub),
		KeyIDHex:  hex.EncodeToString(keyID[:]),
	}
	if masterKeyHex == "" {
		ks.WrapAlg = keyStoreWrapAlgNone
		ks.SeedHex = hex.EncodeToString(seed)
	} else {
		kek, err := decodeMasterKey(masterKeyHex)
		if err != nil {
			return err
		}
		wrapped, err := crypto.AESKeyWrapRFC3394(kek, seed)
		if err != nil {
			return fmt.Errorf("keystore: wrap seed: %w", err)
		}
		ks.WrapAlg = keyStoreWrapAlgAESKW
		ks.SeedHex = hex.EncodeToString(wrapped)
	}

	raw, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return err
	}
	return writeFileAtomic(KeyStorePath(dataDir), raw, 0o600)
}

func loadKeyStore(dataDir, masterKeyHex string) (ed25519.PrivateKey, error) {
	raw, err := readFileFromDir(dataDir, keyStoreFileName)
	if err != nil {
		return nil, err
	}
	var ks KeyStoreV1
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, fmt.Errorf("keystore: decode: %w", err)
	}
	if ks.Version != keyStoreVersion {
		return nil, fmt.Errorf("keystore: unsupported version %q", ks.Version)
	}

	seedOrWrapped, err := hex.DecodeString(ks.SeedHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: seed_hex: %w", err)
	}

	var seed []byte
	switch ks.WrapAlg {
	case keyStoreWrapAlgNone:
		seed = seedOrWrapped
	case keyStoreWrapAlgAESKW:
		if masterKeyHex == "" {
			return nil, errors.New("keystore: key is wrapped but no master_encryption_key configured")
		}
		kek, err := decodeMasterKey(masterKeyHex)
		if err != nil {
			return nil, err
		}
		seed, err = crypto.AESKeyUnwrapRFC3394(kek, seedOrWrapped)
		if err != nil {
			return nil, fmt.Errorf("keystore: unwrap seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("keystore: unsupported wrap_alg %q", ks.WrapAlg)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keystore: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub, err := hex.DecodeString(ks.PubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: pubkey_hex: %w", err)
	}
	if !ed25519.PublicKey(pub).Equal(priv.Public()) {
		return nil, errors.New("keystore: recovered key does not match stored pubkey")
	}
	return priv, nil
}

func decodeMasterKey(masterKeyHex string) ([]byte, error) {
	kek, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master_encryption_key: %w", err)
	}
	if len(kek) != 32 {
		return nil, fmt.Errorf("master_encryption_key: must decode to 32 bytes, got %d", len(kek))
	}
	return kek, nil
}
