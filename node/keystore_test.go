package node

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateSigningKey_GeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	priv, err := LoadOrCreateSigningKey(dir, "")
	if err != nil {
		t.Fatalf("LoadOrCreateSigningKey: %v", err)
	}
	if len(priv) == 0 {
		t.Fatalf("expected non-empty key")
	}

	again, err := LoadOrCreateSigningKey(dir, "")
	if err != nil {
		t.Fatalf("LoadOrCreateSigningKey (reload): %v", err)
	}
	if !again.Equal(priv) {
		t.Fatalf("reloaded key does not match generated key")
	}
}

func TestLoadOrCreateSigningKey_WrappedAtRest(t *testing.T) {
	dir := t.TempDir()
	kek := "0011223344556677889900112233445566778899001122334455667788aabbcc"

	priv, err := LoadOrCreateSigningKey(dir, kek)
	if err != nil {
		t.Fatalf("LoadOrCreateSigningKey: %v", err)
	}

	again, err := LoadOrCreateSigningKey(dir, kek)
	if err != nil {
		t.Fatalf("LoadOrCreateSigningKey (reload): %v", err)
	}
	if !again.Equal(priv) {
		t.Fatalf("reloaded wrapped key does not match generated key")
	}

	if _, err := loadKeyStore(dir, ""); err == nil {
		t.Fatalf("expected error loading wrapped key without master key")
	}
	if _, err := loadKeyStore(dir, "00"); err == nil {
		t.Fatalf("expected error for malformed master key")
	}
}

func TestLoadOrCreateSigningKey_RejectsBadKeyStoreVersion(t *testing.T) {
	dir := t.TempDir()
	path := KeyStorePath(dir)
	if err := writeFileAtomic(path, []byte(`{"version":"bogus"}`), 0o600); err != nil {
		t.Fatalf("writeFileAtomic: %v", err)
	}
	if _, err := LoadOrCreateSigningKey(dir, ""); err == nil {
		t.Fatalf("expected error for unsupported keystore version")
	}
}

func TestKeyStorePath(t *testing.T) {
	got := KeyStorePath("/tmp/data")
	want := filepath.Join("/tmp/data", "node.key")
	if got != want {
		t.Fatalf("KeyStorePath=%q, want %q", got, want)
	}
}
