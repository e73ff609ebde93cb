package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePeers(t *testing.T) {
	got := NormalizePeers("127.0.0.1:19111, 127.0.0.1:19112", "127.0.0.1:19111", " ", "10.0.0.1:19111")
	want := []string{"127.0.0.1:19111", "127.0.0.1:19112", "10.0.0.1:19111"}
	if len(got) != len(want) {
		t.Fatalf("len=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d got=%q want=%q", i, got[i], want[i])
		}
	}
}

func TestValidateConfigOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = []string{"127.0.0.1:19111"}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigRejectsBadBind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BindAddr = "127.0.0.1"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsBadPeer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = []string{"bad-peer"}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsBadMasterKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = []string{"127.0.0.1:19111"}
	cfg.MasterEncryptionKeyHex = "not-hex"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error for malformed master key")
	}

	cfg.MasterEncryptionKeyHex = "aabb"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error for short master key")
	}

	cfg.MasterEncryptionKeyHex = "0011223344556677889900112233445566778899001122334455667788990011"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid 32-byte master key, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	for _, name := range []string{EnvDataDir, EnvRPCURL, EnvListenAddr, EnvBootnodes, EnvCORSOrigins, EnvMasterKeyHex} {
		t.Setenv(name, "")
	}
	t.Setenv(EnvDataDir, "/custom/datadir")
	t.Setenv(EnvRPCURL, "https://rpc.example.invalid")
	t.Setenv(EnvListenAddr, "0.0.0.0:20000")
	t.Setenv(EnvBootnodes, "10.0.0.1:19111,10.0.0.2:19111")
	t.Setenv(EnvCORSOrigins, "https://a.example,https://b.example")
	t.Setenv(EnvMasterKeyHex, "00112233445566778899001122334455667788990011223344556677889900")

	cfg := ApplyEnv(DefaultConfig())
	if cfg.DataDir != "/custom/datadir" {
		t.Fatalf("data_dir=%q", cfg.DataDir)
	}
	if cfg.RPCURL != "https://rpc.example.invalid" {
		t.Fatalf("rpc_url=%q", cfg.RPCURL)
	}
	if cfg.BindAddr != "0.0.0.0:20000" {
		t.Fatalf("bind_addr=%q", cfg.BindAddr)
	}
	if len(cfg.Peers) != 2 {
		t.Fatalf("peers=%v", cfg.Peers)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors_origins=%v", cfg.CORSOrigins)
	}
	if cfg.MasterEncryptionKeyHex == "" {
		t.Fatalf("expected master_encryption_key to be set")
	}
}

func TestApplyEnv_LeavesDefaultsWhenUnset(t *testing.T) {
	for _, name := range []string{EnvDataDir, EnvRPCURL, EnvListenAddr, EnvBootnodes, EnvCORSOrigins, EnvMasterKeyHex} {
		t.Setenv(name, "")
	}
	cfg := DefaultConfig()
	got := ApplyEnv(cfg)
	if got.DataDir != cfg.DataDir || got.BindAddr != cfg.BindAddr {
		t.Fatalf("ApplyEnv mutated config with no env vars set: %#v", got)
	}
}

func TestLoadDotEnv_MissingFileIsNotError(t *testing.T) {
	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("expected no error for missing .env, got %v", err)
	}
}

func TestLoadDotEnv_LoadsFile(t *testing.T) {
	os.Unsetenv(EnvListenAddr)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte(EnvListenAddr+"=0.0.0.0:30000\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv(EnvListenAddr) })
	if got := os.Getenv(EnvListenAddr); got != "0.0.0.0:30000" {
		t.Fatalf("env var not loaded: %q", got)
	}
}
