package node

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Network  string   `json:"network"`
	DataDir  string   `json:"data_dir"`
	BindAddr string   `json:"bind_addr"`
	LogLevel string   `json:"log_level"`
	Peers    []string `json:"peers"`
	MaxPeers int      `json:"max_peers"`

	// RPCURL is accepted and stored for collaborator wiring (spec §6's
	// BLOCKCHAIN_RPC_URL); this node doesn't expose or consume an RPC
	// server itself, that surface is a non-goal.
	RPCURL string `json:"rpc_url"`
	// CORSOrigins is accepted and stored (spec §6's
	// ENTERPRISE_CORS_ORIGINS); unused, since RPC/REST is a non-goal.
	CORSOrigins []string `json:"cors_origins"`
	// MasterEncryptionKeyHex, when set, is a 32-byte hex AES key-wrap key
	// used to wrap the node's local signing key at rest (spec §6's
	// MASTER_ENCRYPTION_KEY).
	MasterEncryptionKeyHex string `json:"-"`
}

// Env var names from spec §6.
const (
	EnvDataDir      = "DATABASE_URL"
	EnvRPCURL       = "BLOCKCHAIN_RPC_URL"
	EnvListenAddr   = "NODE_LISTEN_ADDR"
	EnvBootnodes    = "NODE_BOOTNODES"
	EnvCORSOrigins  = "ENTERPRISE_CORS_ORIGINS"
	EnvMasterKeyHex = "MASTER_ENCRYPTION_KEY"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".rubin"
	}
	return filepath.Join(home, ".rubin")
}

func DefaultConfig() Config {
	return Config{
		Network:  "devnet",
		DataDir:  DefaultDataDir(),
		BindAddr: "0.0.0.0:19111",
		Peers:    nil,
		LogLevel: "info",
		MaxPeers: 64,
	}
}

// LoadDotEnv loads a .env file from dataDir, if present, into the process
// environment before ApplyEnv reads it. A missing file is not an error —
// operators who export the spec §6 vars directly never need one.
func LoadDotEnv(dataDir string) error {
	path := filepath.Join(dataDir, ".env")
	err := godotenv.Load(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ApplyEnv overlays the spec §6 environment variables onto cfg, returning
// the result. Values already set on cfg win when the corresponding env
// var is unset or empty.
func ApplyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRPCURL)); v != "" {
		cfg.RPCURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.BindAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBootnodes)); v != "" {
		cfg.Peers = NormalizePeers(append(cfg.Peers, v)...)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCORSOrigins)); v != "" {
		cfg.CORSOrigins = NormalizePeers(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMasterKeyHex)); v != "" {
		cfg.MasterEncryptionKeyHex = v
	}
	return cfg
}

// ValidateMasterEncryptionKey checks that, when set, the configured
// master key decodes to exactly 32 bytes (an AES-256 key-wrap KEK).
func ValidateMasterEncryptionKey(cfg Config) error {
	if cfg.MasterEncryptionKeyHex == "" {
		return nil
	}
	raw, err := hex.DecodeString(strings.TrimSpace(cfg.MasterEncryptionKeyHex))
	if err != nil {
		return fmt.Errorf("invalid master_encryption_key: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("master_encryption_key must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 {
		return errors.New("max_peers must be > 0")
	}
	if cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be <= 4096")
	}
	if err := ValidateMasterEncryptionKey(cfg); err != nil {
		return err
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
