// Command boundless-node runs a Boundless proof-of-work node: it opens (or
// initializes) the durable chain store, rebuilds the in-memory chain-state
// view, wires up the mempool and WASM contract sandbox, and optionally
// mines a handful of blocks locally before idling until terminated.
//
// This mirrors the teacher's rubin-node skeleton: a flag-driven run(args,
// stdout, stderr) int entrypoint over os.Exit, config/env loading, and a
// signal.NotifyContext shutdown wait — generalized to Boundless's store,
// sync engine, mempool, and contract sandbox instead of the teacher's.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"boundless.dev/node/consensus"
	"boundless.dev/node/contracts"
	"boundless.dev/node/crypto"
	"boundless.dev/node/mempool"
	"boundless.dev/node/node"
	"boundless.dev/node/store"
)

var nowUnix = func() int64 { return time.Now().Unix() }

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := node.DefaultConfig()
	var peers multiStringFlag

	cfg := defaults
	fs := flag.NewFlagSet("boundless-node", flag.ContinueOnError)
	fs.SetOutput(stderr)

	peerCSV := fs.String("peers", "", "bootstrap peers, comma-separated host:port")
	fs.Var(&peers, "peer", "single bootstrap peer host:port (repeatable)")
	fs.StringVar(&cfg.Network, "network", defaults.Network, "network name (devnet/testnet/mainnet)")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	fs.StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.IntVar(&cfg.MaxPeers, "max-peers", defaults.MaxPeers, "max connected peers")
	mineBlocks := fs.Int("mine-blocks", 0, "mine N blocks locally after startup")
	mineExit := fs.Bool("mine-exit", false, "exit immediately after local mining")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Peers = node.NormalizePeers(append([]string{*peerCSV}, peers...)...)

	if err := node.LoadDotEnv(cfg.DataDir); err != nil {
		fmt.Fprintf(stderr, "dotenv load failed: %v\n", err)
		return 2
	}
	cfg = node.ApplyEnv(cfg)

	if err := node.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}

	signingKey, err := node.LoadOrCreateSigningKey(cfg.DataDir, cfg.MasterEncryptionKeyHex)
	if err != nil {
		fmt.Fprintf(stderr, "signing key load failed: %v\n", err)
		return 2
	}

	genesis, err := node.DefaultDevnetGenesis()
	if err != nil {
		fmt.Fprintf(stderr, "genesis construction failed: %v\n", err)
		return 2
	}
	genesisHash := consensus.BlockHeaderHash(genesis.Header)
	chainIDHex := hex.EncodeToString(genesisHash[:])
	db, err := store.Open(cfg.DataDir, chainIDHex)
	if err != nil {
		fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	if db.Manifest() == nil {
		if err := db.InitGenesis(genesis); err != nil {
			fmt.Fprintf(stderr, "genesis init failed: %v\n", err)
			return 2
		}
	}

	chainStatePath := node.ChainStatePath(cfg.DataDir)
	syncCfg := node.DefaultSyncConfig(chainStatePath)
	syncCfg.Network = cfg.Network
	syncEngine, err := node.OpenSyncEngine(db, syncCfg)
	if err != nil {
		fmt.Fprintf(stderr, "sync engine init failed: %v\n", err)
		return 2
	}

	pool := mempool.NewPool(mempool.DefaultConfig())
	syncEngine.AttachMempool(pool)

	sandbox := contracts.NewSandbox(contracts.DefaultExecutionConfig())
	_ = sandbox // wired per-call through node.ChainState.ApplyContractCall by callers handling contract-call transactions

	if err := printConfig(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	height, bestHash, totalSupply, difficulty := syncEngine.ChainState().Snapshot()
	fmt.Fprintf(stdout, "chainstate: height=%d best_hash=%x total_supply=%d difficulty=%#x chain_id=%s\n",
		height, bestHash, totalSupply, difficulty, chainIDHex)
	headerReq := syncEngine.HeaderSyncRequest()
	fmt.Fprintf(stdout, "sync: header_request_has_from=%v header_request_limit=%d ibd=%v\n",
		headerReq.HasFrom, headerReq.Limit, syncEngine.IsInIBD(nowUnixU64()))
	fmt.Fprintf(stdout, "p2p: bind=%s max_peers=%d bootstrap_peers=%d\n", cfg.BindAddr, cfg.MaxPeers, len(cfg.Peers))
	fmt.Fprintf(stdout, "mempool: max_bytes=%d pending=%d\n", mempool.DefaultConfig().MaxBytes, pool.Len())

	if *dryRun {
		return 0
	}

	if *mineBlocks > 0 {
		minerPubkey, _ := signingKey.Public().(ed25519.PublicKey)
		if err := mineLocally(stdout, stderr, syncEngine, pool, []byte(minerPubkey), *mineBlocks); err != nil {
			fmt.Fprintf(stderr, "mining failed: %v\n", err)
			return 2
		}
		if *mineExit {
			return 0
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(stdout, "boundless-node running")
	<-ctx.Done()
	fmt.Fprintln(stdout, "boundless-node stopped")
	return 0
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func nowUnixU64() uint64 {
	now := nowUnix()
	if now <= 0 {
		return 0
	}
	return uint64(now)
}

func mineLocally(stdout, stderr io.Writer, syncEngine *node.SyncEngine, pool *mempool.Pool, minerPubkey []byte, n int) error {
	cs := syncEngine.ChainState()
	miner, err := node.NewMiner(cs, node.DefaultMinerConfig())
	if err != nil {
		return err
	}
	recipient := consensus.Hash(crypto.Default().SHA3_256(minerPubkey))

	for i := 0; i < n; i++ {
		height, bestHash, totalSupply, _ := cs.Snapshot()
		nextHeight := height + 1
		coinbase := consensus.Transaction{
			Version: 1,
			Outputs: []consensus.TxOutput{{
				Amount:              consensus.BlockSubsidy(nextHeight, totalSupply),
				RecipientPubkeyHash: recipient,
			}},
			Timestamp: nowUnixU64(),
		}
		pending := pool.Pending(1023)
		result, err := miner.MineBlock(context.Background(), nil, nextHeight, bestHash, currentDifficultyTarget(cs), coinbase, pending)
		if err != nil {
			return err
		}
		applied, err := syncEngine.ApplyBlock(consensus.BlockBytes(result.Block), nowUnixU64())
		if err != nil {
			return fmt.Errorf("apply mined block at height %d: %w", nextHeight, err)
		}
		fmt.Fprintf(stdout, "mined: height=%d hash=%x hashes=%d elapsed=%s decision=%v\n",
			applied.Height, applied.Hash, result.HashesComputed, result.Elapsed, applied.Decision)
	}
	return nil
}

func currentDifficultyTarget(cs *node.ChainState) uint32 {
	_, _, _, difficulty := cs.Snapshot()
	return difficulty
}
