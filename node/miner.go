package node

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"boundless.dev/node/consensus"
)

// MinerConfig configures the PoW worker pool (spec §4.4).
type MinerConfig struct {
	Workers         int
	TimestampSource func() uint64
	MaxTxPerBlock   int
}

func DefaultMinerConfig() MinerConfig {
	return MinerConfig{
		Workers:         1,
		TimestampSource: func() uint64 { return uint64(time.Now().Unix()) },
		MaxTxPerBlock:   1024,
	}
}

// MineResult is the spec §4.4 Result: { block, hashes_computed, elapsed,
// hashes_per_second }. Elapsed is wall-clock time, not CPU time.
type MineResult struct {
	Block          consensus.Block
	HashesComputed uint64
	Elapsed        time.Duration
	HashesPerSec   float64
}

// ErrMiningStopped is returned when should_stop is set externally (e.g. a
// better block arrived over P2P) before any worker finds a solution.
var ErrMiningStopped = errors.New("mining stopped")

// Miner runs an N-worker PoW search per spec §4.4: nonce space striped
// across workers, a shared atomic candidate timestamp that escalates on
// stripe wraparound so no two workers ever probe the same (timestamp,
// nonce) pair, a shared should_stop flag, and a shared hashes_computed
// counter for rate reporting.
type Miner struct {
	chainState *ChainState
	cfg        MinerConfig
}

func NewMiner(chainState *ChainState, cfg MinerConfig) (*Miner, error) {
	if chainState == nil {
		return nil, errors.New("nil chainstate")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TimestampSource == nil {
		cfg.TimestampSource = func() uint64 { return uint64(time.Now().Unix()) }
	}
	if cfg.MaxTxPerBlock <= 0 {
		cfg.MaxTxPerBlock = 1024
	}
	return &Miner{chainState: chainState, cfg: cfg}, nil
}

// minerShared is the set of atomics every worker goroutine reads and
// writes; none of it is guarded by ChainState's lock since the candidate
// header is a private in-flight draft, not committed state.
type minerShared struct {
	timestamp      atomic.Uint64
	shouldStop     atomic.Bool
	hashesComputed atomic.Uint64
}

// MineBlock assembles a candidate block from coinbase+pendingTxs and runs
// the worker pool until a solution is found or stop is closed (spec
// §4.4's external should_stop signal: "new best block arrived").
func (m *Miner) MineBlock(ctx context.Context, stop <-chan struct{}, height uint64, prevHash consensus.Hash, difficultyTarget uint32, coinbase consensus.Transaction, pendingTxs []consensus.Transaction) (*MineResult, error) {
	if m == nil || m.chainState == nil {
		return nil, errors.New("miner is not initialized")
	}

	maxExtra := m.cfg.MaxTxPerBlock - 1
	if maxExtra < 0 {
		maxExtra = 0
	}
	if len(pendingTxs) > maxExtra {
		pendingTxs = pendingTxs[:maxExtra]
	}

	txs := make([]consensus.Transaction, 0, 1+len(pendingTxs))
	txs = append(txs, coinbase)
	txs = append(txs, pendingTxs...)
	block := consensus.Block{Transactions: txs}

	header := consensus.BlockHeader{
		Version:          1,
		PreviousHash:     prevHash,
		MerkleRoot:       consensus.MerkleRoot(consensus.TxHashes(block)),
		Height:           height,
		DifficultyTarget: difficultyTarget,
	}

	shared := &minerShared{}
	shared.timestamp.Store(m.cfg.TimestampSource())

	resultCh := make(chan consensus.BlockHeader, 1)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(workerCtx, uint64(i), uint64(m.cfg.Workers), header, shared, resultCh)
	}

	start := time.Now()
	select {
	case <-stop:
		shared.shouldStop.Store(true)
		return nil, ErrMiningStopped
	case <-ctx.Done():
		shared.shouldStop.Store(true)
		return nil, ctx.Err()
	case solved := <-resultCh:
		shared.shouldStop.Store(true)
		block.Header = solved
		return &MineResult{
			Block:          block,
			HashesComputed: shared.hashesComputed.Load(),
			Elapsed:        time.Since(start),
			HashesPerSec:   hashesPerSecond(shared.hashesComputed.Load(), time.Since(start)),
		}, nil
	}
}

func hashesPerSecond(hashes uint64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(hashes) / secs
}

// worker probes nonce i, i+N, i+2N, ... wrapping modulo 2^64 (spec §4.4).
// On stripe wraparound it fetch_adds the shared timestamp so all workers
// stay in lockstep and never compute the same (timestamp, nonce) pair.
func (m *Miner) worker(ctx context.Context, workerIndex, workerCount uint64, headerTemplate consensus.BlockHeader, shared *minerShared, resultCh chan<- consensus.BlockHeader) {
	header := headerTemplate
	nonce := workerIndex

	for {
		if shared.shouldStop.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		header.Timestamp = shared.timestamp.Load()
		header.Nonce = nonce
		shared.hashesComputed.Add(1)

		headerHash := consensus.BlockHeaderHash(header)
		if powCheckFnForMiner(headerHash, header.DifficultyTarget) == nil {
			select {
			case resultCh <- header:
			default:
			}
			return
		}

		next := nonce + workerCount
		if next < nonce {
			// Nonce stripe wrapped modulo 2^64: escalate the shared
			// candidate timestamp so every worker's next pass probes a
			// timestamp none of them has tried before.
			shared.timestamp.Add(1)
			next = workerIndex
		}
		nonce = next
	}
}

// powCheckFnForMiner is a local indirection to consensus.PowCheck so the
// miner's worker loop and the consensus package's own test seam
// (consensus.powCheckFn) stay independent: overriding one never silently
// changes the other's behavior.
var powCheckFnForMiner = consensus.PowCheck
