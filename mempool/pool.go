// Package mempool implements the advisory transaction pool collaborator
// from spec §4.6: admission validates a candidate transaction against a
// chain-state snapshot, and eviction keeps the pool under a byte-size cap
// by dropping the lowest fee-rate entries first (SPEC_FULL.md "MEMPOOL
// EVICTION POLICY"). Eviction is a policy choice, not a consensus rule —
// nodes may run this pool with different parameters without forking.
package mempool

import (
	"errors"
	"sort"
	"sync"
	"time"

	"boundless.dev/node/consensus"
)

// Config bounds the pool's resource usage.
type Config struct {
	MaxBytes int
	// MaxEntries caps the pool's transaction count independent of size;
	// 0 means unbounded (MaxBytes is still enforced).
	MaxEntries int
}

func DefaultConfig() Config {
	return Config{
		MaxBytes:   32 * 1024 * 1024,
		MaxEntries: 50_000,
	}
}

// Entry is one admitted transaction plus the bookkeeping eviction needs.
type Entry struct {
	Tx      consensus.Transaction
	Hash    consensus.Hash
	Fee     uint64
	Size    int
	AddedAt time.Time
}

func (e *Entry) feeRate() float64 {
	if e.Size <= 0 {
		return 0
	}
	return float64(e.Fee) / float64(e.Size)
}

var (
	ErrAlreadyInPool  = errors.New("mempool: transaction already admitted")
	ErrConflicting    = errors.New("mempool: conflicts with an already-admitted transaction")
	ErrWouldNotFit    = errors.New("mempool: transaction too large to ever fit under MaxBytes")
)

// Pool is a min-fee-first eviction pool (spec §4.6, SPEC_FULL.md's MEMPOOL
// EVICTION POLICY section). Admission and eviction run under the same
// lock; callers validate against a chain-state snapshot taken just before
// calling Admit, so admission sees a consistent view even though it may
// run concurrently with block-apply (spec §4's concurrency model).
type Pool struct {
	mu sync.Mutex

	cfg Config

	byHash     map[consensus.Hash]*Entry
	order      []consensus.Hash // admission order, oldest first (FIFO tiebreak)
	spentBy    map[consensus.OutPoint]consensus.Hash
	totalBytes int
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	return &Pool{
		cfg:     cfg,
		byHash:  make(map[consensus.Hash]*Entry),
		spentBy: make(map[consensus.OutPoint]consensus.Hash),
	}
}

// Admit validates tx against state (spec §4.2's validate(tx, chain_state))
// and, if it passes, inserts it — evicting lowest fee-rate entries first if
// admitting tx would exceed the pool's byte cap. now is the admission
// timestamp used for FIFO eviction tiebreaks.
func (p *Pool) Admit(tx consensus.Transaction, state consensus.UTXOSource, now time.Time) (*Entry, error) {
	hash := consensus.TxHash(tx)
	size := consensus.TransactionSizeBytes(tx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[hash]; exists {
		return nil, ErrAlreadyInPool
	}
	for _, in := range tx.Inputs {
		op := consensus.OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}
		if _, spent := p.spentBy[op]; spent {
			return nil, ErrConflicting
		}
	}
	if p.cfg.MaxBytes > 0 && size > p.cfg.MaxBytes {
		return nil, ErrWouldNotFit
	}

	result, err := consensus.ValidateTransaction(tx, state, false)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Tx: tx, Hash: hash, Fee: result.Fee, Size: size, AddedAt: now}
	p.evictToFit(size)
	p.insert(entry)
	return entry, nil
}

// insert must be called with p.mu held.
func (p *Pool) insert(e *Entry) {
	p.byHash[e.Hash] = e
	p.order = append(p.order, e.Hash)
	p.totalBytes += e.Size
	for _, in := range e.Tx.Inputs {
		op := consensus.OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}
		p.spentBy[op] = e.Hash
	}
}

// removeLocked must be called with p.mu held.
func (p *Pool) removeLocked(hash consensus.Hash) {
	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	p.totalBytes -= e.Size
	for _, in := range e.Tx.Inputs {
		op := consensus.OutPoint{TxHash: in.PreviousOutputHash, OutputIndex: in.OutputIndex}
		if p.spentBy[op] == hash {
			delete(p.spentBy, op)
		}
	}
	for i, h := range p.order {
		if h == hash {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// evictToFit must be called with p.mu held; it evicts the lowest fee-rate
// entries (FIFO among equal rates) until admitting incomingSize more bytes
// (and, if configured, one more entry) fits within the pool's caps.
func (p *Pool) evictToFit(incomingSize int) {
	for p.cfg.MaxBytes > 0 && p.totalBytes+incomingSize > p.cfg.MaxBytes && len(p.order) > 0 {
		p.evictLowestFeeRate()
	}
	for p.cfg.MaxEntries > 0 && len(p.byHash) >= p.cfg.MaxEntries && len(p.order) > 0 {
		p.evictLowestFeeRate()
	}
}

func (p *Pool) evictLowestFeeRate() {
	victims := make([]*Entry, 0, len(p.order))
	for _, h := range p.order {
		victims = append(victims, p.byHash[h])
	}
	sort.SliceStable(victims, func(i, j int) bool {
		ri, rj := victims[i].feeRate(), victims[j].feeRate()
		if ri != rj {
			return ri < rj
		}
		return victims[i].AddedAt.Before(victims[j].AddedAt)
	})
	if len(victims) == 0 {
		return
	}
	p.removeLocked(victims[0].Hash)
}

// Remove drops hash from the pool unconditionally (e.g. a peer reported it
// invalid, or the caller is about to replace it).
func (p *Pool) Remove(hash consensus.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

// RemoveMined drops every transaction in block from the pool — called
// after a block is applied so the pool stops offering already-confirmed
// transactions to the miner (spec §4.6: "To mempool: signals which
// transactions were included").
func (p *Pool) RemoveMined(block consensus.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, tx := range block.Transactions {
		if i == 0 {
			continue // coinbase is never mempool-sourced
		}
		p.removeLocked(consensus.TxHash(tx))
	}
}

// Has reports whether hash is currently admitted.
func (p *Pool) Has(hash consensus.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[hash]
	return ok
}

// Len returns the number of currently admitted transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// Pending returns up to maxCount transactions ordered by descending
// fee-rate (highest first), for the miner to fill a block template with
// (spec §4.4: candidate block assembly pulls "pending" transactions).
func (p *Pool) Pending(maxCount int) []consensus.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]*Entry, 0, len(p.byHash))
	for _, e := range p.byHash {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := entries[i].feeRate(), entries[j].feeRate()
		if ri != rj {
			return ri > rj
		}
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})
	if maxCount > 0 && len(entries) > maxCount {
		entries = entries[:maxCount]
	}
	out := make([]consensus.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.Tx
	}
	return out
}
