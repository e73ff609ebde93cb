package node

import (
	"fmt"
	"time"

	"boundless.dev/node/consensus"
	"boundless.dev/node/mempool"
	"boundless.dev/node/p2p"
)

// Peer tracks one connection's reputation and dispatches spec §6's 5-message
// wire protocol (GetBlocks/Blocks, NewBlock, NewTransaction, GetStatus/Status,
// Ping/Pong) against a SyncEngine and Pool. It owns no socket: callers
// decode with p2p.ReadMessage/WriteMessage and hand the result to Handle.
type Peer struct {
	ban p2p.BanScore
}

// MaxBlocksPerGetBlocks caps how many blocks a single GetBlocks request may
// return, independent of the requester's count (mirrors the header-sync
// batch cap already enforced by SyncConfig.HeaderBatchLimit).
const MaxBlocksPerGetBlocks = 512

// Handle dispatches one decoded message and returns the response message
// (if the command expects one) or an error. An unrecognized command adds
// p2p.UnrecognizedCommandBanDelta to this peer's ban score. now is used both
// for mempool admission timestamps and I/O-free reputation bookkeeping.
func (p *Peer) Handle(sync *SyncEngine, pool *mempool.Pool, msg *p2p.Message, now time.Time) (*p2p.Message, error) {
	switch msg.Command {
	case p2p.CmdGetStatus:
		return p.handleGetStatus(sync)
	case p2p.CmdGetBlocks:
		return p.handleGetBlocks(sync, msg.Payload)
	case p2p.CmdNewBlock:
		return nil, p.handleNewBlock(sync, msg.Payload, now)
	case p2p.CmdNewTransaction:
		return nil, p.handleNewTransaction(sync, pool, msg.Payload, now)
	case p2p.CmdPing:
		return p.handlePing(msg.Payload)
	default:
		p.ban.Add(now, p2p.UnrecognizedCommandBanDelta)
		return nil, fmt.Errorf("p2p: unrecognized command %q", msg.Command)
	}
}

func (p *Peer) handleGetStatus(sync *SyncEngine) (*p2p.Message, error) {
	height, bestHash, totalSupply, _ := sync.chainState.Snapshot()
	payload := p2p.EncodeStatusPayload(p2p.StatusPayload{
		Height:        height,
		BestBlockHash: bestHash,
		TotalSupply:   totalSupply,
	})
	return &p2p.Message{Command: p2p.CmdStatus, Payload: payload}, nil
}

func (p *Peer) handleGetBlocks(sync *SyncEngine, payload []byte) (*p2p.Message, error) {
	req, err := p2p.DecodeGetBlocksPayload(payload)
	if err != nil {
		return nil, err
	}
	count := req.Count
	if count > MaxBlocksPerGetBlocks {
		count = MaxBlocksPerGetBlocks
	}
	all, err := sync.db.BestChainBlocks()
	if err != nil {
		return nil, fmt.Errorf("p2p: getblocks: %w", err)
	}
	var out []consensus.Block
	for _, blk := range all {
		if blk.Header.Height < req.StartHeight {
			continue
		}
		if uint32(len(out)) >= count {
			break
		}
		out = append(out, blk)
	}
	resp := p2p.EncodeBlocksPayload(p2p.BlocksPayload{Blocks: out})
	return &p2p.Message{Command: p2p.CmdBlocks, Payload: resp}, nil
}

func (p *Peer) handleNewBlock(sync *SyncEngine, payload []byte, now time.Time) error {
	nb, err := p2p.DecodeNewBlockPayload(payload)
	if err != nil {
		return err
	}
	_, err = sync.ApplyBlock(consensus.BlockBytes(nb.Block), uint64(now.Unix()))
	return err
}

func (p *Peer) handleNewTransaction(sync *SyncEngine, pool *mempool.Pool, payload []byte, now time.Time) error {
	if pool == nil {
		return fmt.Errorf("p2p: newtx: no mempool attached")
	}
	nt, err := p2p.DecodeNewTransactionPayload(payload)
	if err != nil {
		return err
	}
	_, err = pool.Admit(nt.Transaction, sync.chainState, now)
	return err
}

func (p *Peer) handlePing(payload []byte) (*p2p.Message, error) {
	ping, err := p2p.DecodePingPayload(payload)
	if err != nil {
		return nil, err
	}
	pong, err := p2p.EncodePongPayload(p2p.PongPayload{Nonce: ping.Nonce})
	if err != nil {
		return nil, err
	}
	return &p2p.Message{Command: p2p.CmdPong, Payload: pong}, nil
}
