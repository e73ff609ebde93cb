package node

import (
	"errors"

	"boundless.dev/node/consensus"
	"boundless.dev/node/contracts"
)

// ApplyContractCall executes req against contractAddr's current storage
// through sandbox and, only on success, commits the call's journal (spec
// §4.7: a failing call's journal never touches chain state). storage_used
// is kept in lock-step with the journal (spec I6).
func (s *ChainState) ApplyContractCall(sandbox *contracts.Sandbox, contractAddr consensus.Address, req contracts.CallRequest) (*contracts.CallResult, error) {
	s.mu.Lock()
	info, ok := s.Contracts[contractAddr]
	if !ok {
		s.mu.Unlock()
		return nil, errors.New("contract call: unknown contract address")
	}
	storage, ok := s.Storage[contractAddr]
	if !ok {
		s.mu.Unlock()
		return nil, errors.New("contract call: missing storage for deployed contract")
	}
	kvSnapshot := make(map[string][]byte, len(storage.KV))
	for k, v := range storage.KV {
		kvSnapshot[k] = v
	}
	state := contracts.ContractState{Quota: storage.Quota, Used: storage.Used, KV: kvSnapshot}
	s.mu.Unlock()

	req.ContractAddress = contractAddr
	result, err := sandbox.Execute(info.Wasm, state, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-fetch: a concurrent reorg rebuild could have replaced the
	// storage map between Execute (run without the lock held) and here.
	storage, ok = s.Storage[contractAddr]
	if !ok {
		return nil, errors.New("contract call: storage vanished during execution")
	}
	for _, change := range result.Journal {
		key := string(change.Key)
		_, existed := storage.KV[key]
		if change.Removed {
			if existed {
				delete(storage.KV, key)
				storage.Used--
			}
			continue
		}
		if !existed {
			storage.Used++
		}
		storage.KV[key] = change.Value
	}
	return result, nil
}
