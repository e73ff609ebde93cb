package node

import (
	"testing"

	"boundless.dev/node/consensus"
	"boundless.dev/node/contracts"
)

func TestApplyContractCall_UnknownContract(t *testing.T) {
	s := NewChainState()
	_, err := s.ApplyContractCall(nil, consensus.Address{0x01}, contracts.CallRequest{FunctionName: "run"})
	if err == nil {
		t.Fatalf("expected error for unknown contract address")
	}
}

func TestApplyContractCall_MissingStorage(t *testing.T) {
	s := NewChainState()
	addr := consensus.Address{0x02}
	s.Contracts[addr] = &ContractInfo{Wasm: []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}}
	// Deliberately no Storage entry for addr.
	_, err := s.ApplyContractCall(nil, addr, contracts.CallRequest{FunctionName: "run"})
	if err == nil {
		t.Fatalf("expected error when storage is missing for a registered contract")
	}
}
