package contracts

import (
	"encoding/binary"
	"errors"

	"boundless.dev/node/consensus"
)

// CallRequest is everything a contract invocation needs from its
// enclosing transaction and block (spec §4.7).
type CallRequest struct {
	ContractAddress consensus.Address
	FunctionName    string
	Args            []byte
	Caller          consensus.Address
	BlockHeight     uint64
	Timestamp       uint64
}

// DecodeCallPayload parses a Call transaction's script field, fixed wire
// format `[u16 LE name_len][name][args…]` (spec §4.7: "this wire
// encoding is fixed and must be used by any client — no function
// selector hashing").
func DecodeCallPayload(payload []byte) (functionName string, args []byte, err error) {
	if len(payload) < 2 {
		return "", nil, errors.New("contracts: call payload too short")
	}
	nameLen := binary.LittleEndian.Uint16(payload[:2])
	rest := payload[2:]
	if int(nameLen) > len(rest) {
		return "", nil, errors.New("contracts: call payload name_len exceeds payload")
	}
	name := rest[:nameLen]
	if len(name) == 0 {
		return "", nil, errors.New("contracts: call payload has empty function name")
	}
	return string(name), rest[nameLen:], nil
}

// EncodeCallPayload is the wire-encoding counterpart of
// DecodeCallPayload, used by tests and by anything constructing a Call
// transaction's script field.
func EncodeCallPayload(functionName string, args []byte) []byte {
	out := make([]byte, 2, 2+len(functionName)+len(args))
	binary.LittleEndian.PutUint16(out, uint16(len(functionName)))
	out = append(out, functionName...)
	out = append(out, args...)
	return out
}

// CallResult is what a successful Sandbox.Execute returns.
type CallResult struct {
	ReturnData []byte
	FuelUsed   uint64
	Journal    []StorageChange
	Logs       []string
}
