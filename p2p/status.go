package p2p

import (
	"encoding/binary"
	"fmt"
)

// StatusPayload answers GetStatus (spec §6): height, best_block_hash,
// total_supply. GetStatus itself carries no payload.
type StatusPayload struct {
	Height        uint64
	BestBlockHash [32]byte
	TotalSupply   uint64
}

func EncodeStatusPayload(s StatusPayload) []byte {
	out := make([]byte, 0, 8+32+8)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], s.Height)
	out = append(out, tmp8[:]...)
	out = append(out, s.BestBlockHash[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], s.TotalSupply)
	out = append(out, tmp8[:]...)
	return out
}

func DecodeStatusPayload(b []byte) (*StatusPayload, error) {
	if len(b) != 8+32+8 {
		return nil, fmt.Errorf("p2p: status: invalid payload length")
	}
	var s StatusPayload
	s.Height = binary.LittleEndian.Uint64(b[0:8])
	copy(s.BestBlockHash[:], b[8:40])
	s.TotalSupply = binary.LittleEndian.Uint64(b[40:48])
	return &s, nil
}
