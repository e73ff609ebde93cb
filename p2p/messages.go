package p2p

// Wire message set (spec §6). Protocol version 1; identifier /boundless/1.0.0.
// Any command outside this set is ignored by the receiver, and the sending
// peer's reputation is decremented (see BanScore).
const (
	CmdGetBlocks    = "getblocks"
	CmdBlocks       = "blocks"
	CmdNewBlock     = "newblock"
	CmdNewTransaction = "newtx"
	CmdGetStatus    = "getstatus"
	CmdStatus       = "status"
	CmdPing         = "ping"
	CmdPong         = "pong"
)

const (
	ProtocolVersion    = 1
	ProtocolIdentifier = "/boundless/1.0.0"
)

// UnrecognizedCommandBanDelta is applied when a peer sends a command
// outside the spec §6 wire message set.
const UnrecognizedCommandBanDelta = 1
