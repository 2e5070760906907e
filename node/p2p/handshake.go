package p2p

import (
	"fmt"
	"time"

	"corechain.dev/node/consensus"
)

// ProtocolVersion is this implementation's wire protocol version.
const ProtocolVersion = 1

// ServiceFullNode marks a peer as a full archival/validating node in the
// Version message's services bitmask.
const ServiceFullNode uint64 = 1 << 0

// BuildVersionPayload constructs the local Version announcement.
func BuildVersionPayload(localNonce uint64, userAgent string, bestHeight int32, sender, recipient consensus.NetworkAddress) VersionPayload {
	return VersionPayload{
		ProtocolVersion: ProtocolVersion,
		Services:        ServiceFullNode,
		Timestamp:       time.Now().Unix(),
		Recipient:       recipient,
		Sender:          sender,
		Nonce:           localNonce,
		UserAgent:       userAgent,
		BestHeight:      bestHeight,
	}
}

// IsSelfConnect reports whether a received Version nonce matches the local
// nonce generated for this node's own outbound connections, the signal this
// protocol uses instead of a chain/network identifier to detect a node
// dialing itself (§4.5/§8 scenario 5).
func IsSelfConnect(localNonce, remoteNonce uint64) bool {
	return localNonce == remoteNonce
}

// handshakeError wraps a handshake-stage protocol violation.
type handshakeError struct {
	msg           string
	banScoreDelta int
}

func (e *handshakeError) Error() string { return e.msg }

func errUnexpectedMessage(state State, typ MessageType) *handshakeError {
	return &handshakeError{
		msg:           fmt.Sprintf("p2p: unexpected message type %d in state %d", typ, state),
		banScoreDelta: 20,
	}
}
