package p2p

import (
	"math/rand"
	"time"

	"corechain.dev/node/consensus"
)

// Serve runs a peer's full connection lifecycle: heartbeat ticking and the
// inbound message loop, until the peer disconnects or is banned (§4.5).
// It returns the reason the connection ended.
func (h *Handler) Serve(peer *Peer) error {
	done := make(chan struct{})
	defer close(done)
	go h.heartbeatLoop(peer, done)

	for {
		env, rerr := peer.Receive()
		if rerr != nil {
			if rerr.BanScoreDelta > 0 {
				peer.ApplyBanDelta(rerr.BanScoreDelta)
			}
			peer.Close()
			return rerr
		}

		delta, disconnect := h.Dispatch(peer, env)
		banned := peer.ApplyBanDelta(delta)
		if banned || disconnect {
			peer.Close()
			return nil
		}
	}
}

func (h *Handler) heartbeatLoop(peer *Peer, done <-chan struct{}) {
	ticker := time.NewTicker(peer.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if peer.Idle(time.Now()) {
				peer.Close()
				return
			}
			nonce := rand.Uint64()
			if shouldDisconnect := peer.BeginHeartbeat(nonce); shouldDisconnect {
				peer.Close()
				return
			}
			if err := peer.Send(MessageTypePing, EncodePingPong(PingPongPayload{Nonce: nonce})); err != nil {
				peer.Close()
				return
			}
		}
	}
}

// InitiateHandshake sends the local Version announcement on an outbound
// connection and advances the peer to VersionSent, leaving the remainder of
// the handshake (receiving the peer's Version, exchanging Verack) to the
// Dispatch loop run by Serve.
func (h *Handler) InitiateHandshake(peer *Peer, localNonce uint64, userAgent string, bestHeight int32, sender, recipient consensus.NetworkAddress) error {
	v := BuildVersionPayload(localNonce, userAgent, bestHeight, sender, recipient)
	if err := peer.Send(MessageTypeVersion, EncodeVersionPayload(v)); err != nil {
		return err
	}
	peer.setState(StateVersionSent)
	return nil
}
