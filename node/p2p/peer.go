package p2p

import (
	"net"
	"sync"
	"time"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
)

// State is a peer connection's position in the handshake/liveness state
// machine (§4.5).
type State int

const (
	StateConnected State = iota
	StateVersionSent
	StateVersionExchanged
	StateReady
	StateDisconnected
)

// DefaultIdleTimeout disconnects a peer that has sent nothing for this long.
const DefaultIdleTimeout = 1 * time.Hour

// DefaultHeartbeatInterval is how often Serve's heartbeat loop sends a Ping
// to the peer, whatever its state, to keep liveness information current.
const DefaultHeartbeatInterval = 20 * time.Minute

// Peer is one connected remote node: its wire connection, handshake and
// liveness state, and ban score.
type Peer struct {
	conn    net.Conn
	magic   uint32
	crypto  crypto.Provider
	address consensus.NetworkAddress

	IdleTimeout       time.Duration
	HeartbeatInterval time.Duration

	mu             sync.Mutex
	state          State
	localNonce     uint64
	remoteNonce    uint64
	lastActivity   time.Time
	pongPending    bool
	pingNonce      uint64
	ban            BanScore

	knownTxs   map[consensus.Hash]bool
	knownAddrs map[consensus.NetworkAddress]bool

	writeMu sync.Mutex
}

// NewPeer wraps an established connection. localNonce is recorded on the
// peer; self-connection detection during the handshake compares the remote
// nonce against the Handler's own nonce (§4.5/§8 scenario 5).
func NewPeer(conn net.Conn, magic uint32, cp crypto.Provider, localNonce uint64, address consensus.NetworkAddress) *Peer {
	return &Peer{
		conn:              conn,
		magic:             magic,
		crypto:            cp,
		address:           address,
		IdleTimeout:       DefaultIdleTimeout,
		HeartbeatInterval: DefaultHeartbeatInterval,
		state:             StateConnected,
		localNonce:        localNonce,
		lastActivity:      time.Now(),
		knownTxs:          make(map[consensus.Hash]bool),
		knownAddrs:        make(map[consensus.NetworkAddress]bool),
	}
}

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Peer) Address() consensus.NetworkAddress { return p.address }

func (p *Peer) touch() {
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()
}

// Idle reports whether no message has arrived within IdleTimeout.
func (p *Peer) Idle(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastActivity) > p.IdleTimeout
}

// Send frames and writes a message. Writes are serialised so concurrent
// handler goroutines never interleave frames on the wire.
func (p *Peer) Send(typ MessageType, payload []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return WriteMessage(p.conn, p.crypto, p.magic, typ, payload)
}

// Receive reads the next framed message, updating liveness bookkeeping.
func (p *Peer) Receive() (Envelope, *ReadError) {
	env, rerr := ReadMessage(p.conn, p.crypto, p.magic)
	if rerr != nil {
		return Envelope{}, rerr
	}
	p.touch()
	return env, nil
}

// ApplyBanDelta increments the peer's ban score and reports whether it has
// now crossed BanThreshold.
func (p *Peer) ApplyBanDelta(delta int) bool {
	if delta == 0 {
		return false
	}
	return p.ban.Add(delta)
}

func (p *Peer) BanScore() int { return p.ban.Score() }

// MarkTxKnown records that hash has been announced to or by this peer, for
// relay deduplication.
func (p *Peer) MarkTxKnown(hash consensus.Hash) {
	p.mu.Lock()
	p.knownTxs[hash] = true
	p.mu.Unlock()
}

func (p *Peer) KnowsTx(hash consensus.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.knownTxs[hash]
}

func (p *Peer) MarkAddrKnown(addr consensus.NetworkAddress) {
	p.mu.Lock()
	p.knownAddrs[addr] = true
	p.mu.Unlock()
}

func (p *Peer) KnowsAddr(addr consensus.NetworkAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.knownAddrs[addr]
}

// BeginHeartbeat records nonce as the outstanding ping and marks a pong
// pending. A heartbeat firing while the previous pong is still pending means
// the peer missed its reply and should be disconnected (§4.5).
func (p *Peer) BeginHeartbeat(nonce uint64) (shouldDisconnect bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pongPending {
		return true
	}
	p.pongPending = true
	p.pingNonce = nonce
	return false
}

// ReceivedPong clears pong_pending if nonce matches the outstanding ping;
// otherwise it reports a mismatch for the caller to ban (§4.6).
func (p *Peer) ReceivedPong(nonce uint64) (matched bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pongPending || nonce != p.pingNonce {
		return false
	}
	p.pongPending = false
	return true
}

func (p *Peer) Close() error {
	p.setState(StateDisconnected)
	return p.conn.Close()
}
