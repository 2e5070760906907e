package p2p

import (
	"errors"
	"time"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
	"corechain.dev/node/node/chain"
	"corechain.dev/node/node/mempool"
	"corechain.dev/node/node/store"
)

// Handler dispatches inbound messages for one peer against the shared node
// state (chain engine, mempool, address pool), per §4.6.
type Handler struct {
	engine  *chain.Engine
	pool    *mempool.Pool
	addrs   *store.AddressPool
	magic   uint32
	selfNonce uint64
}

// NewHandler constructs a dispatcher shared by every peer connection.
func NewHandler(engine *chain.Engine, pool *mempool.Pool, addrs *store.AddressPool, magic uint32, selfNonce uint64) *Handler {
	return &Handler{engine: engine, pool: pool, addrs: addrs, magic: magic, selfNonce: selfNonce}
}

// Dispatch processes one envelope for peer, returning a ban-score delta and
// whether the peer should be disconnected as a result.
func (h *Handler) Dispatch(peer *Peer, env Envelope) (banDelta int, disconnect bool) {
	state := peer.State()

	// Outside the handshake, only a Ready peer may send protocol messages.
	if state != StateReady {
		switch env.Type {
		case MessageTypeVersion, MessageTypeVerack:
		default:
			return 20, true
		}
	}

	switch env.Type {
	case MessageTypeVersion:
		return h.handleVersion(peer, env.Payload)
	case MessageTypeVerack:
		return h.handleVerack(peer)
	case MessageTypePing:
		return h.handlePing(peer, env.Payload)
	case MessageTypePong:
		return h.handlePong(peer, env.Payload)
	case MessageTypeGetAddress:
		return h.handleGetAddress(peer)
	case MessageTypeAddress:
		return h.handleAddress(peer, env.Payload)
	case MessageTypeGetBlocks:
		return h.handleGetBlocks(peer, env.Payload)
	case MessageTypeBlocks:
		return h.handleBlocks(peer, env.Payload)
	case MessageTypeGetHeader:
		return h.handleGetHeader(peer, env.Payload)
	case MessageTypeHeader:
		return 0, false // informational only; IBD tracks headers via Blocks
	case MessageTypeGetUnconfirmedTransactions:
		return h.handleGetUnconfirmedTransactions(peer)
	case MessageTypeKnownTransactions:
		return h.handleKnownTransactions(peer, env.Payload)
	case MessageTypeGetTransactions:
		return h.handleGetTransactions(peer, env.Payload)
	case MessageTypeTransactions:
		return h.handleTransactions(peer, env.Payload)
	default:
		return 20, true
	}
}

func (h *Handler) handleVersion(peer *Peer, payload []byte) (int, bool) {
	v, err := DecodeVersionPayload(payload)
	if err != nil {
		return 20, true
	}
	if IsSelfConnect(h.selfNonce, v.Nonce) {
		return 0, true // quiet disconnect, not a ban: this is our own loopback
	}
	peer.mu.Lock()
	peer.remoteNonce = v.Nonce
	peer.mu.Unlock()
	peer.setState(StateVersionExchanged)
	if err := peer.Send(MessageTypeVerack, nil); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleVerack(peer *Peer) (int, bool) {
	if peer.State() == StateVersionExchanged || peer.State() == StateVersionSent {
		peer.setState(StateReady)
	}
	return 0, false
}

func (h *Handler) handlePing(peer *Peer, payload []byte) (int, bool) {
	pp, err := DecodePingPong(payload)
	if err != nil {
		return 20, true
	}
	if err := peer.Send(MessageTypePong, EncodePingPong(pp)); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handlePong(peer *Peer, payload []byte) (int, bool) {
	pp, err := DecodePingPong(payload)
	if err != nil {
		return 20, true
	}
	if !peer.ReceivedPong(pp.Nonce) {
		return 20, false // nonce mismatch: ProtocolViolation, but not worth disconnecting over
	}
	return 0, false
}

func (h *Handler) handleGetAddress(peer *Peer) (int, bool) {
	candidates, err := h.addrs.GetRandom(30, time.Now())
	if err != nil {
		return 0, false
	}
	entries := make([]AddressEntry, 0, len(candidates))
	for _, md := range candidates {
		entries = append(entries, AddressEntry{Timestamp: md.LastSeen, Address: md.Address})
	}
	body, err := EncodeAddressPayload(entries)
	if err != nil {
		return 0, false
	}
	if err := peer.Send(MessageTypeAddress, body); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleAddress(peer *Peer, payload []byte) (int, bool) {
	entries, err := DecodeAddressPayload(payload)
	if err != nil {
		return 20, true
	}
	for _, e := range entries {
		if peer.KnowsAddr(e.Address) {
			continue
		}
		peer.MarkAddrKnown(e.Address)
		md := consensus.NetworkAddressMetadata{LastSeen: e.Timestamp, Address: e.Address}
		if err := h.addrs.Put(md); err != nil {
			return 0, false
		}
	}
	return 0, false
}

func (h *Handler) handleGetBlocks(peer *Peer, payload []byte) (int, bool) {
	req, err := DecodeGetBlocksPayload(payload)
	if err != nil {
		return 20, true
	}
	head, ok, err := h.engine.ChainHead()
	if err != nil || !ok {
		return 0, false
	}
	start := head.Hash
	for _, loc := range req.Locator {
		if md, ok, err := h.engine.Persist().GetBlockMetadata(loc); err == nil && ok {
			start = loc
			_ = md
			break
		}
	}
	var blocks []consensus.Block
	cur := head.Hash
	for len(blocks) < MaxBlocksPerMessage && cur != start && cur != req.HashStop {
		b, err := h.engine.Persist().GetBlock(cur)
		if err != nil {
			break
		}
		blocks = append([]consensus.Block{b}, blocks...)
		cur = b.Header.ParentHash
	}
	body, err := EncodeBlocksPayload(blocks)
	if err != nil {
		return 0, false
	}
	if err := peer.Send(MessageTypeBlocks, body); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleBlocks(peer *Peer, payload []byte) (int, bool) {
	blocks, err := DecodeBlocksPayload(payload)
	if err != nil {
		return 20, true
	}
	for _, b := range blocks {
		if err := h.engine.AddBlock(b); err != nil {
			var cerr *corecore.Error
			if errors.As(err, &cerr) && cerr.BanDelta > 0 {
				return cerr.BanDelta, false
			}
		}
	}
	return 0, false
}

func (h *Handler) handleGetHeader(peer *Peer, payload []byte) (int, bool) {
	req, err := DecodeGetHeaderPayload(payload)
	if err != nil {
		return 20, true
	}
	md, ok, err := h.engine.Persist().GetBlockMetadata(req.Hash)
	if err != nil || !ok {
		return 0, false
	}
	if err := peer.Send(MessageTypeHeader, EncodeHeaderPayload(HeaderPayload{Header: md.Header})); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleGetUnconfirmedTransactions(peer *Peer) (int, bool) {
	hashes := h.pool.KnownHashes()
	if err := peer.Send(MessageTypeKnownTransactions, EncodeHashListPayload(hashes)); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleKnownTransactions(peer *Peer, payload []byte) (int, bool) {
	hashes, err := DecodeHashListPayload(payload)
	if err != nil {
		return 20, true
	}
	var want []consensus.Hash
	for _, hh := range hashes {
		peer.MarkTxKnown(hh)
		if !h.pool.Has(hh) {
			want = append(want, hh)
		}
	}
	if len(want) == 0 {
		return 0, false
	}
	if err := peer.Send(MessageTypeGetTransactions, EncodeHashListPayload(want)); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleGetTransactions(peer *Peer, payload []byte) (int, bool) {
	hashes, err := DecodeHashListPayload(payload)
	if err != nil {
		return 20, true
	}
	txs := h.pool.GetMany(hashes)
	if err := peer.Send(MessageTypeTransactions, EncodeTransactionsPayload(txs)); err != nil {
		return 0, true
	}
	return 0, false
}

func (h *Handler) handleTransactions(peer *Peer, payload []byte) (int, bool) {
	txs, err := DecodeTransactionsPayload(payload)
	if err != nil {
		return 20, true
	}
	for _, tx := range txs {
		admitted, err := h.pool.AddTransaction(tx)
		if err != nil {
			var cerr *corecore.Error
			if errors.As(err, &cerr) && cerr.BanDelta > 0 {
				return cerr.BanDelta, false
			}
			continue
		}
		if admitted {
			peer.MarkTxKnown(consensus.TransactionHash(h.engine.Crypto(), tx))
		}
	}
	return 0, false
}
