package p2p

import (
	"encoding/binary"
	"fmt"

	"corechain.dev/node/consensus"
)

// MaxUserAgentBytes bounds the Version payload's user agent string.
const MaxUserAgentBytes = 256

// MaxAddressEntries bounds an Address message (§4.5).
const MaxAddressEntries = 1000

// MaxBlocksPerMessage bounds a Blocks message (§4.5).
const MaxBlocksPerMessage = 500

// VersionPayload is the handshake's initial message.
type VersionPayload struct {
	ProtocolVersion int32
	Services        uint64
	Timestamp       int64
	Recipient       consensus.NetworkAddress
	Sender          consensus.NetworkAddress
	Nonce           uint64
	UserAgent       string
	BestHeight      int32
}

func EncodeVersionPayload(v VersionPayload) []byte {
	buf := make([]byte, 0, 4+8+8+18+18+8+4+len(v.UserAgent)+4)
	buf = appendInt32(buf, v.ProtocolVersion)
	buf = appendUint64(buf, v.Services)
	buf = appendInt64(buf, v.Timestamp)
	buf = append(buf, consensus.EncodeNetworkAddress(v.Recipient)...)
	buf = append(buf, consensus.EncodeNetworkAddress(v.Sender)...)
	buf = appendUint64(buf, v.Nonce)
	buf = consensus.EncodeCompactSize(buf, uint64(len(v.UserAgent)))
	buf = append(buf, v.UserAgent...)
	buf = appendInt32(buf, v.BestHeight)
	return buf
}

func DecodeVersionPayload(b []byte) (VersionPayload, error) {
	var v VersionPayload
	if len(b) < 4+8+8+18+18+8 {
		return v, fmt.Errorf("p2p: version payload truncated")
	}
	off := 0
	v.ProtocolVersion, off = readInt32(b, off)
	v.Services, off = readUint64(b, off)
	v.Timestamp, off = readInt64(b, off)
	recipient, err := consensus.DecodeNetworkAddress(b[off : off+18])
	if err != nil {
		return v, err
	}
	v.Recipient = recipient
	off += 18
	sender, err := consensus.DecodeNetworkAddress(b[off : off+18])
	if err != nil {
		return v, err
	}
	v.Sender = sender
	off += 18
	v.Nonce, off = readUint64(b, off)
	uaLen, n, err := consensus.DecodeCompactSize(b[off:])
	if err != nil {
		return v, fmt.Errorf("p2p: version user agent length: %w", err)
	}
	off += n
	if uaLen > MaxUserAgentBytes {
		return v, fmt.Errorf("p2p: version user agent too long: %d", uaLen)
	}
	if len(b) < off+int(uaLen)+4 {
		return v, fmt.Errorf("p2p: version payload truncated at user agent")
	}
	v.UserAgent = string(b[off : off+int(uaLen)])
	off += int(uaLen)
	v.BestHeight, off = readInt32(b, off)
	return v, nil
}

// PingPongPayload carries the nonce both Ping and Pong use (§4.5).
type PingPongPayload struct {
	Nonce uint64
}

func EncodePingPong(p PingPongPayload) []byte {
	return appendUint64(nil, p.Nonce)
}

func DecodePingPong(b []byte) (PingPongPayload, error) {
	if len(b) != 8 {
		return PingPongPayload{}, fmt.Errorf("p2p: ping/pong payload must be 8 bytes")
	}
	nonce, _ := readUint64(b, 0)
	return PingPongPayload{Nonce: nonce}, nil
}

// AddressEntry is one (timestamp, address) pair inside an Address message.
type AddressEntry struct {
	Timestamp int64
	Address   consensus.NetworkAddress
}

func EncodeAddressPayload(entries []AddressEntry) ([]byte, error) {
	if len(entries) > MaxAddressEntries {
		return nil, fmt.Errorf("p2p: too many address entries: %d", len(entries))
	}
	buf := consensus.EncodeCompactSize(nil, uint64(len(entries)))
	for _, e := range entries {
		buf = appendInt64(buf, e.Timestamp)
		buf = append(buf, consensus.EncodeNetworkAddress(e.Address)...)
	}
	return buf, nil
}

func DecodeAddressPayload(b []byte) ([]AddressEntry, error) {
	count, n, err := consensus.DecodeCompactSize(b)
	if err != nil {
		return nil, err
	}
	if count > MaxAddressEntries {
		return nil, fmt.Errorf("p2p: too many address entries: %d", count)
	}
	off := n
	out := make([]AddressEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(b) < off+8+18 {
			return nil, fmt.Errorf("p2p: address payload truncated")
		}
		ts, newOff := readInt64(b, off)
		off = newOff
		addr, err := consensus.DecodeNetworkAddress(b[off : off+18])
		if err != nil {
			return nil, err
		}
		off += 18
		out = append(out, AddressEntry{Timestamp: ts, Address: addr})
	}
	return out, nil
}

// GetBlocksPayload carries a block locator and a stop hash (§4.5).
type GetBlocksPayload struct {
	Locator  []consensus.Hash
	HashStop consensus.Hash
}

func EncodeGetBlocksPayload(p GetBlocksPayload) []byte {
	buf := consensus.EncodeCompactSize(nil, uint64(len(p.Locator)))
	for _, h := range p.Locator {
		buf = append(buf, h[:]...)
	}
	buf = append(buf, p.HashStop[:]...)
	return buf
}

func DecodeGetBlocksPayload(b []byte) (GetBlocksPayload, error) {
	var p GetBlocksPayload
	count, n, err := consensus.DecodeCompactSize(b)
	if err != nil {
		return p, err
	}
	off := n
	p.Locator = make([]consensus.Hash, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(b) < off+32 {
			return p, fmt.Errorf("p2p: getblocks payload truncated")
		}
		var h consensus.Hash
		copy(h[:], b[off:off+32])
		off += 32
		p.Locator = append(p.Locator, h)
	}
	if len(b) < off+32 {
		return p, fmt.Errorf("p2p: getblocks payload truncated at hash_stop")
	}
	copy(p.HashStop[:], b[off:off+32])
	return p, nil
}

func EncodeBlocksPayload(blocks []consensus.Block) ([]byte, error) {
	if len(blocks) > MaxBlocksPerMessage {
		return nil, fmt.Errorf("p2p: too many blocks: %d", len(blocks))
	}
	buf := consensus.EncodeCompactSize(nil, uint64(len(blocks)))
	for _, b := range blocks {
		buf = append(buf, consensus.EncodeBlock(b)...)
	}
	return buf, nil
}

func DecodeBlocksPayload(b []byte) ([]consensus.Block, error) {
	count, n, err := consensus.DecodeCompactSize(b)
	if err != nil {
		return nil, err
	}
	if count > MaxBlocksPerMessage {
		return nil, fmt.Errorf("p2p: too many blocks: %d", count)
	}
	off := n
	out := make([]consensus.Block, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(b) < off+consensus.BlockHeaderSize {
			return nil, fmt.Errorf("p2p: blocks payload truncated")
		}
		blk, err := consensus.DecodeBlock(b[off:])
		if err != nil {
			return nil, err
		}
		out = append(out, blk)
		off += len(consensus.EncodeBlock(blk))
	}
	return out, nil
}

// GetHeaderPayload / HeaderPayload are single-header request/response
// messages (§4.5 "GetHeader / Header").
type GetHeaderPayload struct {
	Hash consensus.Hash
}

func EncodeGetHeaderPayload(p GetHeaderPayload) []byte {
	return append([]byte(nil), p.Hash[:]...)
}

func DecodeGetHeaderPayload(b []byte) (GetHeaderPayload, error) {
	if len(b) != 32 {
		return GetHeaderPayload{}, fmt.Errorf("p2p: getheader payload must be 32 bytes")
	}
	var p GetHeaderPayload
	copy(p.Hash[:], b)
	return p, nil
}

type HeaderPayload struct {
	Header consensus.BlockHeader
}

func EncodeHeaderPayload(p HeaderPayload) []byte {
	return consensus.EncodeHeader(p.Header)
}

func DecodeHeaderPayload(b []byte) (HeaderPayload, error) {
	h, err := consensus.DecodeHeader(b)
	if err != nil {
		return HeaderPayload{}, err
	}
	return HeaderPayload{Header: h}, nil
}

// EncodeHashListPayload / DecodeHashListPayload cover KnownTransactions,
// GetTransactions (both "inventory of hashes", §4.5).
func EncodeHashListPayload(hashes []consensus.Hash) []byte {
	buf := consensus.EncodeCompactSize(nil, uint64(len(hashes)))
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func DecodeHashListPayload(b []byte) ([]consensus.Hash, error) {
	count, n, err := consensus.DecodeCompactSize(b)
	if err != nil {
		return nil, err
	}
	off := n
	out := make([]consensus.Hash, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(b) < off+32 {
			return nil, fmt.Errorf("p2p: hash list payload truncated")
		}
		var h consensus.Hash
		copy(h[:], b[off:off+32])
		off += 32
		out = append(out, h)
	}
	return out, nil
}

func EncodeTransactionsPayload(txs []consensus.Transaction) []byte {
	buf := consensus.EncodeCompactSize(nil, uint64(len(txs)))
	for _, tx := range txs {
		buf = append(buf, consensus.EncodeTransaction(tx)...)
	}
	return buf
}

func DecodeTransactionsPayload(b []byte) ([]consensus.Transaction, error) {
	count, n, err := consensus.DecodeCompactSize(b)
	if err != nil {
		return nil, err
	}
	off := n
	out := make([]consensus.Transaction, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, consumed, err := consensus.DecodeTransaction(b[off:])
		if err != nil {
			return nil, err
		}
		off += consumed
		out = append(out, tx)
	}
	return out, nil
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

func readInt32(b []byte, off int) (int32, int) {
	return int32(binary.LittleEndian.Uint32(b[off:])), off + 4
}

func appendInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

func readInt64(b []byte, off int) (int64, int) {
	return int64(binary.LittleEndian.Uint64(b[off:])), off + 8
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readUint64(b []byte, off int) (uint64, int) {
	return binary.LittleEndian.Uint64(b[off:]), off + 8
}
