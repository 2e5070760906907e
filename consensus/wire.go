package consensus

import (
	"encoding/binary"
	"fmt"

	"corechain.dev/node/crypto"
)

// BlockHeaderSize is the fixed wire size of a BlockHeader (§6).
const BlockHeaderSize = 4 + 32 + 32 + 8 + 4 + 4

// EncodeHeader writes the 80-byte bit-exact header encoding.
func EncodeHeader(h BlockHeader) []byte {
	buf := make([]byte, BlockHeaderSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], h.Version)
	off += 4
	copy(buf[off:], h.ParentHash[:])
	off += 32
	copy(buf[off:], h.MerkleRoot[:])
	off += 32
	binary.LittleEndian.PutUint64(buf[off:], uint64(h.Timestamp))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], h.Bits)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Nonce)
	return buf
}

// DecodeHeader parses the fixed 80-byte header encoding.
func DecodeHeader(b []byte) (BlockHeader, error) {
	if len(b) != BlockHeaderSize {
		return BlockHeader{}, fmt.Errorf("consensus: header must be %d bytes, got %d", BlockHeaderSize, len(b))
	}
	var h BlockHeader
	off := 0
	h.Version = binary.LittleEndian.Uint32(b[off:])
	off += 4
	copy(h.ParentHash[:], b[off:off+32])
	off += 32
	copy(h.MerkleRoot[:], b[off:off+32])
	off += 32
	h.Timestamp = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	h.Bits = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.Nonce = binary.LittleEndian.Uint32(b[off:])
	return h, nil
}

// HeaderHash computes header = SHA256(SHA256(serialised_header)) (§3).
func HeaderHash(p crypto.Provider, h BlockHeader) Hash {
	return Hash(p.SHA256d(EncodeHeader(h)))
}

// EncodeTransaction serialises a transaction in the order version, inputs,
// outputs. Amounts use a fixed 8-byte big-endian encoding; every other
// multi-byte integer is little-endian (§3, §6).
func EncodeTransaction(tx Transaction) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, tx.Version)

	buf = EncodeCompactSize(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.RefTxHash[:]...)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], in.RefIndex)
		buf = append(buf, idx[:]...)
		buf = EncodeCompactSize(buf, uint64(len(in.UnlockingParameters)))
		buf = append(buf, in.UnlockingParameters...)
	}

	buf = EncodeCompactSize(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		var amt [8]byte
		binary.BigEndian.PutUint64(amt[:], out.Amount)
		buf = append(buf, amt[:]...)
		buf = append(buf, byte(out.LockType))
		buf = EncodeCompactSize(buf, uint64(len(out.LockingParameters)))
		buf = append(buf, out.LockingParameters...)
	}
	return buf
}

// DecodeTransaction is the inverse of EncodeTransaction.
func DecodeTransaction(b []byte) (Transaction, int, error) {
	var tx Transaction
	if len(b) < 4 {
		return tx, 0, fmt.Errorf("consensus: transaction: truncated version")
	}
	tx.Version = binary.LittleEndian.Uint32(b)
	off := 4

	inCount, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return tx, 0, fmt.Errorf("consensus: transaction: input count: %w", err)
	}
	off += n
	tx.Inputs = make([]TransactionInput, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		if len(b) < off+36 {
			return tx, 0, fmt.Errorf("consensus: transaction: truncated input")
		}
		var in TransactionInput
		copy(in.RefTxHash[:], b[off:off+32])
		off += 32
		in.RefIndex = binary.LittleEndian.Uint32(b[off:])
		off += 4
		paramLen, n, err := DecodeCompactSize(b[off:])
		if err != nil {
			return tx, 0, fmt.Errorf("consensus: transaction: input params length: %w", err)
		}
		off += n
		if uint64(len(b)-off) < paramLen {
			return tx, 0, fmt.Errorf("consensus: transaction: truncated input params")
		}
		in.UnlockingParameters = append([]byte(nil), b[off:off+int(paramLen)]...)
		off += int(paramLen)
		tx.Inputs = append(tx.Inputs, in)
	}

	outCount, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return tx, 0, fmt.Errorf("consensus: transaction: output count: %w", err)
	}
	off += n
	tx.Outputs = make([]TransactionOutput, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		if len(b) < off+9 {
			return tx, 0, fmt.Errorf("consensus: transaction: truncated output")
		}
		var out TransactionOutput
		out.Amount = binary.BigEndian.Uint64(b[off:])
		off += 8
		out.LockType = LockType(b[off])
		off++
		paramLen, n, err := DecodeCompactSize(b[off:])
		if err != nil {
			return tx, 0, fmt.Errorf("consensus: transaction: output params length: %w", err)
		}
		off += n
		if uint64(len(b)-off) < paramLen {
			return tx, 0, fmt.Errorf("consensus: transaction: truncated output params")
		}
		out.LockingParameters = append([]byte(nil), b[off:off+int(paramLen)]...)
		off += int(paramLen)
		tx.Outputs = append(tx.Outputs, out)
	}
	return tx, off, nil
}

// TransactionHash computes identity = SHA256(SHA256(serialised)) (§3).
func TransactionHash(p crypto.Provider, tx Transaction) Hash {
	return Hash(p.SHA256d(EncodeTransaction(tx)))
}

// EncodeBlock serialises a header followed by a compact-size-prefixed
// transaction list.
func EncodeBlock(b Block) []byte {
	buf := EncodeHeader(b.Header)
	buf = EncodeCompactSize(buf, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		buf = append(buf, EncodeTransaction(tx)...)
	}
	return buf
}

// DecodeBlock is the inverse of EncodeBlock.
func DecodeBlock(b []byte) (Block, error) {
	if len(b) < BlockHeaderSize {
		return Block{}, fmt.Errorf("consensus: block: truncated header")
	}
	hdr, err := DecodeHeader(b[:BlockHeaderSize])
	if err != nil {
		return Block{}, err
	}
	off := BlockHeaderSize
	count, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return Block{}, fmt.Errorf("consensus: block: transaction count: %w", err)
	}
	off += n
	txs := make([]Transaction, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, n, err := DecodeTransaction(b[off:])
		if err != nil {
			return Block{}, fmt.Errorf("consensus: block: transaction %d: %w", i, err)
		}
		off += n
		txs = append(txs, tx)
	}
	return Block{Header: hdr, Transactions: txs}, nil
}

// EncodeNetworkAddress writes the 18-byte (16-byte IP + u16 big-endian port)
// wire form (§6).
func EncodeNetworkAddress(a NetworkAddress) []byte {
	buf := make([]byte, 18)
	copy(buf[:16], a.IP[:])
	binary.BigEndian.PutUint16(buf[16:], a.Port)
	return buf
}

// DecodeNetworkAddress is the inverse of EncodeNetworkAddress.
func DecodeNetworkAddress(b []byte) (NetworkAddress, error) {
	if len(b) != 18 {
		return NetworkAddress{}, fmt.Errorf("consensus: network address must be 18 bytes, got %d", len(b))
	}
	var a NetworkAddress
	copy(a.IP[:], b[:16])
	a.Port = binary.BigEndian.Uint16(b[16:])
	return a, nil
}

// InventoryType distinguishes inventory item kinds (§6).
type InventoryType uint8

const (
	InventoryTypeError       InventoryType = 0
	InventoryTypeTransaction InventoryType = 1
	InventoryTypeBlock       InventoryType = 2
)

// InventoryItem is a typed hash reference used in gossip messages.
type InventoryItem struct {
	Type InventoryType
	Hash Hash
}

// EncodeInventoryItem writes the 33-byte (1-byte type + 32-byte hash) form.
func EncodeInventoryItem(it InventoryItem) []byte {
	buf := make([]byte, 33)
	buf[0] = byte(it.Type)
	copy(buf[1:], it.Hash[:])
	return buf
}

// DecodeInventoryItem is the inverse of EncodeInventoryItem.
func DecodeInventoryItem(b []byte) (InventoryItem, error) {
	if len(b) != 33 {
		return InventoryItem{}, fmt.Errorf("consensus: inventory item must be 33 bytes, got %d", len(b))
	}
	var it InventoryItem
	it.Type = InventoryType(b[0])
	copy(it.Hash[:], b[1:])
	return it, nil
}

// EncodeUTXO serialises a UTXO for the metadata KV.
func EncodeUTXO(u UTXO) []byte {
	buf := make([]byte, 0, 32+4+4+8+1)
	buf = append(buf, u.RefTxHash[:]...)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], u.RefIndex)
	buf = append(buf, idx[:]...)
	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], u.Version)
	buf = append(buf, ver[:]...)
	var height [8]byte
	binary.LittleEndian.PutUint64(height[:], u.BlockHeight)
	buf = append(buf, height[:]...)
	if u.IsCoinbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], u.Output.Amount)
	buf = append(buf, amt[:]...)
	buf = append(buf, byte(u.Output.LockType))
	buf = EncodeCompactSize(buf, uint64(len(u.Output.LockingParameters)))
	buf = append(buf, u.Output.LockingParameters...)
	return buf
}

// DecodeUTXO is the inverse of EncodeUTXO.
func DecodeUTXO(b []byte) (UTXO, error) {
	const fixedLen = 32 + 4 + 4 + 8 + 1 + 8 + 1
	if len(b) < fixedLen {
		return UTXO{}, fmt.Errorf("consensus: utxo: truncated")
	}
	var u UTXO
	off := 0
	copy(u.RefTxHash[:], b[off:off+32])
	off += 32
	u.RefIndex = binary.LittleEndian.Uint32(b[off:])
	off += 4
	u.Version = binary.LittleEndian.Uint32(b[off:])
	off += 4
	u.BlockHeight = binary.LittleEndian.Uint64(b[off:])
	off += 8
	u.IsCoinbase = b[off] == 1
	off++
	u.Output.Amount = binary.BigEndian.Uint64(b[off:])
	off += 8
	u.Output.LockType = LockType(b[off])
	off++
	paramLen, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return UTXO{}, fmt.Errorf("consensus: utxo: locking params length: %w", err)
	}
	off += n
	if uint64(len(b)-off) < paramLen {
		return UTXO{}, fmt.Errorf("consensus: utxo: truncated locking params")
	}
	u.Output.LockingParameters = append([]byte(nil), b[off:off+int(paramLen)]...)
	return u, nil
}
