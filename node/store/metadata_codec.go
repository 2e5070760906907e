package store

import (
	"encoding/binary"
	"fmt"

	"corechain.dev/node/consensus"
)

func encodeStoragePointer(buf []byte, p consensus.StoragePointer) []byte {
	var seg [4]byte
	binary.LittleEndian.PutUint32(seg[:], p.Segment)
	buf = append(buf, seg[:]...)
	var off [8]byte
	binary.LittleEndian.PutUint64(off[:], p.Offset)
	return append(buf, off[:]...)
}

func decodeStoragePointer(b []byte) (consensus.StoragePointer, error) {
	if len(b) < 12 {
		return consensus.StoragePointer{}, fmt.Errorf("store: storage pointer truncated")
	}
	return consensus.StoragePointer{
		Segment: binary.LittleEndian.Uint32(b[0:4]),
		Offset:  binary.LittleEndian.Uint64(b[4:12]),
	}, nil
}

// encodeBlockMetadata serialises a BlockMetadata for the metadata KV.
func encodeBlockMetadata(md consensus.BlockMetadata) []byte {
	buf := make([]byte, 0, 149)
	buf = append(buf, consensus.EncodeHeader(md.Header)...)
	var height [8]byte
	binary.LittleEndian.PutUint64(height[:], md.Height)
	buf = append(buf, height[:]...)
	buf = append(buf, md.CumulativeWork[:]...)
	var txCount [4]byte
	binary.LittleEndian.PutUint32(txCount[:], md.TxCount)
	buf = append(buf, txCount[:]...)
	buf = append(buf, byte(md.Status))
	buf = encodeStoragePointer(buf, md.BlockPointer)
	buf = encodeStoragePointer(buf, md.RevertPointer)
	return buf
}

func decodeBlockMetadata(b []byte) (consensus.BlockMetadata, error) {
	const fixedLen = consensus.BlockHeaderSize + 8 + 32 + 4 + 1 + 12 + 12
	if len(b) != fixedLen {
		return consensus.BlockMetadata{}, fmt.Errorf("store: block metadata has wrong size: %d", len(b))
	}
	var md consensus.BlockMetadata
	off := 0
	hdr, err := consensus.DecodeHeader(b[off : off+consensus.BlockHeaderSize])
	if err != nil {
		return md, err
	}
	md.Header = hdr
	off += consensus.BlockHeaderSize
	md.Height = binary.LittleEndian.Uint64(b[off:])
	off += 8
	copy(md.CumulativeWork[:], b[off:off+32])
	off += 32
	md.TxCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	md.Status = consensus.BlockStatus(b[off])
	off++
	ptr, err := decodeStoragePointer(b[off : off+12])
	if err != nil {
		return md, err
	}
	md.BlockPointer = ptr
	off += 12
	ptr, err = decodeStoragePointer(b[off : off+12])
	if err != nil {
		return md, err
	}
	md.RevertPointer = ptr
	return md, nil
}

func encodeTransactionMetadata(md consensus.TransactionMetadata) []byte {
	buf := make([]byte, 0, 64)
	buf = encodeStoragePointer(buf, md.BlockPointer)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], md.TransactionIndex)
	buf = append(buf, idx[:]...)
	var height [8]byte
	binary.LittleEndian.PutUint64(height[:], md.BlockHeight)
	buf = append(buf, height[:]...)
	buf = append(buf, md.BlockHash[:]...)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(md.Timestamp))
	buf = append(buf, ts[:]...)
	return buf
}

func decodeTransactionMetadata(b []byte) (consensus.TransactionMetadata, error) {
	if len(b) != 64 {
		return consensus.TransactionMetadata{}, fmt.Errorf("store: transaction metadata has wrong size: %d", len(b))
	}
	var md consensus.TransactionMetadata
	ptr, err := decodeStoragePointer(b[0:12])
	if err != nil {
		return md, err
	}
	md.BlockPointer = ptr
	md.TransactionIndex = binary.LittleEndian.Uint32(b[12:16])
	md.BlockHeight = binary.LittleEndian.Uint64(b[16:24])
	copy(md.BlockHash[:], b[24:56])
	md.Timestamp = int64(binary.LittleEndian.Uint64(b[56:64]))
	return md, nil
}
