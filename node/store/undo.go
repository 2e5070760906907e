package store

import (
	"encoding/binary"
	"fmt"

	"corechain.dev/node/consensus"
)

// RevertData is what a block's revert record must carry to undo it: the
// full UTXOs it spent (restored verbatim, including version/height/
// is-coinbase per §9's open question) and the OutPoints it created (deleted
// on revert).
type RevertData struct {
	Spent   []consensus.UTXO
	Created []consensus.OutPoint
}

// EncodeRevertData serialises a RevertData record for the revert segment
// store.
func EncodeRevertData(r RevertData) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(r.Spent)))
	for _, u := range r.Spent {
		entry := consensus.EncodeUTXO(u)
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(entry)))
		buf = append(buf, l[:]...)
		buf = append(buf, entry...)
	}
	var createdCount [4]byte
	binary.LittleEndian.PutUint32(createdCount[:], uint32(len(r.Created)))
	buf = append(buf, createdCount[:]...)
	for _, op := range r.Created {
		buf = append(buf, op.RefTxHash[:]...)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], op.RefIndex)
		buf = append(buf, idx[:]...)
	}
	return buf
}

// DecodeRevertData is the inverse of EncodeRevertData.
func DecodeRevertData(b []byte) (RevertData, error) {
	var r RevertData
	if len(b) < 4 {
		return r, fmt.Errorf("store: revert data: truncated spent count")
	}
	spentCount := binary.LittleEndian.Uint32(b)
	off := 4
	r.Spent = make([]consensus.UTXO, 0, spentCount)
	for i := uint32(0); i < spentCount; i++ {
		if len(b) < off+4 {
			return r, fmt.Errorf("store: revert data: truncated entry length")
		}
		entryLen := binary.LittleEndian.Uint32(b[off:])
		off += 4
		if len(b) < off+int(entryLen) {
			return r, fmt.Errorf("store: revert data: truncated entry")
		}
		u, err := consensus.DecodeUTXO(b[off : off+int(entryLen)])
		if err != nil {
			return r, err
		}
		off += int(entryLen)
		r.Spent = append(r.Spent, u)
	}
	if len(b) < off+4 {
		return r, fmt.Errorf("store: revert data: truncated created count")
	}
	createdCount := binary.LittleEndian.Uint32(b[off:])
	off += 4
	r.Created = make([]consensus.OutPoint, 0, createdCount)
	for i := uint32(0); i < createdCount; i++ {
		if len(b) < off+36 {
			return r, fmt.Errorf("store: revert data: truncated outpoint")
		}
		var op consensus.OutPoint
		copy(op.RefTxHash[:], b[off:off+32])
		off += 32
		op.RefIndex = binary.LittleEndian.Uint32(b[off:])
		off += 4
		r.Created = append(r.Created, op)
	}
	return r, nil
}
