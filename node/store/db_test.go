package store

import (
	"testing"

	"corechain.dev/node/consensus"
)

func TestMetadataDBBlockMetadataRoundTrip(t *testing.T) {
	db, err := OpenMetadataDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMetadataDB: %v", err)
	}
	defer db.Close()

	hash := consensus.Hash{5, 5, 5}
	md := consensus.BlockMetadata{
		Header:         consensus.BlockHeader{Version: 1, Bits: 0x1d00ffff},
		Height:         12,
		CumulativeWork: [32]byte{1},
		TxCount:        3,
		Status:         consensus.BlockStatusValid,
		BlockPointer:   consensus.StoragePointer{Segment: 2, Offset: 100},
	}
	if err := db.PutBlockMetadata(hash, md); err != nil {
		t.Fatalf("PutBlockMetadata: %v", err)
	}
	got, ok, err := db.GetBlockMetadata(hash)
	if err != nil {
		t.Fatalf("GetBlockMetadata: %v", err)
	}
	if !ok || got != md {
		t.Fatalf("block metadata mismatch: got %+v, want %+v", got, md)
	}

	if _, ok, err := db.GetBlockMetadata(consensus.Hash{1}); err != nil || ok {
		t.Fatalf("expected lookup of unknown hash to report not found, got ok=%v err=%v", ok, err)
	}
}

func TestMetadataDBTransactionMetadataRoundTrip(t *testing.T) {
	db, err := OpenMetadataDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMetadataDB: %v", err)
	}
	defer db.Close()

	hash := consensus.Hash{7}
	md := consensus.TransactionMetadata{
		BlockPointer:     consensus.StoragePointer{Segment: 1, Offset: 40},
		TransactionIndex: 2,
		BlockHeight:      10,
		BlockHash:        consensus.Hash{8},
		Timestamp:        1700000000,
	}
	if err := db.PutTransactionMetadata(hash, md); err != nil {
		t.Fatalf("PutTransactionMetadata: %v", err)
	}
	got, ok, err := db.GetTransactionMetadata(hash)
	if err != nil {
		t.Fatalf("GetTransactionMetadata: %v", err)
	}
	if !ok || got != md {
		t.Fatalf("transaction metadata mismatch: got %+v, want %+v", got, md)
	}
}

func TestMetadataDBChainHeadRoundTrip(t *testing.T) {
	db, err := OpenMetadataDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMetadataDB: %v", err)
	}
	defer db.Close()

	head := ChainHead{Hash: consensus.Hash{3}, Height: 99, CumulativeWork: [32]byte{4}}
	if err := db.SetChainHead(head); err != nil {
		t.Fatalf("SetChainHead: %v", err)
	}
	got, ok, err := db.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: %v", err)
	}
	if !ok || got != head {
		t.Fatalf("chain head mismatch: got %+v, want %+v", got, head)
	}
}
