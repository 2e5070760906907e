package store

import (
	"testing"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
)

func openTestPersistence(t *testing.T) *PersistenceService {
	t.Helper()
	p, err := Open(t.TempDir(), crypto.Secp256k1Provider{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPersistAndApplyGenesisThenRevertEmptiesUTXOSet(t *testing.T) {
	p := openTestPersistence(t)
	cp := crypto.Secp256k1Provider{}
	genesis := consensus.MainnetGenesis(cp)
	hash := consensus.HeaderHash(cp, genesis.Header)

	if _, err := p.PersistBlock(genesis, 0, [32]byte{}, consensus.BlockStatusValid); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}
	added, removed, err := p.ApplyBlock(genesis, hash, 0)
	if err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if len(added) != 1 || len(removed) != 0 {
		t.Fatalf("expected genesis apply to create exactly one utxo, got added=%d removed=%d", len(added), len(removed))
	}
	if _, ok := p.GetUnspentOutput(added[0].OutPoint()); !ok {
		t.Fatalf("expected the coinbase output to be present in the utxo set after apply")
	}

	restored, deleted, err := p.RevertBlock(hash)
	if err != nil {
		t.Fatalf("RevertBlock: %v", err)
	}
	if len(restored) != 0 || len(deleted) != 1 {
		t.Fatalf("expected revert to delete exactly one utxo and restore none, got restored=%d deleted=%d", len(restored), len(deleted))
	}
	if _, ok := p.GetUnspentOutput(added[0].OutPoint()); ok {
		t.Fatalf("expected the utxo set to be empty after reverting genesis")
	}
}

func TestApplyThenRevertSpendRestoresOriginalUTXO(t *testing.T) {
	p := openTestPersistence(t)
	cp := crypto.Secp256k1Provider{}
	genesis := consensus.MainnetGenesis(cp)
	genesisHash := consensus.HeaderHash(cp, genesis.Header)
	p.PersistBlock(genesis, 0, [32]byte{}, consensus.BlockStatusValid)
	added, _, err := p.ApplyBlock(genesis, genesisHash, 0)
	if err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	coinbaseUTXO := added[0]

	spend := consensus.Transaction{
		Version: 1,
		Inputs:  []consensus.TransactionInput{{RefTxHash: coinbaseUTXO.RefTxHash, RefIndex: coinbaseUTXO.RefIndex}},
		Outputs: []consensus.TransactionOutput{{Amount: coinbaseUTXO.Output.Amount, LockType: consensus.LockTypeSingleSignature, LockingParameters: make([]byte, 20)}},
	}
	block := consensus.Block{
		Header:       consensus.BlockHeader{ParentHash: genesisHash, MerkleRoot: consensus.MerkleRoot(cp, []consensus.Transaction{spend})},
		Transactions: []consensus.Transaction{spend},
	}
	blockHash := consensus.HeaderHash(cp, block.Header)
	if _, err := p.PersistBlock(block, 1, [32]byte{}, consensus.BlockStatusValid); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}
	spendAdded, spendRemoved, err := p.ApplyBlock(block, blockHash, 1)
	if err != nil {
		t.Fatalf("ApplyBlock spend: %v", err)
	}
	if len(spendRemoved) != 1 || spendRemoved[0] != coinbaseUTXO.OutPoint() {
		t.Fatalf("expected the coinbase output to be spent")
	}
	if len(spendAdded) != 1 {
		t.Fatalf("expected exactly one new output from the spend")
	}

	restored, deleted, err := p.RevertBlock(blockHash)
	if err != nil {
		t.Fatalf("RevertBlock: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != spendAdded[0].OutPoint() {
		t.Fatalf("expected revert to delete the spend's new output")
	}
	if len(restored) != 1 || restored[0].OutPoint() != coinbaseUTXO.OutPoint() {
		t.Fatalf("expected revert to restore the original coinbase output")
	}
	gotRestored, ok := p.GetUnspentOutput(coinbaseUTXO.OutPoint())
	if !ok || gotRestored.Output.Amount != coinbaseUTXO.Output.Amount {
		t.Fatalf("expected the restored utxo to match the original exactly, got %+v ok=%v", gotRestored, ok)
	}
}

func TestGetBlockRoundTripsThroughSegmentStore(t *testing.T) {
	p := openTestPersistence(t)
	cp := crypto.Secp256k1Provider{}
	genesis := consensus.MainnetGenesis(cp)
	hash := consensus.HeaderHash(cp, genesis.Header)
	if _, err := p.PersistBlock(genesis, 0, [32]byte{}, consensus.BlockStatusValid); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}
	got, err := p.GetBlock(hash)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if got.Header != genesis.Header {
		t.Fatalf("retrieved block header mismatch")
	}
}

func TestChainHeadPersists(t *testing.T) {
	p := openTestPersistence(t)
	head := ChainHead{Hash: consensus.Hash{9}, Height: 3}
	if err := p.SetChainHead(head); err != nil {
		t.Fatalf("SetChainHead: %v", err)
	}
	got, ok, err := p.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: %v", err)
	}
	if !ok || got != head {
		t.Fatalf("chain head mismatch: got %+v, want %+v", got, head)
	}
}
