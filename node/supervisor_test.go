package node

import (
	"testing"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	cp := crypto.Secp256k1Provider{}
	genesis := consensus.MainnetGenesis(cp)
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	s, err := NewSupervisor(cfg, cp, consensus.MainnetParams, genesis, 42)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSupervisorMineToOwnWalletThenSendToAddress(t *testing.T) {
	s := newTestSupervisor(t)

	if !s.IsWalletNew() {
		t.Fatalf("expected a freshly opened data dir to report a new wallet")
	}
	if err := s.CreateKeys("hunter2"); err != nil {
		t.Fatalf("CreateKeys: %v", err)
	}
	if !s.IsWalletUnlocked() {
		t.Fatalf("expected the wallet to be unlocked right after creation")
	}

	header, err := s.GetWork()
	if err != nil {
		t.Fatalf("GetWork: %v", err)
	}
	candidate, err := s.buildCandidate()
	if err != nil {
		t.Fatalf("buildCandidate: %v", err)
	}
	if candidate.Header.MerkleRoot != header.MerkleRoot {
		t.Fatalf("expected GetWork's header to describe the same candidate buildCandidate assembles")
	}
	if err := s.SubmitBlock(candidate); err != nil {
		t.Fatalf("SubmitBlock: %v", err)
	}

	height, err := s.GetBlockchainHeight()
	if err != nil || height != 1 {
		t.Fatalf("expected chain height 1 after mining one block, got %d err=%v", height, err)
	}

	balance, err := s.GetBalance()
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	subsidy := consensus.BlockSubsidy(consensus.MainnetParams, 1)
	if balance != subsidy {
		t.Fatalf("expected wallet balance to equal the coinbase subsidy %d, got %d", subsidy, balance)
	}

	other := newTestSupervisor(t)
	if err := other.CreateKeys("hunter3"); err != nil {
		t.Fatalf("CreateKeys (other): %v", err)
	}
	destAddr, err := other.GetAddress()
	if err != nil {
		t.Fatalf("GetAddress: %v", err)
	}

	sendAmount := subsidy / 2
	if _, err := s.SendToAddress(destAddr, sendAmount); err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	if count, err := s.GetTransactionPoolCount(); err != nil || count != 1 {
		t.Fatalf("expected exactly one pending transaction in the sender's pool, got %d err=%v", count, err)
	}
}

func TestSupervisorRejectsSendToAddressWhenWalletLocked(t *testing.T) {
	s := newTestSupervisor(t)
	if _, err := s.SendToAddress("anything", 1); err == nil {
		t.Fatalf("expected SendToAddress against a never-created wallet to fail")
	}
}
