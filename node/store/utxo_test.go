package store

import (
	"testing"

	"corechain.dev/node/consensus"
)

func TestUTXOSetAddGetRemove(t *testing.T) {
	dir := t.TempDir()
	set, err := OpenUTXOSet(dir)
	if err != nil {
		t.Fatalf("OpenUTXOSet: %v", err)
	}
	defer set.Close()

	u := consensus.UTXO{
		RefTxHash: consensus.Hash{1},
		RefIndex:  0,
		Output:    consensus.TransactionOutput{Amount: 50, LockType: consensus.LockTypeSingleSignature, LockingParameters: make([]byte, 20)},
	}
	if err := set.AddUnspentOutput(u); err != nil {
		t.Fatalf("AddUnspentOutput: %v", err)
	}
	got, ok := set.GetUnspentOutput(u.OutPoint())
	if !ok || got.Output.Amount != 50 {
		t.Fatalf("expected to find the added utxo with amount 50, got %+v ok=%v", got, ok)
	}
	if err := set.RemoveUnspentOutput(u.OutPoint()); err != nil {
		t.Fatalf("RemoveUnspentOutput: %v", err)
	}
	if _, ok := set.GetUnspentOutput(u.OutPoint()); ok {
		t.Fatalf("expected utxo to be gone after removal")
	}
}

func TestUTXOSetPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	set, err := OpenUTXOSet(dir)
	if err != nil {
		t.Fatalf("OpenUTXOSet: %v", err)
	}
	u := consensus.UTXO{
		RefTxHash: consensus.Hash{2},
		Output:    consensus.TransactionOutput{Amount: 7, LockType: consensus.LockTypeSingleSignature, LockingParameters: make([]byte, 20)},
	}
	if err := set.AddUnspentOutput(u); err != nil {
		t.Fatalf("AddUnspentOutput: %v", err)
	}
	if err := set.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenUTXOSet(dir)
	if err != nil {
		t.Fatalf("reopen OpenUTXOSet: %v", err)
	}
	defer reopened.Close()
	got, ok := reopened.GetUnspentOutput(u.OutPoint())
	if !ok || got.Output.Amount != 7 {
		t.Fatalf("expected utxo to survive reopen, got %+v ok=%v", got, ok)
	}
}

func TestUnspentOutputsForAddress(t *testing.T) {
	dir := t.TempDir()
	set, err := OpenUTXOSet(dir)
	if err != nil {
		t.Fatalf("OpenUTXOSet: %v", err)
	}
	defer set.Close()

	hashA := make([]byte, 20)
	hashA[0] = 0xaa
	hashB := make([]byte, 20)
	hashB[0] = 0xbb

	mine := consensus.UTXO{RefTxHash: consensus.Hash{1}, Output: consensus.TransactionOutput{Amount: 10, LockingParameters: hashA}}
	theirs := consensus.UTXO{RefTxHash: consensus.Hash{2}, Output: consensus.TransactionOutput{Amount: 20, LockingParameters: hashB}}
	set.AddUnspentOutput(mine)
	set.AddUnspentOutput(theirs)

	got := set.UnspentOutputsForAddress(hashA)
	if len(got) != 1 || got[0].Output.Amount != 10 {
		t.Fatalf("expected exactly one utxo locked to hashA, got %+v", got)
	}
}
