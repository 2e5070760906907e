package keyvault

import (
	"path/filepath"
	"testing"

	"corechain.dev/node/crypto"
)

func TestWalletCreateUnlockLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	w := New(path, crypto.Secp256k1Provider{})
	if !w.IsNew() {
		t.Fatalf("expected a wallet at a fresh path to report IsNew")
	}
	if err := w.Create("hunter2"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.IsNew() {
		t.Fatalf("expected the wallet to no longer be new once created")
	}
	if !w.IsUnlocked() {
		t.Fatalf("expected a freshly created wallet to be unlocked")
	}
	keys, err := w.Keys()
	if err != nil || len(keys) != 1 {
		t.Fatalf("expected exactly one key after creation, got %d keys err=%v", len(keys), err)
	}

	w.Lock()
	if w.IsUnlocked() {
		t.Fatalf("expected Lock to clear the unlocked state")
	}
	if _, err := w.Keys(); err != ErrLocked {
		t.Fatalf("expected Keys to report ErrLocked while locked, got %v", err)
	}

	reopened := New(path, crypto.Secp256k1Provider{})
	if err := reopened.Unlock("hunter2"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	reopenedKeys, err := reopened.Keys()
	if err != nil || len(reopenedKeys) != 1 {
		t.Fatalf("expected the reopened wallet to recover exactly one key, got %d err=%v", len(reopenedKeys), err)
	}
	if string(reopenedKeys[0].PublicKeyCompressed()) != string(keys[0].PublicKeyCompressed()) {
		t.Fatalf("expected the recovered key to match the originally created key")
	}
}

func TestWalletUnlockRejectsWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	w := New(path, crypto.Secp256k1Provider{})
	if err := w.Create("correct-password"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened := New(path, crypto.Secp256k1Provider{})
	if err := reopened.Unlock("wrong-password"); err != ErrBadPassword {
		t.Fatalf("expected ErrBadPassword for a wrong password, got %v", err)
	}
}

func TestWalletUnlockMissingFileReportsErrNoWallet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.dat")
	w := New(path, crypto.Secp256k1Provider{})
	if err := w.Unlock("anything"); err != ErrNoWallet {
		t.Fatalf("expected ErrNoWallet for a missing keystore file, got %v", err)
	}
}

func TestWalletCreateRejectsWhenAlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.dat")
	w := New(path, crypto.Secp256k1Provider{})
	if err := w.Create("first"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Create("second"); err == nil {
		t.Fatalf("expected a second Create against an existing keystore to fail")
	}
}
