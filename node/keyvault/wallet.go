// Package keyvault is the node's wallet: an encrypted-at-rest keystore with
// an explicit Locked/Unlocked lifecycle (§9's "wallet" concern). Keys never
// leave this package in cleartext except through ControlService's
// getPrivateKey, which callers use at their own risk.
package keyvault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"

	"corechain.dev/node/crypto"
)

var (
	ErrLocked      = errors.New("keyvault: wallet is locked")
	ErrNoWallet    = errors.New("keyvault: no wallet at path")
	ErrBadPassword = errors.New("keyvault: wrong password")
)

type storedFile struct {
	Nonce      [24]byte `json:"nonce"`
	Ciphertext []byte   `json:"ciphertext"`
}

type plaintextKeys struct {
	Keys [][]byte `json:"keys"` // 32-byte big-endian scalars
}

// Wallet is one keystore, bound to a single file on disk.
type Wallet struct {
	path   string
	hasher crypto.Provider

	unlocked bool
	keys     []*crypto.PrivateKey
}

// New opens (without unlocking) the wallet at path. A missing file is not an
// error — IsNew will report true.
func New(path string, hasher crypto.Provider) *Wallet {
	return &Wallet{path: path, hasher: hasher}
}

// IsNew reports whether no keystore file exists yet at this wallet's path.
func (w *Wallet) IsNew() bool {
	_, err := os.Stat(w.path)
	return os.IsNotExist(err)
}

// IsUnlocked reports whether the in-memory keystore currently holds
// decrypted keys.
func (w *Wallet) IsUnlocked() bool {
	return w.unlocked
}

// Create generates a fresh keypair, encrypts the keystore under password,
// and writes it to disk.
func (w *Wallet) Create(password string) error {
	if !w.IsNew() {
		return fmt.Errorf("keyvault: wallet already exists at %s", w.path)
	}
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	w.keys = []*crypto.PrivateKey{priv}
	w.unlocked = true
	return w.persist(password)
}

// Unlock decrypts the on-disk keystore under password.
func (w *Wallet) Unlock(password string) error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoWallet
		}
		return err
	}
	var sf storedFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("keyvault: corrupt keystore: %w", err)
	}
	key := deriveKey(w.hasher, password)
	plain, ok := secretbox.Open(nil, sf.Ciphertext, &sf.Nonce, &key)
	if !ok {
		return ErrBadPassword
	}
	var pk plaintextKeys
	if err := json.Unmarshal(plain, &pk); err != nil {
		return fmt.Errorf("keyvault: corrupt plaintext keystore: %w", err)
	}
	keys := make([]*crypto.PrivateKey, 0, len(pk.Keys))
	for _, kb := range pk.Keys {
		k, err := crypto.ParsePrivateKey(kb)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}
	w.keys = keys
	w.unlocked = true
	return nil
}

// Lock discards the in-memory decrypted keys.
func (w *Wallet) Lock() {
	w.keys = nil
	w.unlocked = false
}

// Keys returns the unlocked keystore's private keys.
func (w *Wallet) Keys() ([]*crypto.PrivateKey, error) {
	if !w.unlocked {
		return nil, ErrLocked
	}
	return w.keys, nil
}

func (w *Wallet) persist(password string) error {
	pk := plaintextKeys{Keys: make([][]byte, 0, len(w.keys))}
	for _, k := range w.keys {
		pk.Keys = append(pk.Keys, k.Bytes())
	}
	plain, err := json.Marshal(pk)
	if err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	key := deriveKey(w.hasher, password)
	ciphertext := secretbox.Seal(nil, plain, &nonce, &key)
	sf := storedFile{Nonce: nonce, Ciphertext: ciphertext}
	out, err := json.Marshal(sf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(w.path, out, 0o600)
}

func deriveKey(hasher crypto.Provider, password string) [32]byte {
	return hasher.SHA256([]byte(password))
}
