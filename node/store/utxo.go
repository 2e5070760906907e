package store

import (
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
)

// UTXOSet is the second KV role (§4.1): a persisted bbolt store of unspent
// outputs, mirrored into an in-memory map for O(1) lookup. The UTXO set
// must fit in memory; every mutation goes through both the map and the
// persistent KV (write-through).
type UTXOSet struct {
	db *bolt.DB

	mu  sync.RWMutex
	set map[consensus.OutPoint]consensus.UTXO
}

// OpenUTXOSet opens (creating if absent) the UTXO KV at
// dataDir/metadata/state/utxo.db and loads its contents into memory.
func OpenUTXOSet(dataDir string) (*UTXOSet, error) {
	path := filepath.Join(dataDir, "metadata", "state")
	db, err := openBoltDB(path, "utxo.db", bucketUTXO)
	if err != nil {
		return nil, err
	}
	u := &UTXOSet{db: db, set: make(map[consensus.OutPoint]consensus.UTXO)}
	if err := u.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return u, nil
}

func (u *UTXOSet) loadAll() error {
	return u.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXO).ForEach(func(k, v []byte) error {
			utxo, err := consensus.DecodeUTXO(v)
			if err != nil {
				return corecore.Wrap(corecore.KindCorruption, "decode utxo record", err)
			}
			u.set[utxo.OutPoint()] = utxo
			return nil
		})
	})
}

func utxoKey(ref consensus.OutPoint) []byte {
	key := make([]byte, 36)
	copy(key[:32], ref.RefTxHash[:])
	key[32] = byte(ref.RefIndex >> 24)
	key[33] = byte(ref.RefIndex >> 16)
	key[34] = byte(ref.RefIndex >> 8)
	key[35] = byte(ref.RefIndex)
	return key
}

// GetUnspentOutput implements consensus.UTXOSource.
func (u *UTXOSet) GetUnspentOutput(ref consensus.OutPoint) (consensus.UTXO, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.set[ref]
	return v, ok
}

// AddUnspentOutput inserts a new UTXO, write-through to disk then memory.
func (u *UTXOSet) AddUnspentOutput(utxo consensus.UTXO) error {
	buf := consensus.EncodeUTXO(utxo)
	if err := u.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXO).Put(utxoKey(utxo.OutPoint()), buf)
	}); err != nil {
		return corecore.Wrap(corecore.KindStorage, "persist utxo", err)
	}
	u.mu.Lock()
	u.set[utxo.OutPoint()] = utxo
	u.mu.Unlock()
	return nil
}

// RemoveUnspentOutput deletes a UTXO, write-through to disk then memory.
func (u *UTXOSet) RemoveUnspentOutput(ref consensus.OutPoint) error {
	if err := u.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXO).Delete(utxoKey(ref))
	}); err != nil {
		return corecore.Wrap(corecore.KindStorage, "delete utxo", err)
	}
	u.mu.Lock()
	delete(u.set, ref)
	u.mu.Unlock()
	return nil
}

// UnspentOutputsForAddress linearly scans the in-memory map for outputs
// locked to pubkeyHash (§4.1: "linear scan of the UTXO map").
func (u *UTXOSet) UnspentOutputsForAddress(pubkeyHash []byte) []consensus.UTXO {
	u.mu.RLock()
	defer u.mu.RUnlock()
	var out []consensus.UTXO
	for _, utxo := range u.set {
		if bytesEqual(utxo.Output.LockingParameters, pubkeyHash) {
			out = append(out, utxo)
		}
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (u *UTXOSet) Close() error {
	if err := u.db.Close(); err != nil {
		return corecore.Wrap(corecore.KindStorage, "close utxo database", err)
	}
	return nil
}
