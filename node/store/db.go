package store

import (
	"encoding/binary"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
)

// Buckets of the blockchain metadata KV (§4.1): "blocks" maps a block hash
// to its BlockMetadata, "transactions" maps a transaction hash to its
// TransactionMetadata, and "head" holds the chain-head pointer under key "h".
var (
	bucketBlockMeta = []byte("blocks")
	bucketTxMeta    = []byte("transactions")
	bucketHead      = []byte("head")
	headKey         = []byte("h")
)

var bucketUTXO = []byte("utxos")
var bucketAddrs = []byte("addresses")

// MetadataDB is the bbolt-backed block/transaction/chain-head metadata
// store, one of the three KV roles under the data directory (§4.1, §6).
type MetadataDB struct {
	db *bolt.DB
}

// OpenMetadataDB opens (creating if absent) the metadata KV at
// dataDir/metadata/blockchain/chain.db.
func OpenMetadataDB(dataDir string) (*MetadataDB, error) {
	path := filepath.Join(dataDir, "metadata", "blockchain")
	db, err := openBoltDB(path, "chain.db", bucketBlockMeta, bucketTxMeta, bucketHead)
	if err != nil {
		return nil, err
	}
	return &MetadataDB{db: db}, nil
}

func openBoltDB(dir, file string, buckets ...[]byte) (*bolt.DB, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, file), 0o600, nil)
	if err != nil {
		return nil, corecore.Wrap(corecore.KindStorage, "open bbolt database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, corecore.Wrap(corecore.KindStorage, "create bbolt buckets", err)
	}
	return db, nil
}

func (m *MetadataDB) Close() error {
	if err := m.db.Close(); err != nil {
		return corecore.Wrap(corecore.KindStorage, "close metadata database", err)
	}
	return nil
}

func (m *MetadataDB) PutBlockMetadata(hash consensus.Hash, md consensus.BlockMetadata) error {
	buf := encodeBlockMetadata(md)
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlockMeta).Put(hash[:], buf)
	})
}

func (m *MetadataDB) GetBlockMetadata(hash consensus.Hash) (consensus.BlockMetadata, bool, error) {
	var md consensus.BlockMetadata
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlockMeta).Get(hash[:])
		if v == nil {
			return nil
		}
		decoded, err := decodeBlockMetadata(v)
		if err != nil {
			return err
		}
		md, found = decoded, true
		return nil
	})
	if err != nil {
		return consensus.BlockMetadata{}, false, corecore.Wrap(corecore.KindCorruption, "decode block metadata", err)
	}
	return md, found, nil
}

func (m *MetadataDB) PutTransactionMetadata(hash consensus.Hash, md consensus.TransactionMetadata) error {
	buf := encodeTransactionMetadata(md)
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTxMeta).Put(hash[:], buf)
	})
}

func (m *MetadataDB) GetTransactionMetadata(hash consensus.Hash) (consensus.TransactionMetadata, bool, error) {
	var md consensus.TransactionMetadata
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTxMeta).Get(hash[:])
		if v == nil {
			return nil
		}
		decoded, err := decodeTransactionMetadata(v)
		if err != nil {
			return err
		}
		md, found = decoded, true
		return nil
	})
	if err != nil {
		return consensus.TransactionMetadata{}, false, corecore.Wrap(corecore.KindCorruption, "decode transaction metadata", err)
	}
	return md, found, nil
}

// ChainHead is the persisted pointer to the current best block.
type ChainHead struct {
	Hash           consensus.Hash
	Height         uint64
	CumulativeWork [32]byte
}

func (m *MetadataDB) SetChainHead(h ChainHead) error {
	buf := make([]byte, 0, 32+8+32)
	buf = append(buf, h.Hash[:]...)
	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], h.Height)
	buf = append(buf, heightBuf[:]...)
	buf = append(buf, h.CumulativeWork[:]...)
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHead).Put(headKey, buf)
	})
}

func (m *MetadataDB) GetChainHead() (ChainHead, bool, error) {
	var head ChainHead
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHead).Get(headKey)
		if v == nil {
			return nil
		}
		if len(v) != 72 {
			return corecore.New(corecore.KindCorruption, "chain head record has wrong size")
		}
		copy(head.Hash[:], v[:32])
		head.Height = binary.LittleEndian.Uint64(v[32:40])
		copy(head.CumulativeWork[:], v[40:72])
		found = true
		return nil
	})
	if err != nil {
		return ChainHead{}, false, err
	}
	return head, found, nil
}
