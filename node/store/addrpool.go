package store

import (
	"math/rand"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
)

const (
	addrActiveWindow = 3 * time.Hour
	addrStaleAfter   = 10 * 24 * time.Hour
	addrBanDuration  = 24 * time.Hour
)

// AddressPool is the third KV role (§4.1, §4.5): a persisted map of known
// peer addresses, mutated by the peer manager under its own lock (§5).
type AddressPool struct {
	db *bolt.DB
}

// OpenAddressPool opens (creating if absent) the address KV at
// dataDir/peers/addresses.db.
func OpenAddressPool(dataDir string) (*AddressPool, error) {
	path := filepath.Join(dataDir, "peers")
	db, err := openBoltDB(path, "addresses.db", bucketAddrs)
	if err != nil {
		return nil, err
	}
	return &AddressPool{db: db}, nil
}

func addrKey(a consensus.NetworkAddress) []byte {
	return consensus.EncodeNetworkAddress(a)
}

func encodeAddrMetadata(md consensus.NetworkAddressMetadata) []byte {
	buf := make([]byte, 0, 8+18+1+1+8)
	var lastSeen [8]byte
	putInt64LE(lastSeen[:], md.LastSeen)
	buf = append(buf, lastSeen[:]...)
	buf = append(buf, consensus.EncodeNetworkAddress(md.Address)...)
	buf = append(buf, md.BanScore)
	if md.Banned {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var banTime [8]byte
	putInt64LE(banTime[:], md.BanTime)
	buf = append(buf, banTime[:]...)
	return buf
}

func decodeAddrMetadata(b []byte) (consensus.NetworkAddressMetadata, error) {
	var md consensus.NetworkAddressMetadata
	if len(b) != 36 {
		return md, corecore.New(corecore.KindCorruption, "address metadata has wrong size")
	}
	md.LastSeen = getInt64LE(b[0:8])
	addr, err := consensus.DecodeNetworkAddress(b[8:26])
	if err != nil {
		return md, err
	}
	md.Address = addr
	md.BanScore = b[26]
	md.Banned = b[27] == 1
	// banDate is read directly into the struct's BanTime field by position;
	// the reviewed source's self-referential read (§9 open question) has no
	// analogue here.
	md.BanTime = getInt64LE(b[28:36])
	return md, nil
}

func putInt64LE(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt64LE(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u)
}

// Put inserts or updates an address record.
func (p *AddressPool) Put(md consensus.NetworkAddressMetadata) error {
	buf := encodeAddrMetadata(md)
	if err := p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAddrs).Put(addrKey(md.Address), buf)
	}); err != nil {
		return corecore.Wrap(corecore.KindStorage, "persist address metadata", err)
	}
	return nil
}

// GetRandom returns up to amount randomly sampled non-banned addresses seen
// within the last 3 hours (§4.5).
func (p *AddressPool) GetRandom(amount int, now time.Time) ([]consensus.NetworkAddressMetadata, error) {
	var candidates []consensus.NetworkAddressMetadata
	cutoff := now.Add(-addrActiveWindow).Unix()
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAddrs).ForEach(func(k, v []byte) error {
			md, err := decodeAddrMetadata(v)
			if err != nil {
				return err
			}
			if md.Banned || md.LastSeen < cutoff {
				return nil
			}
			candidates = append(candidates, md)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > amount {
		candidates = candidates[:amount]
	}
	return candidates, nil
}

// Cleanup drops entries not seen in the last 10 days (§4.5).
func (p *AddressPool) Cleanup(now time.Time) error {
	cutoff := now.Add(-addrStaleAfter).Unix()
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAddrs)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			md, err := decodeAddrMetadata(v)
			if err != nil {
				return err
			}
			if md.LastSeen < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckReleaseBan unbans entries whose 24h ban has elapsed (§4.5).
func (p *AddressPool) CheckReleaseBan(now time.Time) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAddrs)
		type update struct {
			key []byte
			md  consensus.NetworkAddressMetadata
		}
		var toUnban []update
		err := b.ForEach(func(k, v []byte) error {
			md, err := decodeAddrMetadata(v)
			if err != nil {
				return err
			}
			if md.Banned && now.Sub(time.Unix(md.BanTime, 0)) >= addrBanDuration {
				md.Banned = false
				md.BanScore = 0
				toUnban = append(toUnban, update{key: append([]byte(nil), k...), md: md})
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, u := range toUnban {
			if err := b.Put(u.key, encodeAddrMetadata(u.md)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *AddressPool) Close() error {
	if err := p.db.Close(); err != nil {
		return corecore.Wrap(corecore.KindStorage, "close address pool database", err)
	}
	return nil
}
