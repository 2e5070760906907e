package consensus

import "corechain.dev/node/crypto"

// MerkleRoot computes the root of a binary hash tree over SHA256d-hashed
// serialised transactions. Odd nodes at a level duplicate the last element
// (Bitcoin-style promotion rule, not the tagged/carry-forward variant).
func MerkleRoot(p crypto.Provider, txs []Transaction) Hash {
	if len(txs) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(txs))
	for i, tx := range txs {
		level[i] = TransactionHash(p, tx)
	}
	return merkleReduce(p, level)
}

func merkleReduce(p crypto.Provider, level []Hash) Hash {
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := range next {
			var buf [64]byte
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = Hash(p.SHA256d(buf[:]))
		}
		level = next
	}
	return level[0]
}
