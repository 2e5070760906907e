package consensus

import "corechain.dev/node/crypto"

// genesisTimestamp is fixed so every node derives the same genesis hash.
const genesisTimestamp = 1577836800 // 2020-01-01T00:00:00Z

// EncodeCoinbaseHeight returns the unlocking payload a coinbase input carries
// for a block at the given height (§3). It has no spending purpose; it only
// ties each coinbase to the height it was mined at.
func EncodeCoinbaseHeight(height uint64) []byte {
	return EncodeCompactSize(nil, height)
}

// MainnetGenesis constructs the network's first block: a single coinbase
// paying the initial subsidy to an unspendable all-zero lock hash. It is
// never run through ContextFreeValidate/ContextualValidate — the chain
// engine installs it directly when no chain head exists yet (§4.2).
func MainnetGenesis(p crypto.Provider) Block {
	coinbase := Transaction{
		Version: 1,
		Inputs: []TransactionInput{{
			RefIndex:            CoinbaseRefIndex,
			UnlockingParameters: EncodeCoinbaseHeight(0),
		}},
		Outputs: []TransactionOutput{{
			Amount:            MainnetParams.InitialSubsidy,
			LockType:          LockTypeSingleSignature,
			LockingParameters: make([]byte, 20),
		}},
	}
	txs := []Transaction{coinbase}
	header := BlockHeader{
		Version:    1,
		ParentHash: Hash{},
		MerkleRoot: MerkleRoot(p, txs),
		Timestamp:  genesisTimestamp,
		Bits:       MainnetParams.PowLimitBits,
		Nonce:      0,
	}
	return Block{Header: header, Transactions: txs}
}
