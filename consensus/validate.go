package consensus

import (
	"time"

	"corechain.dev/node/corecore"
	"corechain.dev/node/crypto"
)

// UTXOSource is the minimal read surface contextual validation needs from
// persistence. node/store's UTXO set satisfies it; tests can fake it.
type UTXOSource interface {
	GetUnspentOutput(ref OutPoint) (UTXO, bool)
}

// ContextFreeValidate runs the checks that require no chain context (§4.2):
// proof of work, timestamp drift, transaction shape, and merkle root.
func ContextFreeValidate(p crypto.Provider, params NetworkParams, b Block, now time.Time) *corecore.Error {
	if !PowCheck(p, b.Header) {
		return corecore.Banned(corecore.KindInvalidBlock, "header hash exceeds target", 20)
	}
	maxTs := now.Unix() + params.MaxFutureDriftSeconds
	if b.Header.Timestamp > maxTs {
		return corecore.Banned(corecore.KindInvalidBlock, "timestamp too far in the future", 20)
	}
	if len(b.Transactions) == 0 {
		return corecore.Banned(corecore.KindInvalidBlock, "block has no transactions", 20)
	}
	if !b.Transactions[0].IsCoinbase() {
		return corecore.Banned(corecore.KindInvalidBlock, "first transaction is not coinbase", 20)
	}
	for _, tx := range b.Transactions[1:] {
		if tx.IsCoinbase() {
			return corecore.Banned(corecore.KindInvalidBlock, "non-first transaction is coinbase", 20)
		}
	}
	root := MerkleRoot(p, b.Transactions)
	if root != b.Header.MerkleRoot {
		return corecore.Banned(corecore.KindInvalidBlock, "merkle root mismatch", 20)
	}
	return nil
}

// ExpectedBits computes the bits value a block at height should carry,
// given its parent and, if this height starts a new retarget window, the
// timestamps spanning that window (§4.2). firstBlockTimestamp is the
// timestamp of the first block of the window being closed; callers pass it
// only when height%RetargetWindow==0 and height>0.
func ExpectedBits(params NetworkParams, parentBits uint32, height uint64, firstBlockTimestamp, parentTimestamp int64) uint32 {
	if height == 0 || height%params.RetargetWindow != 0 {
		return parentBits
	}
	actual := parentTimestamp - firstBlockTimestamp
	return RetargetBits(parentBits, actual, params.ExpectedRetargetSeconds())
}

// ContextualValidate runs the checks that require parent and UTXO-set
// context (§4.2): retarget-rule compliance and per-transaction UTXO/sig/fee
// checks. It returns the total fees collected, for the caller to check the
// coinbase amount against (subsidy + fees).
func ContextualValidate(p crypto.Provider, params NetworkParams, b Block, parent BlockMetadata, height uint64, utxos UTXOSource, expectedBits uint32) (totalFees uint64, cerr *corecore.Error) {
	if b.Header.Bits != expectedBits {
		return 0, corecore.Banned(corecore.KindInvalidBlock, "bits does not match expected difficulty", 20)
	}

	for _, tx := range b.Transactions[1:] {
		var inSum, outSum uint64
		for _, in := range tx.Inputs {
			utxo, ok := utxos.GetUnspentOutput(OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex})
			if !ok {
				return 0, corecore.Banned(corecore.KindInvalidBlock, "input references unknown or spent output", 20)
			}
			if err := verifyUnlock(p, utxo.Output, in.UnlockingParameters, tx); err != nil {
				return 0, corecore.Banned(corecore.KindInvalidBlock, "signature verification failed", 20)
			}
			inSum += utxo.Output.Amount
		}
		for _, out := range tx.Outputs {
			outSum += out.Amount
		}
		if inSum < outSum {
			return 0, corecore.Banned(corecore.KindInvalidBlock, "transaction outputs exceed inputs", 20)
		}
		totalFees += inSum - outSum
	}

	var coinbaseOut uint64
	for _, out := range b.Transactions[0].Outputs {
		coinbaseOut += out.Amount
	}
	if coinbaseOut > BlockSubsidy(params, height)+totalFees {
		return 0, corecore.Banned(corecore.KindInvalidBlock, "coinbase pays more than subsidy plus fees", 20)
	}
	return totalFees, nil
}

// SigningDigest computes the hash a SingleSignature unlock must sign: the
// transaction's serialised bytes with every input's unlocking_parameters
// cleared, so a signature never covers its own encoding. Exported so wallet
// code outside this package can produce the same digest it verifies.
func SigningDigest(p crypto.Provider, tx Transaction) [32]byte {
	return signingDigest(p, tx)
}

func signingDigest(p crypto.Provider, tx Transaction) [32]byte {
	stripped := Transaction{Version: tx.Version, Outputs: tx.Outputs}
	stripped.Inputs = make([]TransactionInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		stripped.Inputs[i] = TransactionInput{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
	}
	return p.SHA256d(EncodeTransaction(stripped))
}

// verifyUnlock checks a SingleSignature unlock: the 33-byte compressed
// public key hashes to the locking parameters, and the DER signature
// verifies against the transaction's signing digest.
func verifyUnlock(p crypto.Provider, out TransactionOutput, unlock []byte, tx Transaction) *corecore.Error {
	if out.LockType != LockTypeSingleSignature {
		return corecore.New(corecore.KindInvalidTransaction, "unsupported lock type")
	}
	if len(unlock) < 33 {
		return corecore.New(corecore.KindInvalidTransaction, "unlocking parameters too short")
	}
	pubkey := unlock[:33]
	sig := unlock[33:]

	pubkeyHash := p.RIPEMD160(p.SHA256(pubkey))
	if len(out.LockingParameters) != 20 {
		return corecore.New(corecore.KindInvalidTransaction, "locking parameters malformed")
	}
	for i := 0; i < 20; i++ {
		if pubkeyHash[i] != out.LockingParameters[i] {
			return corecore.New(corecore.KindInvalidTransaction, "public key does not match locking hash")
		}
	}
	digest := signingDigest(p, tx)
	if !p.Verify(pubkey, digest, sig) {
		return corecore.New(corecore.KindInvalidTransaction, "signature does not verify")
	}
	return nil
}
