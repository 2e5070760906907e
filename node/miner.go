package node

import (
	"fmt"
	"time"

	"corechain.dev/node/consensus"
)

// DefaultMaxTxPerBlock bounds how many mempool entries a candidate block
// template includes, mirroring the teacher's own miner default.
const DefaultMaxTxPerBlock = 1024

// GetWork returns a candidate block header/body for external proof-of-work
// search, the re-architected replacement for the teacher's in-process
// mining loop (§9: "mining should be reachable through the same
// submitBlock path as externally-sourced blocks"). The caller searches
// Nonce values and, on success, calls SubmitBlock with the completed block.
func (s *Supervisor) GetWork() (consensus.BlockHeader, error) {
	b, err := s.buildCandidate()
	if err != nil {
		return consensus.BlockHeader{}, err
	}
	return b.Header, nil
}

// SubmitBlock feeds an externally mined (or GetWork-derived, now
// nonce-complete) block through the same AddBlock path as a peer-delivered
// block (§9).
func (s *Supervisor) SubmitBlock(b consensus.Block) error {
	return s.engine.AddBlock(b)
}

func (s *Supervisor) buildCandidate() (consensus.Block, error) {
	minerHash, _, err := s.walletPubkeyHash()
	if err != nil {
		return consensus.Block{}, fmt.Errorf("node: cannot mine without an unlocked wallet address: %w", err)
	}

	head, ok, err := s.engine.ChainHead()
	if err != nil {
		return consensus.Block{}, err
	}
	var parentHash consensus.Hash
	var height uint64
	bits := s.params.PowLimitBits
	if ok {
		parentHash = head.Hash
		meta, found, err := s.persist.GetBlockMetadata(head.Hash)
		if err != nil {
			return consensus.Block{}, err
		}
		if found {
			height = meta.Height + 1
			bits = meta.Header.Bits
		}
	}

	maxTx := DefaultMaxTxPerBlock
	picked := s.pool.PickTransactions(maxTx * 256) // size budget proxy; real cap enforced by count below
	if len(picked) > maxTx-1 {
		picked = picked[:maxTx-1]
	}

	var fees uint64
	for _, tx := range picked {
		var inSum, outSum uint64
		for _, in := range tx.Inputs {
			ref := consensus.OutPoint{RefTxHash: in.RefTxHash, RefIndex: in.RefIndex}
			if u, ok := s.persist.GetUnspentOutput(ref); ok {
				inSum += u.Output.Amount
			}
		}
		for _, out := range tx.Outputs {
			outSum += out.Amount
		}
		if inSum > outSum {
			fees += inSum - outSum
		}
	}

	subsidy := consensus.BlockSubsidy(s.params, height)
	coinbase := consensus.Transaction{
		Version: 1,
		Inputs: []consensus.TransactionInput{{
			RefIndex:            consensus.CoinbaseRefIndex,
			UnlockingParameters: consensus.EncodeCoinbaseHeight(height),
		}},
		Outputs: []consensus.TransactionOutput{{
			Amount:            subsidy + fees,
			LockType:          consensus.LockTypeSingleSignature,
			LockingParameters: append([]byte(nil), minerHash[:]...),
		}},
	}

	txs := append([]consensus.Transaction{coinbase}, picked...)
	merkleRoot := consensus.MerkleRoot(s.crypto, txs)

	header := consensus.BlockHeader{
		Version:    1,
		ParentHash: parentHash,
		MerkleRoot: merkleRoot,
		Timestamp:  time.Now().Unix(),
		Bits:       bits,
		Nonce:      0,
	}
	return consensus.Block{Header: header, Transactions: txs}, nil
}
