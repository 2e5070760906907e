package node

import (
	"fmt"
	"path/filepath"
	"sync"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
	"corechain.dev/node/node/chain"
	"corechain.dev/node/node/ibd"
	"corechain.dev/node/node/keyvault"
	"corechain.dev/node/node/mempool"
	"corechain.dev/node/node/p2p"
	"corechain.dev/node/node/store"
)

// Supervisor is the single struct owning every mutable subsystem of a
// running node: persistence, the chain engine, the mempool, the peer
// protocol handler, the IBD orchestrator, and the wallet. Block application,
// persistence and the mempool's reaction to it run under the chain engine's
// lock. mu guards only SubmitTransaction (and SendToAddress through it); it
// is not the engine's lock, so mempool admission is not ordered against
// block application by it (§5, §9).
type Supervisor struct {
	cfg    Config
	crypto crypto.Provider
	params consensus.NetworkParams

	persist *store.PersistenceService
	engine  *chain.Engine
	pool    *mempool.Pool
	handler *p2p.Handler
	ibd     *ibd.Manager
	wallet  *keyvault.Wallet

	mu sync.Mutex
}

// NewSupervisor opens persistence, bootstraps the chain engine at genesis
// if needed, and wires the mempool and peer-protocol handler to it.
func NewSupervisor(cfg Config, cp crypto.Provider, params consensus.NetworkParams, genesis consensus.Block, localNonce uint64) (*Supervisor, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	persist, err := store.Open(cfg.DataDir, cp)
	if err != nil {
		return nil, err
	}
	engine, err := chain.NewEngine(persist, params, cp, genesis)
	if err != nil {
		return nil, err
	}
	pool := mempool.New(persist, cp)

	walletPath := cfg.WalletPath
	if walletPath == "" {
		walletPath = filepath.Join(cfg.DataDir, "wallet.dat")
	}
	wallet := keyvault.New(walletPath, cp)

	handler := p2p.NewHandler(engine, pool, persist.Addresses(), uint32(params.Magic), localNonce)
	downloader := ibd.NewManager(engine)

	s := &Supervisor{
		cfg:     cfg,
		crypto:  cp,
		params:  params,
		persist: persist,
		engine:  engine,
		pool:    pool,
		handler: handler,
		ibd:     downloader,
		wallet:  wallet,
	}

	engine.RegisterUTXOListener(func(added []consensus.UTXO, removed []consensus.OutPoint) {
		pool.OnUTXOUpdate(added, removed)
	})
	engine.RegisterReorgListener(func(reverted []consensus.Transaction, confirmed []consensus.Hash) {
		log.Infof("reorg: %d transactions reverted, %d confirmed", len(reverted), len(confirmed))
		pool.OnReorg(reverted, confirmed)
	})
	engine.RegisterBlockListener(func(b consensus.Block, hash consensus.Hash, height uint64, added bool) {
		log.Debugf("block %s at height %d added=%v", hash, height, added)
	})

	log.Infof("supervisor ready: datadir=%s", cfg.DataDir)
	return s, nil
}

// Close releases every subsystem holding open file handles.
func (s *Supervisor) Close() error {
	return s.persist.Close()
}

// Handler exposes the peer-protocol dispatcher for a listener/dialer loop
// to hand newly accepted connections to.
func (s *Supervisor) Handler() *p2p.Handler { return s.handler }

// IBD exposes the download orchestrator so a peer-connection loop can
// register each Ready peer with it.
func (s *Supervisor) IBD() *ibd.Manager { return s.ibd }

// SubmitTransaction runs mempool admission under the supervisor's lock,
// which orders it against other SubmitTransaction calls only; a concurrent
// block application takes the chain engine's lock instead.
func (s *Supervisor) SubmitTransaction(tx consensus.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.AddTransaction(tx)
}

// SendToAddress builds, signs, and submits a SingleSignature-spend
// transaction paying amount to a Base58Check address, with change returned
// to the wallet's own address, per §6's sendToAddress control operation.
func (s *Supervisor) SendToAddress(address string, amount uint64) (consensus.Hash, error) {
	keys, err := s.wallet.Keys()
	if err != nil {
		return consensus.Hash{}, err
	}
	if len(keys) == 0 {
		return consensus.Hash{}, fmt.Errorf("node: wallet has no keys")
	}
	priv := keys[0]
	selfHash, pub, err := s.walletPubkeyHash()
	if err != nil {
		return consensus.Hash{}, err
	}

	destHash, err := consensus.DecodeAddress(s.crypto, address)
	if err != nil {
		return consensus.Hash{}, fmt.Errorf("node: invalid destination address: %w", err)
	}

	fee := uint64(s.cfg.PayTxFee * 1e8)
	utxos := s.persist.GetUnspentOutputsForAddress(selfHash[:])

	var chosen []consensus.UTXO
	var total uint64
	need := amount + fee
	for _, u := range utxos {
		chosen = append(chosen, u)
		total += u.Output.Amount
		if total >= need {
			break
		}
	}
	if total < need {
		return consensus.Hash{}, fmt.Errorf("node: insufficient funds: have %d, need %d", total, need)
	}

	tx := consensus.Transaction{Version: 1}
	for _, u := range chosen {
		tx.Inputs = append(tx.Inputs, consensus.TransactionInput{RefTxHash: u.RefTxHash, RefIndex: u.RefIndex})
	}
	tx.Outputs = append(tx.Outputs, consensus.TransactionOutput{
		Amount:            amount,
		LockType:          consensus.LockTypeSingleSignature,
		LockingParameters: append([]byte(nil), destHash[:]...),
	})
	if change := total - need; change > 0 {
		tx.Outputs = append(tx.Outputs, consensus.TransactionOutput{
			Amount:            change,
			LockType:          consensus.LockTypeSingleSignature,
			LockingParameters: append([]byte(nil), selfHash[:]...),
		})
	}

	digest := consensus.SigningDigest(s.crypto, tx)
	sig, err := s.crypto.Sign(priv, digest)
	if err != nil {
		return consensus.Hash{}, err
	}
	unlock := append(append([]byte(nil), pub...), sig...)
	for i := range tx.Inputs {
		tx.Inputs[i].UnlockingParameters = unlock
	}

	if _, err := s.SubmitTransaction(tx); err != nil {
		return consensus.Hash{}, err
	}
	return consensus.TransactionHash(s.crypto, tx), nil
}
