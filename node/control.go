package node

import (
	"encoding/hex"
	"fmt"

	"corechain.dev/node/consensus"
)

// ControlService is the RPC surface a wallet/operator client drives the node
// through (§6). Supervisor is the only implementation; the interface exists
// so an RPC transport layer can depend on behaviour, not wiring.
type ControlService interface {
	IsWalletNew() bool
	CreateKeys(password string) error
	UnlockWallet(password string) error
	IsWalletUnlocked() bool

	GetBalance() (uint64, error)
	SendToAddress(address string, amount uint64) (consensus.Hash, error)
	GetConfirmedTransactions() ([]consensus.UTXO, error)
	GetPendingTransactions() ([]consensus.Transaction, error)

	GetAddress() (string, error)
	GetPublicKey() (string, error)
	GetPrivateKey() (string, error)

	GetWork() (consensus.BlockHeader, error)
	SubmitBlock(b consensus.Block) error

	GetBlockchainHeight() (uint64, error)
	GetChainHeadHash() (string, error)
	GetTransactionPoolCount() (int, error)
}

var _ ControlService = (*Supervisor)(nil)

func (s *Supervisor) IsWalletNew() bool      { return s.wallet.IsNew() }
func (s *Supervisor) IsWalletUnlocked() bool { return s.wallet.IsUnlocked() }

func (s *Supervisor) CreateKeys(password string) error {
	return s.wallet.Create(password)
}

func (s *Supervisor) UnlockWallet(password string) error {
	return s.wallet.Unlock(password)
}

func (s *Supervisor) walletPubkeyHash() ([20]byte, []byte, error) {
	keys, err := s.wallet.Keys()
	if err != nil {
		return [20]byte{}, nil, err
	}
	if len(keys) == 0 {
		return [20]byte{}, nil, fmt.Errorf("node: wallet has no keys")
	}
	pub := keys[0].PublicKeyCompressed()
	return s.crypto.RIPEMD160(s.crypto.SHA256(pub)), pub, nil
}

func (s *Supervisor) GetAddress() (string, error) {
	hash, _, err := s.walletPubkeyHash()
	if err != nil {
		return "", err
	}
	return consensus.EncodeAddress(s.crypto, hash), nil
}

func (s *Supervisor) GetPublicKey() (string, error) {
	_, pub, err := s.walletPubkeyHash()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pub), nil
}

func (s *Supervisor) GetPrivateKey() (string, error) {
	keys, err := s.wallet.Keys()
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("node: wallet has no keys")
	}
	return hex.EncodeToString(keys[0].Bytes()), nil
}

func (s *Supervisor) GetBalance() (uint64, error) {
	hash, _, err := s.walletPubkeyHash()
	if err != nil {
		return 0, err
	}
	utxos := s.persist.GetUnspentOutputsForAddress(hash[:])
	var total uint64
	for _, u := range utxos {
		total += u.Output.Amount
	}
	return total, nil
}

// GetConfirmedTransactions returns the wallet's currently unspent outputs,
// the node's available view of confirmed wallet-owned balance movements.
func (s *Supervisor) GetConfirmedTransactions() ([]consensus.UTXO, error) {
	hash, _, err := s.walletPubkeyHash()
	if err != nil {
		return nil, err
	}
	return s.persist.GetUnspentOutputsForAddress(hash[:]), nil
}

// GetPendingTransactions returns mempool entries with an output paying the
// wallet's address; entries that only spend wallet outputs are not included.
func (s *Supervisor) GetPendingTransactions() ([]consensus.Transaction, error) {
	hash, _, err := s.walletPubkeyHash()
	if err != nil {
		return nil, err
	}
	var out []consensus.Transaction
	for _, tx := range s.pool.AllTransactions() {
		for _, o := range tx.Outputs {
			if len(o.LockingParameters) == 20 && string(o.LockingParameters) == string(hash[:]) {
				out = append(out, tx)
				break
			}
		}
	}
	return out, nil
}

func (s *Supervisor) GetBlockchainHeight() (uint64, error) {
	head, ok, err := s.engine.ChainHead()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return head.Height, nil
}

func (s *Supervisor) GetChainHeadHash() (string, error) {
	head, ok, err := s.engine.ChainHead()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return head.Hash.String(), nil
}

func (s *Supervisor) GetTransactionPoolCount() (int, error) {
	return s.pool.Count(), nil
}
