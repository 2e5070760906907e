// Package consensus holds the data model, wire codecs, and validation rules
// shared by every other package: block and transaction shapes, the proof of
// work and difficulty rules, the merkle algorithm, and the subsidy schedule.
// Nothing in this package touches storage, the network, or the mempool.
package consensus

import "fmt"

// Hash is a 32-byte digest, compared by value. Integer reinterpretation (for
// proof-of-work comparisons) treats it as unsigned big-endian.
type Hash [32]byte

func (h Hash) String() string {
	return fmt.Sprintf("%x", [32]byte(h))
}

// IsZero reports whether h is the all-zero hash, used as the coinbase
// ref_tx_hash sentinel.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// CoinbaseRefIndex is the sentinel ref_index a coinbase input carries in
// place of a real output index.
const CoinbaseRefIndex uint32 = 0xFFFFFFFF

// LockType enumerates the fixed set of output lock types. The system has no
// general script VM (Non-goal): SingleSignature is the only lock type.
type LockType uint8

const (
	LockTypeSingleSignature LockType = 0
)

// BlockHeader is the fixed-size, bit-exact 80-byte header.
type BlockHeader struct {
	Version    uint32
	ParentHash Hash
	MerkleRoot Hash
	Timestamp  int64 // UTC seconds
	Bits       uint32
	Nonce      uint32
}

// TransactionInput references a prior output and carries the parameters that
// unlock it.
type TransactionInput struct {
	RefTxHash           Hash
	RefIndex            uint32
	UnlockingParameters []byte
}

// IsCoinbaseInput reports whether in is the sentinel coinbase input.
func (in TransactionInput) IsCoinbaseInput() bool {
	return in.RefTxHash.IsZero() && in.RefIndex == CoinbaseRefIndex
}

// TransactionOutput carries an amount locked under a fixed lock type.
type TransactionOutput struct {
	Amount            uint64
	LockType          LockType
	LockingParameters []byte
}

// Transaction is an ordered list of inputs and outputs under a version tag.
type Transaction struct {
	Version uint32
	Inputs  []TransactionInput
	Outputs []TransactionOutput
}

// IsCoinbase reports whether tx has the single-input coinbase shape. It does
// not check position within a block; callers enforce that separately.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].IsCoinbaseInput()
}

// Block is a header plus its ordered transaction list.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// UTXO is an unspent transaction output together with the provenance needed
// to restore it verbatim on revert (§9 open question: revert data must carry
// version, block_height, and is_coinbase, not just amount/locking params).
type UTXO struct {
	RefTxHash   Hash
	RefIndex    uint32
	Version     uint32
	BlockHeight uint64
	IsCoinbase  bool
	Output      TransactionOutput
}

// OutPoint identifies a UTXO's key without its value.
type OutPoint struct {
	RefTxHash Hash
	RefIndex  uint32
}

func (u UTXO) OutPoint() OutPoint {
	return OutPoint{RefTxHash: u.RefTxHash, RefIndex: u.RefIndex}
}

// BlockStatus records where a known block sits relative to the best chain.
type BlockStatus uint8

const (
	BlockStatusUnknown BlockStatus = iota
	BlockStatusValid
	BlockStatusInvalid
	BlockStatusOrphan
)

// StoragePointer locates a record inside a segmented append-only store.
type StoragePointer struct {
	Segment uint32
	Offset  uint64
}

// BlockMetadata is everything the chain engine needs about a known block
// besides its transaction bytes.
type BlockMetadata struct {
	Header          BlockHeader
	Height          uint64
	CumulativeWork  [32]byte // big-endian 256-bit integer
	TxCount         uint32
	Status          BlockStatus
	BlockPointer    StoragePointer
	RevertPointer   StoragePointer
}

// TransactionMetadata locates a confirmed transaction within a block.
type TransactionMetadata struct {
	BlockPointer       StoragePointer
	TransactionIndex   uint32
	BlockHeight        uint64
	BlockHash          Hash
	Timestamp          int64
}

// NetworkAddress is an IPv6 (or IPv4-in-IPv6-mapped) address and port.
type NetworkAddress struct {
	IP   [16]byte
	Port uint16
}

// NetworkAddressMetadata is the persisted record for a known peer address.
type NetworkAddressMetadata struct {
	LastSeen  int64
	Address   NetworkAddress
	BanScore  uint8
	Banned    bool
	BanTime   int64
}
