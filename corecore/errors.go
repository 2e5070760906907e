// Package corecore defines the error-kind vocabulary shared by every
// subsystem of the node (chain engine, mempool, persistence, peer protocol).
//
// Validation failures are modelled as values of a single distinct type rather
// than as exceptions unwinding across layers: a Kind is always present so a
// caller can switch on it without string matching, the way consensus.TxError
// carries a stable Code in the teacher's sibling packages.
package corecore

import "fmt"

// Kind enumerates the error kinds from the node's error handling design.
// Kind values are distinct and never subclassed; callers branch on Kind, not
// on error text.
type Kind string

const (
	KindInvalidBlock       Kind = "InvalidBlock"
	KindInvalidTransaction Kind = "InvalidTransaction"
	KindOrphanBlock        Kind = "OrphanBlock"
	KindOrphanTransaction  Kind = "OrphanTransaction"
	KindDuplicateItem      Kind = "DuplicateItem"
	KindStorage            Kind = "Storage"
	KindCorruption         Kind = "Corruption"
	KindProtocolViolation  Kind = "ProtocolViolation"
	KindPeerTimeout        Kind = "PeerTimeout"
	KindWalletLocked       Kind = "WalletLocked"
	KindInsufficientFunds  Kind = "InsufficientFunds"
)

// Error is the single error type returned by validation and protocol code.
// BanDelta is non-zero only for kinds the peer layer penalizes (§7 table);
// it is ignored by callers outside node/p2p.
type Error struct {
	Kind     Kind
	Msg      string
	BanDelta int
	Err      error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Banned constructs an error that also carries a ban-score delta for the peer
// layer, per the §7 table (InvalidBlock/InvalidTransaction: +20,
// ProtocolViolation: +10..+50).
func Banned(kind Kind, msg string, delta int) *Error {
	return &Error{Kind: kind, Msg: msg, BanDelta: delta}
}
