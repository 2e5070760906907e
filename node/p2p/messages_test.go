package p2p

import (
	"reflect"
	"testing"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
)

func TestVersionPayloadRoundTrip(t *testing.T) {
	v := VersionPayload{
		ProtocolVersion: ProtocolVersion,
		Services:        ServiceFullNode,
		Timestamp:       1700000000,
		Recipient:       consensus.NetworkAddress{Port: 9567},
		Sender:          consensus.NetworkAddress{Port: 9568},
		Nonce:           123456789,
		UserAgent:       "/corenode:0.1.0/",
		BestHeight:      42,
	}
	buf := EncodeVersionPayload(v)
	got, err := DecodeVersionPayload(buf)
	if err != nil {
		t.Fatalf("DecodeVersionPayload: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("version payload roundtrip mismatch\ngot:  %+v\nwant: %+v", got, v)
	}
}

func TestVersionPayloadRejectsOversizedUserAgent(t *testing.T) {
	v := VersionPayload{UserAgent: string(make([]byte, MaxUserAgentBytes+1))}
	buf := EncodeVersionPayload(v)
	if _, err := DecodeVersionPayload(buf); err == nil {
		t.Fatalf("expected oversized user agent to be rejected")
	}
}

func TestPingPongPayloadRoundTrip(t *testing.T) {
	p := PingPongPayload{Nonce: 98765}
	buf := EncodePingPong(p)
	got, err := DecodePingPong(buf)
	if err != nil {
		t.Fatalf("DecodePingPong: %v", err)
	}
	if got != p {
		t.Fatalf("ping/pong roundtrip mismatch: got %+v, want %+v", got, p)
	}
}

func TestAddressPayloadRoundTrip(t *testing.T) {
	entries := []AddressEntry{
		{Timestamp: 1, Address: consensus.NetworkAddress{Port: 1}},
		{Timestamp: 2, Address: consensus.NetworkAddress{Port: 2}},
	}
	buf, err := EncodeAddressPayload(entries)
	if err != nil {
		t.Fatalf("EncodeAddressPayload: %v", err)
	}
	got, err := DecodeAddressPayload(buf)
	if err != nil {
		t.Fatalf("DecodeAddressPayload: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("address payload roundtrip mismatch\ngot:  %+v\nwant: %+v", got, entries)
	}
}

func TestAddressPayloadRejectsTooManyEntries(t *testing.T) {
	entries := make([]AddressEntry, MaxAddressEntries+1)
	if _, err := EncodeAddressPayload(entries); err == nil {
		t.Fatalf("expected encoding too many address entries to be rejected")
	}
}

func TestGetBlocksPayloadRoundTrip(t *testing.T) {
	p := GetBlocksPayload{
		Locator:  []consensus.Hash{{1}, {2}, {3}},
		HashStop: consensus.Hash{9, 9},
	}
	buf := EncodeGetBlocksPayload(p)
	got, err := DecodeGetBlocksPayload(buf)
	if err != nil {
		t.Fatalf("DecodeGetBlocksPayload: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("getblocks payload roundtrip mismatch\ngot:  %+v\nwant: %+v", got, p)
	}
}

func TestBlocksPayloadRoundTrip(t *testing.T) {
	cp := crypto.Secp256k1Provider{}
	blocks := []consensus.Block{
		consensus.MainnetGenesis(cp),
	}
	buf, err := EncodeBlocksPayload(blocks)
	if err != nil {
		t.Fatalf("EncodeBlocksPayload: %v", err)
	}
	got, err := DecodeBlocksPayload(buf)
	if err != nil {
		t.Fatalf("DecodeBlocksPayload: %v", err)
	}
	if !reflect.DeepEqual(got, blocks) {
		t.Fatalf("blocks payload roundtrip mismatch\ngot:  %+v\nwant: %+v", got, blocks)
	}
}

func TestHashListPayloadRoundTrip(t *testing.T) {
	hashes := []consensus.Hash{{1}, {2}, {3}, {4}}
	buf := EncodeHashListPayload(hashes)
	got, err := DecodeHashListPayload(buf)
	if err != nil {
		t.Fatalf("DecodeHashListPayload: %v", err)
	}
	if !reflect.DeepEqual(got, hashes) {
		t.Fatalf("hash list roundtrip mismatch\ngot:  %+v\nwant: %+v", got, hashes)
	}
}

func TestTransactionsPayloadRoundTrip(t *testing.T) {
	txs := []consensus.Transaction{
		{Version: 1, Inputs: []consensus.TransactionInput{{RefIndex: consensus.CoinbaseRefIndex}},
			Outputs: []consensus.TransactionOutput{{Amount: 50, LockType: consensus.LockTypeSingleSignature, LockingParameters: make([]byte, 20)}}},
	}
	buf := EncodeTransactionsPayload(txs)
	got, err := DecodeTransactionsPayload(buf)
	if err != nil {
		t.Fatalf("DecodeTransactionsPayload: %v", err)
	}
	if !reflect.DeepEqual(got, txs) {
		t.Fatalf("transactions payload roundtrip mismatch\ngot:  %+v\nwant: %+v", got, txs)
	}
}
