package p2p

import (
	"bytes"
	"testing"

	"corechain.dev/node/crypto"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	cp := crypto.Secp256k1Provider{}
	var buf bytes.Buffer
	payload := []byte("hello peer")
	if err := WriteMessage(&buf, cp, 0xD9B4BEF9, MessageTypePing, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	env, rerr := ReadMessage(&buf, cp, 0xD9B4BEF9)
	if rerr != nil {
		t.Fatalf("ReadMessage: %v", rerr)
	}
	if env.Type != MessageTypePing || !bytes.Equal(env.Payload, payload) {
		t.Fatalf("envelope mismatch: got type=%d payload=%q", env.Type, env.Payload)
	}
}

func TestReadMessageRejectsMagicMismatch(t *testing.T) {
	cp := crypto.Secp256k1Provider{}
	var buf bytes.Buffer
	WriteMessage(&buf, cp, 0x11111111, MessageTypePing, nil)
	_, rerr := ReadMessage(&buf, cp, 0x22222222)
	if rerr == nil {
		t.Fatalf("expected magic mismatch to be rejected")
	}
	if rerr.BanScoreDelta != 50 || !rerr.Disconnect {
		t.Fatalf("expected magic mismatch to carry ban delta 50 and disconnect, got %+v", rerr)
	}
}

func TestReadMessageRejectsChecksumMismatch(t *testing.T) {
	cp := crypto.Secp256k1Provider{}
	var buf bytes.Buffer
	WriteMessage(&buf, cp, 0xD9B4BEF9, MessageTypePing, []byte("payload"))
	raw := buf.Bytes()
	corrupted := append([]byte(nil), raw...)
	corrupted[len(corrupted)-1] ^= 0xff // flip a payload byte without updating the checksum
	_, rerr := ReadMessage(bytes.NewReader(corrupted), cp, 0xD9B4BEF9)
	if rerr == nil {
		t.Fatalf("expected checksum mismatch to be rejected")
	}
	if rerr.BanScoreDelta != 20 {
		t.Fatalf("expected checksum mismatch to carry ban delta 20, got %d", rerr.BanScoreDelta)
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	cp := crypto.Secp256k1Provider{}
	var header [HeaderSize]byte
	header[0], header[1], header[2], header[3] = 0xf9, 0xbe, 0xb4, 0xd9
	// length field set beyond MaxPayloadBytes
	header[6], header[7], header[8], header[9] = 0xff, 0xff, 0xff, 0x7f
	_, rerr := ReadMessage(bytes.NewReader(header[:]), cp, 0xD9B4BEF9)
	if rerr == nil {
		t.Fatalf("expected oversized payload length to be rejected before reading the body")
	}
}
