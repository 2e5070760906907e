package crypto

import "testing"

func TestSHA256dIsDoubleSHA256(t *testing.T) {
	cp := Secp256k1Provider{}
	data := []byte("hello")
	first := cp.SHA256(data)
	want := cp.SHA256(first[:])
	got := cp.SHA256d(data)
	if got != want {
		t.Fatalf("expected SHA256d to be SHA256(SHA256(data))")
	}
}

func TestRIPEMD160IsDeterministicAndSizedCorrectly(t *testing.T) {
	cp := Secp256k1Provider{}
	a := cp.RIPEMD160([]byte("payload"))
	b := cp.RIPEMD160([]byte("payload"))
	if a != b {
		t.Fatalf("expected RIPEMD160 to be deterministic")
	}
	c := cp.RIPEMD160([]byte("different"))
	if a == c {
		t.Fatalf("expected different inputs to hash differently")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	cp := Secp256k1Provider{}
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	hash := cp.SHA256([]byte("message"))
	sig, err := cp.Sign(priv, hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !cp.Verify(priv.PublicKeyCompressed(), hash, sig) {
		t.Fatalf("expected a signature to verify against its own public key")
	}
}

func TestVerifyRejectsWrongKeyOrTamperedHash(t *testing.T) {
	cp := Secp256k1Provider{}
	priv, _ := GeneratePrivateKey()
	other, _ := GeneratePrivateKey()
	hash := cp.SHA256([]byte("message"))
	sig, err := cp.Sign(priv, hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if cp.Verify(other.PublicKeyCompressed(), hash, sig) {
		t.Fatalf("expected verification to fail against a different key")
	}
	tamperedHash := cp.SHA256([]byte("different message"))
	if cp.Verify(priv.PublicKeyCompressed(), tamperedHash, sig) {
		t.Fatalf("expected verification to fail against a tampered hash")
	}
}

func TestPrivateKeyParseRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	parsed, err := ParsePrivateKey(priv.Bytes())
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if string(parsed.PublicKeyCompressed()) != string(priv.PublicKeyCompressed()) {
		t.Fatalf("expected a parsed key to reproduce the same public key")
	}
}

func TestParsePrivateKeyRejectsWrongLength(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 31)); err == nil {
		t.Fatalf("expected a 31-byte scalar to be rejected")
	}
}

func TestBase58CheckRoundTrip(t *testing.T) {
	cp := Secp256k1Provider{}
	payload := []byte{0x00, 1, 2, 3, 4, 5}
	encoded := Base58CheckEncode(cp, payload)
	decoded, err := Base58CheckDecode(cp, encoded)
	if err != nil {
		t.Fatalf("Base58CheckDecode: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Fatalf("expected decoded payload to match the original")
	}
}

func TestBase58CheckDecodeRejectsBadChecksum(t *testing.T) {
	cp := Secp256k1Provider{}
	encoded := Base58CheckEncode(cp, []byte{9, 9, 9})
	replacement := byte('1')
	if encoded[len(encoded)-1] == '1' {
		replacement = '2'
	}
	corrupted := encoded[:len(encoded)-1] + string(replacement)
	if _, err := Base58CheckDecode(cp, corrupted); err == nil {
		t.Fatalf("expected a corrupted base58check string to fail checksum validation")
	}
}
