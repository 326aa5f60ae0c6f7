package crypto

import (
	"bytes"
	"testing"
)

func newTestKey(t *testing.T) []byte {
	t.Helper()
	key, err := NewRoomKey()
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestRoundTrip(t *testing.T) {
	key := newTestKey(t)

	box, err := Seal([]byte("hello room"), key)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Open(box, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "hello room" {
		t.Fatalf("expected 'hello room', got %q", pt)
	}
}

func TestCiphertextDiffersFromPlaintext(t *testing.T) {
	key := newTestKey(t)

	box, err := Seal([]byte("secret"), key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(box.Ciphertext, []byte("secret")) {
		t.Fatal("ciphertext contains plaintext")
	}
	if len(box.Ciphertext) != len("secret")+TagSize {
		t.Fatalf("expected ciphertext length %d, got %d", len("secret")+TagSize, len(box.Ciphertext))
	}
}

func TestNonceUniquePerCall(t *testing.T) {
	key := newTestKey(t)

	box1, _ := Seal([]byte("same"), key)
	box2, _ := Seal([]byte("same"), key)
	if bytes.Equal(box1.Nonce, box2.Nonce) {
		t.Fatal("nonces should differ between calls")
	}
	if bytes.Equal(box1.Ciphertext, box2.Ciphertext) {
		t.Fatal("ciphertexts should differ for same plaintext")
	}
}

func TestWrongKeyFails(t *testing.T) {
	key := newTestKey(t)
	other := newTestKey(t)

	box, _ := Seal([]byte("secret"), key)
	_, err := Open(box, other)
	if err == nil {
		t.Fatal("expected error with wrong key")
	}
	if !IsDecryptError(err) {
		t.Fatalf("expected DecryptError, got %T", err)
	}
}

func TestTamperedCiphertext(t *testing.T) {
	key := newTestKey(t)

	box, _ := Seal([]byte("secret"), key)
	for i := range box.Ciphertext {
		tampered := SealedBox{
			Ciphertext: append([]byte(nil), box.Ciphertext...),
			Nonce:      box.Nonce,
		}
		tampered.Ciphertext[i] ^= 0x01
		if _, err := Open(tampered, key); err == nil {
			t.Fatalf("expected error with byte %d flipped", i)
		}
	}
}

func TestTamperedNonce(t *testing.T) {
	key := newTestKey(t)

	box, _ := Seal([]byte("secret"), key)
	box.Nonce[0] ^= 0xFF
	if _, err := Open(box, key); err == nil {
		t.Fatal("expected error with tampered nonce")
	}
}

func TestTruncatedCiphertext(t *testing.T) {
	key := newTestKey(t)

	box, _ := Seal([]byte("secret"), key)
	box.Ciphertext = box.Ciphertext[:TagSize-1]
	_, err := Open(box, key)
	if err == nil {
		t.Fatal("expected error with truncated ciphertext")
	}
	if !IsDecryptError(err) {
		t.Fatalf("expected DecryptError, got %T", err)
	}
}

func TestEmptyPlaintext(t *testing.T) {
	key := newTestKey(t)

	box, err := Seal(nil, key)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Open(box, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(pt) != 0 {
		t.Fatalf("expected empty plaintext, got %q", pt)
	}
}

func TestUnicodePlaintext(t *testing.T) {
	key := newTestKey(t)

	msg := "Hello \U0001F30D❤️ 日本語"
	box, err := Seal([]byte(msg), key)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Open(box, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != msg {
		t.Fatalf("expected %q, got %q", msg, pt)
	}
}

func TestLargePlaintext(t *testing.T) {
	key := newTestKey(t)

	msg := bytes.Repeat([]byte{'A'}, 20000)
	box, err := Seal(msg, key)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Open(box, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatal("large plaintext round-trip failed")
	}
}

func TestDistinctRoomKeys(t *testing.T) {
	k1 := newTestKey(t)
	k2 := newTestKey(t)
	if bytes.Equal(k1, k2) {
		t.Fatal("two generated keys should never match")
	}
	if len(k1) != KeySize {
		t.Fatalf("expected key length %d, got %d", KeySize, len(k1))
	}
}
