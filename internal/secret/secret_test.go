package secret

import (
	"bytes"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), SaltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}

	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestBoxRoundTrip(t *testing.T) {
	box, err := NewBox("passphrase", []byte("1234567890abcdef"))
	if err != nil {
		t.Fatalf("new box: %v", err)
	}

	sealed, err := box.Seal([]byte("sk-ant-secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("sk-ant-secret")) {
		t.Error("sealed value leaks plaintext")
	}

	got, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != "sk-ant-secret" {
		t.Errorf("open = %q, want %q", got, "sk-ant-secret")
	}

	other, _ := NewBox("wrong", []byte("1234567890abcdef"))
	if _, err := other.Open(sealed); err == nil {
		t.Error("opening with the wrong passphrase should fail")
	}

	if _, err := box.Open([]byte("short")); err != ErrCiphertextTooShort {
		t.Errorf("open short = %v, want ErrCiphertextTooShort", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("This is test database content with some data in it.")

	encrypted, err := Encrypt(original, "test-passphrase-123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(encrypted, original) {
		t.Error("encrypted content should differ from original")
	}

	decrypted, err := Decrypt(encrypted, "test-passphrase-123")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, original) {
		t.Error("decrypted content should match original")
	}

	if _, err := Decrypt(encrypted, "wrong"); err == nil {
		t.Error("decrypt with wrong passphrase should fail")
	}
	if _, err := Decrypt([]byte("tiny"), "x"); err != ErrCiphertextTooShort {
		t.Errorf("decrypt tiny = %v, want ErrCiphertextTooShort", err)
	}
}
