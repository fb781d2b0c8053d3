package crypto

import (
	"bytes"
	"crypto/aes"
	"os"
	"path/filepath"
	"testing"
)

func TestHashPasswordAndVerify(t *testing.T) {
	hash, salt, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if len(hash) != HashSize {
		t.Errorf("hash length = %d, want %d", len(hash), HashSize)
	}
	if len(salt) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(salt), SaltSize)
	}

	if !VerifyPassword("correct horse battery staple", hash, salt) {
		t.Error("VerifyPassword() rejected the correct password")
	}
	if VerifyPassword("wrong password", hash, salt) {
		t.Error("VerifyPassword() accepted a wrong password")
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	hash1, salt1, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	hash2, salt2, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}

	if bytes.Equal(salt1, salt2) {
		t.Error("two HashPassword() calls produced identical salts")
	}
	if bytes.Equal(hash1, hash2) {
		t.Error("two HashPassword() calls produced identical hashes")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	key1 := DeriveKey("hunter2", salt)
	key2 := DeriveKey("hunter2", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey() is not deterministic for identical inputs")
	}
	if len(key1) != KeySize {
		t.Errorf("key length = %d, want %d", len(key1), KeySize)
	}

	other := DeriveKey("hunter3", salt)
	if bytes.Equal(key1, other) {
		t.Error("DeriveKey() produced identical keys for different passwords")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("round trip", []byte("salt-salt-salt-1"))

	cases := []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "one byte", size: 1},
		{name: "one block", size: aes.BlockSize},
		{name: "just under a block", size: aes.BlockSize - 1},
		{name: "just over a block", size: aes.BlockSize + 1},
		{name: "many blocks", size: 4096},
		{name: "unaligned large", size: 4096 + 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plaintext := make([]byte, tc.size)
			for i := range plaintext {
				plaintext[i] = byte(i)
			}

			ciphertext, err := Encrypt(plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			if bytes.Contains(ciphertext, plaintext) && tc.size >= aes.BlockSize {
				t.Error("ciphertext contains the plaintext")
			}

			recovered, err := Decrypt(ciphertext, key)
			if err != nil {
				t.Fatalf("Decrypt() error: %v", err)
			}
			if !bytes.Equal(recovered, plaintext) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(recovered), len(plaintext))
			}
		})
	}
}

func TestEncryptFreshIV(t *testing.T) {
	key := DeriveKey("iv test", []byte("salt-salt-salt-2"))
	plaintext := []byte("identical plaintext")

	ct1, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	ct2, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if bytes.Equal(ct1, ct2) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptRejectsBadInput(t *testing.T) {
	key := DeriveKey("bad input", []byte("salt-salt-salt-3"))
	wrongKey := DeriveKey("other", []byte("salt-salt-salt-3"))

	ciphertext, err := Encrypt([]byte("some payload to protect"), key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := Decrypt(ciphertext[:aes.BlockSize], key); err == nil {
		t.Error("Decrypt() accepted truncated ciphertext")
	}
	if _, err := Decrypt(ciphertext[:len(ciphertext)-3], key); err == nil {
		t.Error("Decrypt() accepted unaligned ciphertext")
	}
	if _, err := Decrypt(ciphertext, key[:16]); err == nil {
		t.Error("Decrypt() accepted a short key")
	}
	if _, err := Decrypt(ciphertext, wrongKey); err == nil {
		t.Error("Decrypt() accepted the wrong key without a padding error")
	}
}

func TestHashFileMatchesHashData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	content := []byte("Hello, integration!")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	fromFile, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error: %v", err)
	}
	if fromFile != HashData(content) {
		t.Errorf("HashFile() = %s, HashData() = %s", fromFile, HashData(content))
	}

	if _, err := HashFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("HashFile() succeeded on a missing file")
	}
}

func BenchmarkEncrypt(b *testing.B) {
	key := DeriveKey("bench", []byte("salt-salt-salt-4"))
	payload := make([]byte, 1<<20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encrypt(payload, key); err != nil {
			b.Fatal(err)
		}
	}
}
