package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

// ErrInvalidKeySize indicates a symmetric key that is not KeySize bytes.
var ErrInvalidKeySize = errors.New("key must be 32 bytes")

// ErrCiphertextTooShort indicates ciphertext shorter than IV plus one block.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// ErrCiphertextNotAligned indicates ciphertext that is not a whole number
// of cipher blocks.
var ErrCiphertextNotAligned = errors.New("ciphertext is not block-aligned")

// ErrInvalidPadding indicates corrupt PKCS#7 padding, which usually means
// the wrong key was used.
var ErrInvalidPadding = errors.New("invalid padding")

// Encrypt encrypts plaintext with AES-256-CBC under key. A fresh random
// IV is generated per call and prepended to the returned ciphertext.
// Plaintext of any length, including zero, is accepted; PKCS#7 padding
// is always applied.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// Decrypt reverses Encrypt: it splits the IV from the ciphertext,
// decrypts, and strips the PKCS#7 padding.
func Decrypt(data, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(data) < 2*aes.BlockSize {
		return nil, ErrCiphertextTooShort
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextNotAligned
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext, aes.BlockSize)
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}
