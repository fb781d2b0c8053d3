package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the length in bytes of the per-user random salt.
const SaltSize = 16

// HashSize is the length in bytes of an Argon2id password hash.
const HashSize = 32

// Argon2id parameters. Memory is in KiB.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// HashPassword hashes a password with Argon2id under a fresh random salt.
// The hash and salt are stored together; the password never is.
func HashPassword(password string) (hash, salt []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	hash = argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, HashSize)
	return hash, salt, nil
}

// VerifyPassword re-derives the Argon2id hash from the candidate password
// and the stored salt and compares it in constant time.
func VerifyPassword(password string, hash, salt []byte) bool {
	candidate := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, HashSize)
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}
