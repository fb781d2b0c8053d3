package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the length in bytes of a derived symmetric key (AES-256).
const KeySize = 32

// kdfIterations is the PBKDF2 iteration count.
const kdfIterations = 100000

// DeriveKey deterministically derives a 256-bit symmetric key from a
// password and salt using PBKDF2-HMAC-SHA256. The same inputs always
// produce the same key; this is what lets the registry re-issue a file
// owner's key to authorized downloaders.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, KeySize, sha256.New)
}
