// Package crypto implements the cryptographic primitives for CipherShare.
//
// This package covers the four concerns the rest of the system depends on:
// Argon2id password hashing, deterministic PBKDF2 key derivation,
// whole-file AES-256-CBC encryption, and SHA-256 integrity hashing.
//
// The derived key, not the password, is the secret the registry hands
// to authorized downloaders, so DeriveKey must be deterministic for a
// given password and salt.
package crypto
