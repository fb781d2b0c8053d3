// Package client implements the CipherShare client orchestrator: it
// binds a user's identity, their own peer node, and the remote
// registry and peer protocols.
//
// Uploads are self-hosted: the client encrypts a file with its own
// derived key, sends the ciphertext to its own peer node, then
// registers the file with the registry. Downloads run the full access
// path end to end: CheckAccess, RequestKey (the registry returns the
// owner's key), fetch ciphertext from the owner's peer, decrypt, and
// verify the plaintext hash.
package client
