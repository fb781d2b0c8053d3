// Package peer implements the CipherShare peer node: a per-user TCP
// server that stores ciphertext blobs on disk and serves them directly
// to other peers, independent of the registry.
//
// Each accepted connection carries one command. The node reads the
// command word, resolves a handler from its dispatch table, reads the
// handler's argument lines, and hands over the connection. Payload
// bytes travel as length-prefixed frames (see package protocol), so
// transfers terminate on an explicit zero-length frame rather than an
// in-band sentinel.
//
// File identifiers are the registry's global ids: after registering an
// upload, the owning client sends INDEX so the node can resolve future
// DOWNLOAD requests by global id. The peer never decrypts anything it
// stores.
package peer
