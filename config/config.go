// Package config holds the static defaults for the CipherShare network.
//
// Values here are compile-time defaults; the command-line layer may
// override any of them per process.
package config

// DefaultRegistryAddr is the address the registry listens on when no
// other address is given.
const DefaultRegistryAddr = "127.0.0.1:5000"

// DefaultPeerHost is the interface a peer node binds to by default.
const DefaultPeerHost = "127.0.0.1"

// ChunkSize is the payload size of one transfer frame.
const ChunkSize = 100 * 1024

// SharedFilesDir is the default directory a peer stores ciphertext in.
const SharedFilesDir = "shared_files"

// RequestTimeoutSeconds bounds a single registry request/response
// exchange.
const RequestTimeoutSeconds = 30

// PeerQueryTimeoutSeconds bounds a peer file-list query.
const PeerQueryTimeoutSeconds = 10
