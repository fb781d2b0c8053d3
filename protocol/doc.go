// Package protocol defines the CipherShare wire contracts.
//
// Two protocols live here. The registry protocol is one JSON request
// and one JSON response per TCP connection. The peer protocol starts
// with newline-terminated UTF-8 text (the command word, then the
// command's argument lines) followed by the payload as length-prefixed
// binary frames; a zero-length frame marks end of stream, so ciphertext
// can never collide with a terminator.
package protocol
