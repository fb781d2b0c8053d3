// Package registry implements the CipherShare central registry: the
// single authoritative holder of user credentials, live sessions, peer
// addresses, and shared-file access lists.
//
// The registry is a trusted key-escrow broker. It stores each user's
// derived symmetric key and hands the file owner's key to any session
// that is on the file's access list. Every handler goroutine goes
// through one RWMutex owner, so concurrent share/revoke/register
// requests cannot lose updates.
package registry
