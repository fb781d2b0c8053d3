package protocol

import (
	"net"
	"strconv"
)

// Response status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// PeerAddress is the host and port a peer node listens on.
type PeerAddress struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a PeerAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// IsZero reports whether the address is unset.
func (a PeerAddress) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// Request is the single message a client sends to the registry per
// connection. Only the fields the given command uses are populated.
type Request struct {
	Command        Command      `json:"command"`
	Username       string       `json:"username,omitempty"`
	Password       string       `json:"password,omitempty"`
	PeerAddress    *PeerAddress `json:"peer_address,omitempty"`
	SessionID      string       `json:"session_id,omitempty"`
	Filename       string       `json:"filename,omitempty"`
	OwnerAddress   *PeerAddress `json:"owner_address,omitempty"`
	FileHash       string       `json:"file_hash,omitempty"`
	FileID         *uint64      `json:"file_id,omitempty"`
	TargetUsername string       `json:"target_username,omitempty"`
}

// FileInfo describes one shared file in listings, both from the
// registry (global metadata) and from a peer (local name and size).
type FileInfo struct {
	FileID       uint64       `json:"file_id"`
	Filename     string       `json:"filename"`
	Owner        string       `json:"owner,omitempty"`
	OwnerAddress *PeerAddress `json:"owner_address,omitempty"`
	FileHash     string       `json:"file_hash,omitempty"`
	Size         int64        `json:"size,omitempty"`
}

// Response is the single message the registry (or a peer answering
// GET_PEER_FILES) sends back before closing the connection.
type Response struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Key       []byte        `json:"key,omitempty"`
	FileID    *uint64       `json:"file_id,omitempty"`
	Username  string        `json:"username,omitempty"`
	Peers     []PeerAddress `json:"peers,omitempty"`
	Files     []FileInfo    `json:"files,omitempty"`
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// ErrorResponse builds an ERROR response with the given message.
func ErrorResponse(message string) Response {
	return Response{Status: StatusError, Message: message}
}
