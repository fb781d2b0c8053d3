package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/config"
	"github.com/ciphershare/ciphershare/crypto"
	"github.com/ciphershare/ciphershare/peer"
	"github.com/ciphershare/ciphershare/protocol"
)

// ErrNotLoggedIn indicates a privileged operation before Login.
var ErrNotLoggedIn = errors.New("not logged in")

// ErrNoPeer indicates an operation that needs the client's own peer
// node before StartNode was called.
var ErrNoPeer = errors.New("peer node not started")

// ErrSelfTarget indicates a revoke aimed at the caller themselves.
var ErrSelfTarget = errors.New("cannot target yourself")

// ErrRegistryRejected wraps an ERROR status from the registry; the
// registry's message is attached as context.
var ErrRegistryRejected = errors.New("registry rejected request")

// ErrPeerRejected indicates an ERROR status from a peer file listing.
var ErrPeerRejected = errors.New("peer rejected request")

// Client drives one user's session.
type Client struct {
	registryAddr string
	node         *peer.Node

	username  string
	sessionID string
	key       []byte
}

// New creates a client that talks to the registry at registryAddr.
func New(registryAddr string) *Client {
	return &Client{registryAddr: registryAddr}
}

// StartNode creates and starts this client's own peer node, storing
// ciphertext under dir. Port 0 lets the OS choose.
func (c *Client) StartNode(dir, host string, port int) error {
	node, err := peer.NewNode(dir)
	if err != nil {
		return err
	}
	if err := node.Listen(host, port); err != nil {
		return err
	}
	go func() {
		if err := node.Serve(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "StartNode",
				"error":    err.Error(),
			}).Error("Peer node stopped")
		}
	}()
	c.node = node
	return nil
}

// PeerAddress returns the address of this client's own peer node.
func (c *Client) PeerAddress() protocol.PeerAddress {
	if c.node == nil {
		return protocol.PeerAddress{}
	}
	return c.node.Addr()
}

// Username returns the logged-in username, or "" before Login.
func (c *Client) Username() string { return c.username }

// LoggedIn reports whether the client holds a session.
func (c *Client) LoggedIn() bool { return c.sessionID != "" }

// CloseNode stops the client's peer node, if one is running.
func (c *Client) CloseNode() error {
	if c.node == nil {
		return nil
	}
	return c.node.Close()
}

// send performs one registry exchange: connect, one JSON request, one
// JSON response, close.
func (c *Client) send(req protocol.Request) (*protocol.Response, error) {
	conn, err := net.DialTimeout("tcp", c.registryAddr, config.RequestTimeoutSeconds*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to registry: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(config.RequestTimeoutSeconds * time.Second)); err != nil {
		return nil, err
	}
	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return nil, fmt.Errorf("send registry request: %w", err)
	}

	var resp protocol.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read registry response: %w", err)
	}
	return &resp, nil
}

// Register creates a new account bound to this client's peer address.
func (c *Client) Register(username, password string) error {
	if c.node == nil {
		return ErrNoPeer
	}
	addr := c.node.Addr()
	resp, err := c.send(protocol.Request{
		Command:     protocol.CmdRegisterUser,
		Username:    username,
		Password:    password,
		PeerAddress: &addr,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}
	return nil
}

// Login authenticates and stores the session id and derived key. On
// failure any previous session state is cleared.
func (c *Client) Login(username, password string) error {
	if c.node == nil {
		return ErrNoPeer
	}
	addr := c.node.Addr()
	resp, err := c.send(protocol.Request{
		Command:     protocol.CmdLoginUser,
		Username:    username,
		Password:    password,
		PeerAddress: &addr,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		c.Logout()
		return fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}

	c.username = username
	c.sessionID = resp.SessionID
	c.key = resp.Key

	logrus.WithFields(logrus.Fields{
		"function": "Login",
		"username": username,
	}).Info("Logged in")
	return nil
}

// Logout discards the local session state. The registry keeps its
// session until restart; there is no remote logout.
func (c *Client) Logout() {
	c.username = ""
	c.sessionID = ""
	c.key = nil
}

// ActivePeers returns every address with a live session, excluding
// this client's own peer.
func (c *Client) ActivePeers() ([]protocol.PeerAddress, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := c.send(protocol.Request{Command: protocol.CmdGetPeers, SessionID: c.sessionID})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}

	self := c.PeerAddress()
	peers := resp.Peers[:0]
	for _, p := range resp.Peers {
		if p != self {
			peers = append(peers, p)
		}
	}
	return peers, nil
}

// Files returns the registry's listing of files this user may access.
func (c *Client) Files() ([]protocol.FileInfo, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := c.send(protocol.Request{Command: protocol.CmdGetFiles, SessionID: c.sessionID})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}
	return resp.Files, nil
}

// PeerFiles queries every active peer for its local file listing,
// keyed by peer address. Unreachable peers are skipped.
func (c *Client) PeerFiles() (map[string][]protocol.FileInfo, error) {
	peers, err := c.ActivePeers()
	if err != nil {
		return nil, err
	}

	all := make(map[string][]protocol.FileInfo)
	for _, addr := range peers {
		files, err := c.queryPeerFiles(addr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "PeerFiles",
				"peer":     addr.String(),
				"error":    err.Error(),
			}).Warn("Peer file query failed; skipping peer")
			continue
		}
		all[addr.String()] = files
	}
	return all, nil
}

func (c *Client) queryPeerFiles(addr protocol.PeerAddress) ([]protocol.FileInfo, error) {
	conn, err := net.DialTimeout("tcp", addr.String(), config.PeerQueryTimeoutSeconds*time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(config.PeerQueryTimeoutSeconds * time.Second)); err != nil {
		return nil, err
	}
	if err := protocol.WriteLine(conn, protocol.CmdGetPeerFiles.String()); err != nil {
		return nil, err
	}

	var resp protocol.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrPeerRejected, resp.Message)
	}
	return resp.Files, nil
}

// Upload encrypts the file at path with this user's derived key, sends
// the ciphertext to the client's own peer node, registers the file
// with the registry, and records the assigned global id on the node.
// It returns the global file id.
func (c *Client) Upload(path string) (uint64, error) {
	if !c.LoggedIn() {
		return 0, ErrNotLoggedIn
	}
	if c.node == nil {
		return 0, ErrNoPeer
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %q: %w", path, err)
	}
	fileHash, err := crypto.HashFile(path)
	if err != nil {
		return 0, err
	}

	ciphertext, err := crypto.Encrypt(plaintext, c.key)
	if err != nil {
		return 0, fmt.Errorf("encrypt %q: %w", path, err)
	}

	filename := filepath.Base(path)
	if err := c.sendToOwnPeer(protocol.CmdUpload, []string{filename}, ciphertext); err != nil {
		return 0, fmt.Errorf("upload to own peer: %w", err)
	}

	addr := c.node.Addr()
	resp, err := c.send(protocol.Request{
		Command:      protocol.CmdRegisterFile,
		SessionID:    c.sessionID,
		Filename:     filename,
		OwnerAddress: &addr,
		FileHash:     fileHash,
	})
	if err != nil {
		return 0, err
	}
	if !resp.OK() || resp.FileID == nil {
		return 0, fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}
	fileID := *resp.FileID

	// Teach the node the registry's id so other peers can download by
	// global id.
	idLine := fmt.Sprintf("%d", fileID)
	if err := c.sendToOwnPeer(protocol.CmdIndex, []string{idLine, filename}, nil); err != nil {
		return 0, fmt.Errorf("index on own peer: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Upload",
		"filename": filename,
		"file_id":  fileID,
		"hash":     fileHash,
	}).Info("File uploaded and registered")
	return fileID, nil
}

// sendToOwnPeer runs one peer-protocol command against the client's
// own node. A non-nil payload is streamed as frames after the argument
// lines. The connection is held until the node closes it, so the
// command has fully landed when this returns.
func (c *Client) sendToOwnPeer(cmd protocol.Command, args []string, payload []byte) error {
	conn, err := net.DialTimeout("tcp", c.node.Addr().String(), config.PeerQueryTimeoutSeconds*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(config.RequestTimeoutSeconds * time.Second)); err != nil {
		return err
	}
	if err := protocol.WriteLine(conn, cmd.String()); err != nil {
		return err
	}
	for _, arg := range args {
		if err := protocol.WriteLine(conn, arg); err != nil {
			return err
		}
	}
	if payload != nil {
		if _, err := protocol.WriteFrames(conn, bytes.NewReader(payload), config.ChunkSize); err != nil {
			return err
		}
	}

	// Neither UPLOAD nor INDEX acks; the node closing the connection
	// is the completion signal.
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Download fetches fileID's ciphertext from peerAddr, decrypts it with
// the key the registry escrows for the file owner, writes the
// plaintext into destDir under filename, and verifies expectedHash.
// The returned bool reports whether the integrity check passed; a
// mismatch is a prominent warning, not a failure. Partial files are
// removed on any error.
func (c *Client) Download(fileID uint64, destDir string, peerAddr protocol.PeerAddress, filename, expectedHash string) (bool, error) {
	if !c.LoggedIn() {
		return false, ErrNotLoggedIn
	}

	filename, err := peer.SanitizeFilename(filename)
	if err != nil {
		return false, fmt.Errorf("file %d: %w", fileID, err)
	}

	allowed, err := c.CheckAccess(fileID)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, fmt.Errorf("file %d: %w", fileID, ErrRegistryRejected)
	}

	key, err := c.RequestKey(fileID)
	if err != nil {
		return false, err
	}

	ciphertext, err := c.fetch(peerAddr, fileID)
	if err != nil {
		return false, fmt.Errorf("fetch from peer %s: %w", peerAddr.String(), err)
	}

	plaintext, err := crypto.Decrypt(ciphertext, key)
	if err != nil {
		return false, fmt.Errorf("decrypt file %d: %w", fileID, err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, err
	}
	dest := filepath.Join(destDir, filename)
	if err := os.WriteFile(dest, plaintext, 0o644); err != nil {
		os.Remove(dest)
		return false, fmt.Errorf("write %q: %w", dest, err)
	}

	actualHash := crypto.HashData(plaintext)
	if expectedHash != "" && actualHash != expectedHash {
		logrus.WithFields(logrus.Fields{
			"function": "Download",
			"file_id":  fileID,
			"expected": expectedHash,
			"actual":   actualHash,
		}).Warn("Integrity check FAILED: downloaded content does not match registered hash")
		return false, nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Download",
		"file_id":  fileID,
		"dest":     dest,
	}).Info("File downloaded and verified")
	return true, nil
}

// fetch retrieves a file's raw ciphertext frames from a peer.
func (c *Client) fetch(addr protocol.PeerAddress, fileID uint64) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr.String(), config.PeerQueryTimeoutSeconds*time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(10 * time.Minute)); err != nil {
		return nil, err
	}
	if err := protocol.WriteLine(conn, protocol.CmdDownload.String()); err != nil {
		return nil, err
	}
	if err := protocol.WriteLine(conn, fmt.Sprintf("%d", fileID)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := protocol.ReadFrames(&buf, bufio.NewReader(conn)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CheckAccess asks the registry whether this user may access fileID.
func (c *Client) CheckAccess(fileID uint64) (bool, error) {
	if !c.LoggedIn() {
		return false, ErrNotLoggedIn
	}
	resp, err := c.send(protocol.Request{
		Command:   protocol.CmdCheckAccess,
		SessionID: c.sessionID,
		FileID:    &fileID,
	})
	if err != nil {
		return false, err
	}
	return resp.OK(), nil
}

// RequestKey retrieves the owner's derived key for fileID from the
// registry, which only succeeds when this user is on the access list.
func (c *Client) RequestKey(fileID uint64) ([]byte, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := c.send(protocol.Request{
		Command:   protocol.CmdRequestKey,
		SessionID: c.sessionID,
		FileID:    &fileID,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}
	return resp.Key, nil
}

// Share grants target access to fileID. Only the owner's session can
// succeed.
func (c *Client) Share(fileID uint64, target string) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	resp, err := c.send(protocol.Request{
		Command:        protocol.CmdShareFile,
		SessionID:      c.sessionID,
		FileID:         &fileID,
		TargetUsername: target,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}
	return nil
}

// Revoke removes target's access to fileID. Revoking yourself is
// rejected locally before the registry is consulted.
func (c *Client) Revoke(fileID uint64, target string) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	if target == c.username {
		return ErrSelfTarget
	}
	resp, err := c.send(protocol.Request{
		Command:        protocol.CmdRevokeAccess,
		SessionID:      c.sessionID,
		FileID:         &fileID,
		TargetUsername: target,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s", ErrRegistryRejected, resp.Message)
	}
	return nil
}
