package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/crypto"
	"github.com/ciphershare/ciphershare/protocol"
)

// UserCredential is the stored identity of one user. DerivedKey is the
// symmetric key deterministically derived from the password and salt;
// it is what the registry issues to authorized downloaders. The record
// is immutable once created.
type UserCredential struct {
	Username     string `json:"username"`
	PasswordHash []byte `json:"password_hash"`
	Salt         []byte `json:"salt"`
	DerivedKey   []byte `json:"derived_key"`
}

// SharedFile is the registry's record of one uploaded file and its
// access list. AllowedUsers always contains the owner.
type SharedFile struct {
	FileID       uint64               `json:"file_id"`
	Filename     string               `json:"filename"`
	Owner        string               `json:"owner"`
	OwnerAddress protocol.PeerAddress `json:"owner_address"`
	FileHash     string               `json:"file_hash"`
	AllowedUsers []string             `json:"allowed_users"`
}

func (f *SharedFile) allows(username string) bool {
	for _, u := range f.AllowedUsers {
		if u == username {
			return true
		}
	}
	return false
}

// Registry owns all shared state. Every operation takes the single
// mutex, so handler goroutines never interleave map mutations.
type Registry struct {
	mu          sync.RWMutex
	credentials map[string]*UserCredential
	sessions    map[string]string // session id -> username
	peers       map[string]protocol.PeerAddress
	files       map[uint64]*SharedFile
	nextFileID  uint64

	snapshotPath string
}

// New creates an empty registry with no persistence.
func New() *Registry {
	return &Registry{
		credentials: make(map[string]*UserCredential),
		sessions:    make(map[string]string),
		peers:       make(map[string]protocol.PeerAddress),
		files:       make(map[uint64]*SharedFile),
	}
}

// RegisterUser creates the credential and peer registration for a new
// username. The password is hashed with Argon2id and the derived key is
// computed once, at registration, from the same password and salt.
func (r *Registry) RegisterUser(username, password string, addr protocol.PeerAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.credentials[username]; exists {
		return ErrDuplicateUser
	}

	hash, salt, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	r.credentials[username] = &UserCredential{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		DerivedKey:   crypto.DeriveKey(password, salt),
	}
	r.peers[username] = addr

	logrus.WithFields(logrus.Fields{
		"function": "RegisterUser",
		"username": username,
		"peer":     addr.String(),
	}).Info("User registered")

	r.snapshotLocked()
	return nil
}

// Login verifies the password, creates a new session, and refreshes the
// user's peer registration. Existing sessions stay valid. It returns
// the session id and the user's own derived key.
func (r *Registry) Login(username, password string, addr protocol.PeerAddress) (string, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, exists := r.credentials[username]
	if !exists {
		return "", nil, ErrUnknownUser
	}
	if !crypto.VerifyPassword(password, cred.PasswordHash, cred.Salt) {
		logrus.WithFields(logrus.Fields{
			"function": "Login",
			"username": username,
		}).Warn("Login rejected: bad password")
		return "", nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	r.sessions[sessionID] = username
	r.peers[username] = addr

	logrus.WithFields(logrus.Fields{
		"function": "Login",
		"username": username,
		"peer":     addr.String(),
	}).Info("User logged in")

	r.snapshotLocked()
	return sessionID, cred.DerivedKey, nil
}

// VerifySession resolves a session id to its username.
func (r *Registry) VerifySession(sessionID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return "", ErrAuthRequired
	}
	return username, nil
}

// ActivePeers returns the addresses of every username holding at least
// one live session. The caller filters out its own address.
func (r *Registry) ActivePeers(sessionID string) ([]protocol.PeerAddress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return nil, ErrAuthRequired
	}

	seen := make(map[string]bool)
	var peers []protocol.PeerAddress
	for _, username := range r.sessions {
		if seen[username] {
			continue
		}
		seen[username] = true
		if addr, ok := r.peers[username]; ok {
			peers = append(peers, addr)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].String() < peers[j].String() })
	return peers, nil
}

// RegisterFile allocates the next file id and records a shared file
// owned by the session's user, with an access list of just the owner.
// A mismatch between the claimed owner address and the registry's own
// peer registration is logged but not fatal.
func (r *Registry) RegisterFile(sessionID, filename string, ownerAddr protocol.PeerAddress, fileHash string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return 0, ErrAuthRequired
	}

	if registered, ok := r.peers[username]; ok && registered != ownerAddr {
		logrus.WithFields(logrus.Fields{
			"function":   "RegisterFile",
			"username":   username,
			"claimed":    ownerAddr.String(),
			"registered": registered.String(),
		}).Warn("File owner address disagrees with peer registration")
	}

	fileID := r.nextFileID
	r.nextFileID++
	r.files[fileID] = &SharedFile{
		FileID:       fileID,
		Filename:     filename,
		Owner:        username,
		OwnerAddress: ownerAddr,
		FileHash:     fileHash,
		AllowedUsers: []string{username},
	}

	logrus.WithFields(logrus.Fields{
		"function": "RegisterFile",
		"username": username,
		"filename": filename,
		"file_id":  fileID,
	}).Info("File registered")

	r.snapshotLocked()
	return fileID, nil
}

// Files returns the shared files whose access list contains the
// session's user, ordered by file id.
func (r *Registry) Files(sessionID string) ([]protocol.FileInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrAuthRequired
	}

	var files []protocol.FileInfo
	for _, f := range r.files {
		if !f.allows(username) {
			continue
		}
		addr := f.OwnerAddress
		files = append(files, protocol.FileInfo{
			FileID:       f.FileID,
			Filename:     f.Filename,
			Owner:        f.Owner,
			OwnerAddress: &addr,
			FileHash:     f.FileHash,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FileID < files[j].FileID })
	return files, nil
}

// RequestKey returns the file owner's derived key, provided the
// session's user is on the file's access list.
func (r *Registry) RequestKey(sessionID string, fileID uint64) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrAuthRequired
	}

	f, ok := r.files[fileID]
	if !ok {
		return nil, ErrFileNotFound
	}
	if !f.allows(username) {
		logrus.WithFields(logrus.Fields{
			"function": "RequestKey",
			"username": username,
			"file_id":  fileID,
		}).Warn("Key request denied")
		return nil, ErrAccessDenied
	}

	owner, ok := r.credentials[f.Owner]
	if !ok {
		// File registered but owner credentials missing: internal
		// inconsistency, surfaced as not-found.
		logrus.WithFields(logrus.Fields{
			"function": "RequestKey",
			"file_id":  fileID,
			"owner":    f.Owner,
		}).Error("File owner has no stored credentials")
		return nil, ErrFileNotFound
	}
	return owner.DerivedKey, nil
}

// ShareFile adds target to the file's access list. Only the owner may
// share; the target must be a registered user not already on the list.
func (r *Registry) ShareFile(sessionID string, fileID uint64, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return ErrAuthRequired
	}

	f, ok := r.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	if f.Owner != username {
		return ErrNotOwner
	}
	if _, ok := r.credentials[target]; !ok {
		return ErrUnknownTarget
	}
	if f.allows(target) {
		return ErrAlreadyShared
	}

	f.AllowedUsers = append(f.AllowedUsers, target)

	logrus.WithFields(logrus.Fields{
		"function": "ShareFile",
		"owner":    username,
		"target":   target,
		"file_id":  fileID,
	}).Info("File shared")

	r.snapshotLocked()
	return nil
}

// RevokeAccess removes target from the file's access list. Only the
// owner may revoke, the owner's own access can never be revoked, and
// the target must currently be on the list.
func (r *Registry) RevokeAccess(sessionID string, fileID uint64, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return ErrAuthRequired
	}

	f, ok := r.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	if f.Owner != username {
		return ErrNotOwner
	}
	if target == f.Owner {
		return ErrOwnerRevoke
	}
	if !f.allows(target) {
		return ErrNoAccess
	}

	kept := f.AllowedUsers[:0]
	for _, u := range f.AllowedUsers {
		if u != target {
			kept = append(kept, u)
		}
	}
	f.AllowedUsers = kept

	logrus.WithFields(logrus.Fields{
		"function": "RevokeAccess",
		"owner":    username,
		"target":   target,
		"file_id":  fileID,
	}).Info("Access revoked")

	r.snapshotLocked()
	return nil
}

// CheckAccess reports whether the session's user is on the file's
// access list.
func (r *Registry) CheckAccess(sessionID string, fileID uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrAuthRequired
	}

	f, ok := r.files[fileID]
	if !ok {
		return false, ErrFileNotFound
	}
	return f.allows(username), nil
}
