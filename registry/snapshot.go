package registry

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/protocol"
)

// snapshot is the persisted subset of registry state. Sessions are
// deliberately absent: they die with the process.
type snapshot struct {
	Credentials map[string]*UserCredential      `json:"credentials"`
	Peers       map[string]protocol.PeerAddress `json:"peers"`
	Files       map[uint64]*SharedFile          `json:"files"`
	NextFileID  uint64                          `json:"next_file_id"`
}

// Open creates a registry that snapshots to path after every mutation
// and starts from the snapshot found there, if any. Snapshotting is
// best effort: a failed write is logged and the in-memory state stays
// authoritative.
func Open(path string) (*Registry, error) {
	r := New()
	r.snapshotPath = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Credentials != nil {
		r.credentials = snap.Credentials
	}
	if snap.Peers != nil {
		r.peers = snap.Peers
	}
	if snap.Files != nil {
		r.files = snap.Files
	}
	r.nextFileID = snap.NextFileID

	logrus.WithFields(logrus.Fields{
		"function": "Open",
		"path":     path,
		"users":    len(r.credentials),
		"files":    len(r.files),
	}).Info("Registry state restored from snapshot")
	return r, nil
}

// snapshotLocked writes the snapshot file. Callers hold r.mu.
func (r *Registry) snapshotLocked() {
	if r.snapshotPath == "" {
		return
	}

	data, err := json.MarshalIndent(snapshot{
		Credentials: r.credentials,
		Peers:       r.peers,
		Files:       r.files,
		NextFileID:  r.nextFileID,
	}, "", "  ")
	if err == nil {
		err = os.WriteFile(r.snapshotPath, data, 0o600)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "snapshotLocked",
			"path":     r.snapshotPath,
			"error":    err.Error(),
		}).Warn("Snapshot failed; continuing with in-memory state")
	}
}
