package registry

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ciphershare/ciphershare/protocol"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	addr := protocol.PeerAddress{Host: "127.0.0.1", Port: 9200}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	session := registerAndLogin(t, r, "alice", "alice-pass", addr)
	fileID, err := r.RegisterFile(session, "notes.txt", addr, "cafebabe")
	if err != nil {
		t.Fatalf("RegisterFile() error: %v", err)
	}
	originalKey := r.credentials["alice"].DerivedKey

	restored, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on existing snapshot error: %v", err)
	}

	// credentials, peers, and files survive the restart
	cred, ok := restored.credentials["alice"]
	if !ok {
		t.Fatal("credentials lost across snapshot")
	}
	if !bytes.Equal(cred.DerivedKey, originalKey) {
		t.Error("derived key changed across snapshot")
	}
	if restored.peers["alice"] != addr {
		t.Error("peer registration lost across snapshot")
	}
	f, ok := restored.files[fileID]
	if !ok || f.Filename != "notes.txt" || f.FileHash != "cafebabe" {
		t.Errorf("file record lost or corrupted across snapshot: %+v", f)
	}

	// sessions do not survive
	if _, err := restored.VerifySession(session); err == nil {
		t.Error("session survived a restart")
	}

	// the file id counter keeps climbing, never reusing ids
	newSession, _, err := restored.Login("alice", "alice-pass", addr)
	if err != nil {
		t.Fatalf("Login() after restore error: %v", err)
	}
	nextID, err := restored.RegisterFile(newSession, "more.txt", addr, "f00d")
	if err != nil {
		t.Fatalf("RegisterFile() after restore error: %v", err)
	}
	if nextID != fileID+1 {
		t.Errorf("file id after restore = %d, want %d", nextID, fileID+1)
	}
}

func TestOpenMissingSnapshotStartsEmpty(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "never-written.json"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if len(r.credentials) != 0 || len(r.files) != 0 {
		t.Error("fresh registry is not empty")
	}
}
