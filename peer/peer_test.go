package peer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciphershare/ciphershare/protocol"
)

func startTestNode(t *testing.T) (*Node, string) {
	t.Helper()
	dir := t.TempDir()
	node, err := NewNode(dir)
	require.NoError(t, err)
	require.NoError(t, node.Listen("127.0.0.1", 0))
	go func() { _ = node.Serve() }()
	t.Cleanup(func() { _ = node.Close() })
	return node, dir
}

func dialNode(t *testing.T, node *Node) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", node.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	return conn
}

func uploadToNode(t *testing.T, node *Node, filename string, content []byte) {
	t.Helper()
	conn := dialNode(t, node)
	defer conn.Close()

	require.NoError(t, protocol.WriteLine(conn, protocol.CmdUpload.String()))
	require.NoError(t, protocol.WriteLine(conn, filename))
	_, err := protocol.WriteFrames(conn, bytes.NewReader(content), 1024)
	require.NoError(t, err)
}

func indexOnNode(t *testing.T, node *Node, fileID string, filename string) {
	t.Helper()
	conn := dialNode(t, node)
	defer conn.Close()

	require.NoError(t, protocol.WriteLine(conn, protocol.CmdIndex.String()))
	require.NoError(t, protocol.WriteLine(conn, fileID))
	require.NoError(t, protocol.WriteLine(conn, filename))

	// the node sends no ack; wait for it to close so the index write
	// has landed before the test proceeds
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestUploadStoresCiphertextVerbatim(t *testing.T) {
	node, dir := startTestNode(t)
	content := bytes.Repeat([]byte{0x5a, 0x00, 0xff}, 40000)

	uploadToNode(t, node, "blob.bin", content)

	require.Eventually(t, func() bool {
		stored, err := os.ReadFile(filepath.Join(dir, "blob.bin"))
		return err == nil && bytes.Equal(stored, content)
	}, 5*time.Second, 20*time.Millisecond, "uploaded bytes never landed verbatim")
}

func TestUploadOverwritesExisting(t *testing.T) {
	node, dir := startTestNode(t)

	uploadToNode(t, node, "blob.bin", []byte("first version"))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "blob.bin"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	uploadToNode(t, node, "blob.bin", []byte("second version"))
	require.Eventually(t, func() bool {
		stored, err := os.ReadFile(filepath.Join(dir, "blob.bin"))
		return err == nil && bytes.Equal(stored, []byte("second version"))
	}, 5*time.Second, 20*time.Millisecond)
}

func TestUploadRejectsTraversalNames(t *testing.T) {
	node, dir := startTestNode(t)

	conn := dialNode(t, node)
	defer conn.Close()
	require.NoError(t, protocol.WriteLine(conn, protocol.CmdUpload.String()))
	require.NoError(t, protocol.WriteLine(conn, "../escape.bin"))
	_, err := protocol.WriteFrames(conn, bytes.NewReader([]byte("payload")), 1024)
	// the node may close the connection before the frames are written
	_ = err

	time.Sleep(100 * time.Millisecond)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.bin"))
	assert.True(t, os.IsNotExist(statErr), "traversal filename escaped the shared dir")
}

func TestDroppedUploadLeavesNoPartialFile(t *testing.T) {
	node, dir := startTestNode(t)

	conn := dialNode(t, node)
	require.NoError(t, protocol.WriteLine(conn, protocol.CmdUpload.String()))
	require.NoError(t, protocol.WriteLine(conn, "partial.bin"))
	require.NoError(t, protocol.WriteFrame(conn, []byte("some bytes")))
	// drop the connection without the end-of-stream frame
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return false
		}
		return len(entries) == 0
	}, 5*time.Second, 20*time.Millisecond, "partial upload was not cleaned up")
}

func TestDownloadByGlobalID(t *testing.T) {
	node, dir := startTestNode(t)
	content := []byte("ciphertext bytes, served back verbatim")

	uploadToNode(t, node, "blob.bin", content)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "blob.bin"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	indexOnNode(t, node, "7", "blob.bin")
	_, ok := node.index.Lookup(7)
	require.True(t, ok, "file id never indexed")

	conn := dialNode(t, node)
	defer conn.Close()
	require.NoError(t, protocol.WriteLine(conn, protocol.CmdDownload.String()))
	require.NoError(t, protocol.WriteLine(conn, "7"))

	var out bytes.Buffer
	n, err := protocol.ReadFrames(&out, bufio.NewReader(conn))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, out.Bytes())
}

func TestDownloadUnknownIDClosesWithoutPayload(t *testing.T) {
	node, _ := startTestNode(t)

	conn := dialNode(t, node)
	defer conn.Close()
	require.NoError(t, protocol.WriteLine(conn, protocol.CmdDownload.String()))
	require.NoError(t, protocol.WriteLine(conn, "12345"))

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF, "expected bare connection close, got payload or other error")
}

func TestListFiles(t *testing.T) {
	node, dir := startTestNode(t)

	uploadToNode(t, node, "bravo.bin", []byte("2222"))
	uploadToNode(t, node, "alpha.bin", []byte("1"))
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		count := 0
		if err == nil {
			for _, e := range entries {
				if e.Name() == "alpha.bin" || e.Name() == "bravo.bin" {
					count++
				}
			}
		}
		return count == 2
	}, 5*time.Second, 20*time.Millisecond)

	indexOnNode(t, node, "3", "alpha.bin")

	// a hidden file must never be listed
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".secret"), []byte("x"), 0o644))

	conn := dialNode(t, node)
	defer conn.Close()
	require.NoError(t, protocol.WriteLine(conn, protocol.CmdGetPeerFiles.String()))

	var resp protocol.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.True(t, resp.OK())
	require.Len(t, resp.Files, 2)

	assert.Equal(t, "alpha.bin", resp.Files[0].Filename)
	assert.Equal(t, int64(1), resp.Files[0].Size)
	assert.Equal(t, uint64(3), resp.Files[0].FileID)
	assert.Equal(t, "bravo.bin", resp.Files[1].Filename)
	assert.Equal(t, int64(4), resp.Files[1].Size)
}

func TestUnknownCommandCloses(t *testing.T) {
	node, _ := startTestNode(t)

	conn := dialNode(t, node)
	defer conn.Close()
	require.NoError(t, protocol.WriteLine(conn, "SELF_DESTRUCT"))

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestIndexSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	node, err := NewNode(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept.bin"), []byte("data"), 0o644))
	node.index.Set(11, "kept.bin")

	reopened, err := NewNode(dir)
	require.NoError(t, err)
	name, ok := reopened.index.Lookup(11)
	require.True(t, ok, "index mapping lost across restart")
	assert.Equal(t, "kept.bin", name)

	id, ok := reopened.index.IDFor("kept.bin")
	require.True(t, ok)
	assert.Equal(t, uint64(11), id)
}
