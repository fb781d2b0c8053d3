package peer

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/config"
	"github.com/ciphershare/ciphershare/protocol"
)

// transferTimeout bounds an outbound file stream.
const transferTimeout = 10 * time.Minute

// downloadHandler streams a stored ciphertext blob, resolved by the
// registry's global file id, as length-prefixed frames followed by the
// end-of-stream frame. The node sends the bytes exactly as stored.
type downloadHandler struct {
	node *Node
}

func (h *downloadHandler) ArgCount() int { return 1 }

func (h *downloadHandler) Execute(conn net.Conn, r *bufio.Reader, args []string) error {
	fileID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad file id %q: %w", args[0], err)
	}

	filename, ok := h.node.index.Lookup(fileID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Execute",
			"handler":  "download",
			"file_id":  fileID,
		}).Warn("Download requested for unindexed file id")
		return ErrUnknownFile
	}

	f, err := os.Open(filepath.Join(h.node.dir, filename))
	if err != nil {
		return fmt.Errorf("open %q: %w", filename, err)
	}
	defer f.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(transferTimeout)); err != nil {
		return err
	}
	sent, err := protocol.WriteFrames(conn, f, config.ChunkSize)
	if err != nil {
		return fmt.Errorf("send %q: %w", filename, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Execute",
		"handler":  "download",
		"file_id":  fileID,
		"filename": filename,
		"bytes":    sent,
	}).Info("File sent")
	return nil
}
