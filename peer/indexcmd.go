package peer

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
)

// indexHandler records the registry's global file id for a file already
// stored on this node. The owning client sends INDEX right after the
// registry assigns the id, which is what lets DOWNLOAD speak global
// ids. Like UPLOAD, it sends no acknowledgment.
type indexHandler struct {
	node *Node
}

func (h *indexHandler) ArgCount() int { return 2 }

func (h *indexHandler) Execute(conn net.Conn, r *bufio.Reader, args []string) error {
	fileID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad file id %q: %w", args[0], err)
	}
	filename, err := SanitizeFilename(args[1])
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(h.node.dir, filename)); err != nil {
		return fmt.Errorf("index %q: %w", filename, ErrUnknownFile)
	}

	h.node.index.Set(fileID, filename)

	logrus.WithFields(logrus.Fields{
		"function": "Execute",
		"handler":  "index",
		"file_id":  fileID,
		"filename": filename,
	}).Info("File id recorded")
	return nil
}
