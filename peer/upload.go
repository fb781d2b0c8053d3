package peer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/protocol"
)

// uploadHandler receives a ciphertext blob and stores it verbatim under
// the given filename. The bytes are already encrypted by the uploader;
// the node never inspects them. No acknowledgment is sent.
type uploadHandler struct {
	node *Node
}

func (h *uploadHandler) ArgCount() int { return 1 }

func (h *uploadHandler) Execute(conn net.Conn, r *bufio.Reader, args []string) error {
	filename, err := SanitizeFilename(args[0])
	if err != nil {
		return err
	}

	// Data lands in a hidden temp file and is renamed into place only
	// once the stream completes, so listings and downloads never
	// observe a partial upload.
	tmp, err := os.CreateTemp(h.node.dir, ".incoming-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	received, streamErr := h.receive(conn, r, tmp)
	if err := tmp.Close(); streamErr == nil {
		streamErr = err
	}
	if streamErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("receive %q: %w", filename, streamErr)
	}

	// Overwriting an existing file of the same name is allowed.
	final := filepath.Join(h.node.dir, filename)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store %q: %w", filename, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Execute",
		"handler":  "upload",
		"filename": filename,
		"bytes":    received,
	}).Info("File received")
	return nil
}

// receive copies payload frames to dst until the end-of-stream frame,
// refreshing the read deadline per frame so a stalled sender cannot
// hold the handler forever.
func (h *uploadHandler) receive(conn net.Conn, r *bufio.Reader, dst io.Writer) (int64, error) {
	var received int64
	for {
		if err := conn.SetReadDeadline(time.Now().Add(commandTimeout)); err != nil {
			return received, err
		}
		payload, err := protocol.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return received, nil
		}
		if err != nil {
			return received, err
		}
		n, err := dst.Write(payload)
		received += int64(n)
		if err != nil {
			return received, err
		}
	}
}

// SanitizeFilename rejects names that would escape the shared
// directory or collide with the hidden namespace the node uses for
// itself. Clients apply the same rule to registry-supplied filenames
// before writing downloads.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrBadFilename
	}
	return name, nil
}
