package peer

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/protocol"
)

// listFilesHandler answers GET_PEER_FILES with a single JSON response
// enumerating the regular, non-hidden files this node stores.
type listFilesHandler struct {
	node *Node
}

func (h *listFilesHandler) ArgCount() int { return 0 }

func (h *listFilesHandler) Execute(conn net.Conn, r *bufio.Reader, args []string) error {
	entries, err := os.ReadDir(h.node.dir)
	if err != nil {
		resp := protocol.ErrorResponse("Error listing files")
		_ = json.NewEncoder(conn).Encode(&resp)
		return err
	}

	files := make([]protocol.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fi := protocol.FileInfo{Filename: entry.Name(), Size: info.Size()}
		if id, ok := h.node.index.IDFor(entry.Name()); ok {
			fi.FileID = id
		}
		files = append(files, fi)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	logrus.WithFields(logrus.Fields{
		"function": "Execute",
		"handler":  "list_files",
		"count":    len(files),
	}).Debug("Sending file list")

	resp := protocol.Response{Status: protocol.StatusOK, Files: files}
	return json.NewEncoder(conn).Encode(&resp)
}
