package peer

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/protocol"
)

// commandTimeout bounds the wait for command and argument lines.
const commandTimeout = 30 * time.Second

// ErrMissingArgument indicates a command that arrived without one of
// its required argument lines.
var ErrMissingArgument = errors.New("missing command argument")

// ErrUnknownFile indicates a download or index request for a file this
// node does not hold.
var ErrUnknownFile = errors.New("no such file on this peer")

// ErrBadFilename indicates a filename that is empty, hidden, or tries
// to escape the shared directory.
var ErrBadFilename = errors.New("invalid filename")

// Handler is the contract every peer command implements. ArgCount is
// the number of newline-terminated argument lines the node reads before
// invoking Execute. Reads go through r (which may hold buffered bytes
// beyond the argument lines); writes go to conn.
type Handler interface {
	ArgCount() int
	Execute(conn net.Conn, r *bufio.Reader, args []string) error
}

// Node is one user's peer server.
type Node struct {
	dir      string
	listener net.Listener
	handlers map[protocol.Command]Handler
	index    *fileIndex
}

// NewNode creates a node storing ciphertext under dir, creating the
// directory if needed.
func NewNode(dir string) (*Node, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shared dir: %w", err)
	}
	index, err := openIndex(dir)
	if err != nil {
		return nil, err
	}

	n := &Node{dir: dir, index: index}
	n.handlers = map[protocol.Command]Handler{
		protocol.CmdUpload:       &uploadHandler{node: n},
		protocol.CmdDownload:     &downloadHandler{node: n},
		protocol.CmdIndex:        &indexHandler{node: n},
		protocol.CmdGetPeerFiles: &listFilesHandler{node: n},
	}
	return n, nil
}

// Listen binds the node. Port 0 asks the OS to pick one; Addr reports
// the actual port afterwards.
func (n *Node) Listen(host string, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("peer listen: %w", err)
	}
	n.listener = listener

	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"address":  listener.Addr().String(),
		"dir":      n.dir,
	}).Info("Peer node listening")
	return nil
}

// Addr returns the node's reachable address.
func (n *Node) Addr() protocol.PeerAddress {
	if n.listener == nil {
		return protocol.PeerAddress{}
	}
	tcpAddr := n.listener.Addr().(*net.TCPAddr)
	return protocol.PeerAddress{Host: tcpAddr.IP.String(), Port: tcpAddr.Port}
}

// Serve accepts connections until the listener closes, one goroutine
// per connection.
func (n *Node) Serve() error {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go n.handleConn(conn)
	}
}

// Close shuts the listener down.
func (n *Node) Close() error {
	if n.listener == nil {
		return nil
	}
	return n.listener.Close()
}

// handleConn runs one command to completion. Failures are logged and
// end with the connection closing; the peer never retries.
func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	if err := conn.SetDeadline(time.Now().Add(commandTimeout)); err != nil {
		return
	}

	r := bufio.NewReader(conn)
	line, err := protocol.ReadLine(r)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleConn",
			"remote":   remote,
			"error":    err.Error(),
		}).Debug("Connection closed before command received")
		return
	}

	command, ok := protocol.ParseCommand(line)
	handler := n.handlers[command]
	if !ok || handler == nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleConn",
			"remote":   remote,
			"command":  line,
		}).Warn("Unknown peer command")
		return
	}

	args := make([]string, 0, handler.ArgCount())
	for i := 0; i < handler.ArgCount(); i++ {
		arg, err := protocol.ReadLine(r)
		if err != nil || arg == "" {
			logrus.WithFields(logrus.Fields{
				"function": "handleConn",
				"remote":   remote,
				"command":  command.String(),
			}).Warn("Missing command argument")
			return
		}
		args = append(args, arg)
	}

	logrus.WithFields(logrus.Fields{
		"function": "handleConn",
		"remote":   remote,
		"command":  command.String(),
	}).Debug("Executing peer command")

	if err := handler.Execute(conn, r, args); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleConn",
			"remote":   remote,
			"command":  command.String(),
			"error":    err.Error(),
		}).Warn("Peer command failed")
	}
}
