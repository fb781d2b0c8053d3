package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ciphershare/ciphershare/config"
	"github.com/ciphershare/ciphershare/protocol"
)

// Server serves the registry protocol: one JSON request and one JSON
// response per accepted TCP connection, each handled in its own
// goroutine.
type Server struct {
	registry *Registry
	listener net.Listener
}

// NewServer wraps a registry in a TCP server. Call Listen then Serve.
func NewServer(reg *Registry) *Server {
	return &Server{registry: reg}
}

// Listen binds the server to addr.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("registry listen: %w", err)
	}
	s.listener = listener

	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"address":  listener.Addr().String(),
	}).Info("Registry listening")
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts the listener down. In-flight handlers run to completion.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	deadline := time.Now().Add(config.RequestTimeoutSeconds * time.Second)
	if err := conn.SetDeadline(deadline); err != nil {
		return
	}

	var req protocol.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleConn",
			"remote":   conn.RemoteAddr().String(),
			"error":    err.Error(),
		}).Warn("Malformed registry request")
		s.respond(conn, protocol.ErrorResponse("Invalid request format"))
		return
	}

	resp := s.dispatch(&req)
	s.respond(conn, resp)
}

func (s *Server) respond(conn net.Conn, resp protocol.Response) {
	if err := json.NewEncoder(conn).Encode(&resp); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "respond",
			"remote":   conn.RemoteAddr().String(),
			"error":    err.Error(),
		}).Warn("Failed to write registry response")
	}
}

func (s *Server) dispatch(req *protocol.Request) protocol.Response {
	logrus.WithFields(logrus.Fields{
		"function": "dispatch",
		"command":  req.Command.String(),
	}).Debug("Handling registry command")

	switch req.Command {
	case protocol.CmdRegisterUser:
		return s.handleRegisterUser(req)
	case protocol.CmdLoginUser:
		return s.handleLogin(req)
	case protocol.CmdVerifySession:
		return s.handleVerifySession(req)
	case protocol.CmdGetPeers:
		return s.handleGetPeers(req)
	case protocol.CmdRegisterFile:
		return s.handleRegisterFile(req)
	case protocol.CmdGetFiles:
		return s.handleGetFiles(req)
	case protocol.CmdRequestKey:
		return s.handleRequestKey(req)
	case protocol.CmdShareFile:
		return s.handleShareFile(req)
	case protocol.CmdRevokeAccess:
		return s.handleRevokeAccess(req)
	case protocol.CmdCheckAccess:
		return s.handleCheckAccess(req)
	default:
		return protocol.ErrorResponse("Unknown command")
	}
}

func (s *Server) handleRegisterUser(req *protocol.Request) protocol.Response {
	if req.Username == "" || req.Password == "" || req.PeerAddress == nil {
		return protocol.ErrorResponse("Missing parameter")
	}
	if err := s.registry.RegisterUser(req.Username, req.Password, *req.PeerAddress); err != nil {
		return errorFor(err)
	}
	return protocol.Response{Status: protocol.StatusOK}
}

func (s *Server) handleLogin(req *protocol.Request) protocol.Response {
	if req.Username == "" || req.Password == "" || req.PeerAddress == nil {
		return protocol.ErrorResponse("Missing parameter")
	}
	sessionID, key, err := s.registry.Login(req.Username, req.Password, *req.PeerAddress)
	if err != nil {
		return errorFor(err)
	}
	return protocol.Response{Status: protocol.StatusOK, SessionID: sessionID, Key: key}
}

func (s *Server) handleVerifySession(req *protocol.Request) protocol.Response {
	username, err := s.registry.VerifySession(req.SessionID)
	if err != nil {
		return protocol.ErrorResponse("Invalid session")
	}
	return protocol.Response{Status: protocol.StatusOK, Username: username}
}

func (s *Server) handleGetPeers(req *protocol.Request) protocol.Response {
	peers, err := s.registry.ActivePeers(req.SessionID)
	if err != nil {
		return errorFor(err)
	}
	return protocol.Response{Status: protocol.StatusOK, Peers: peers}
}

func (s *Server) handleRegisterFile(req *protocol.Request) protocol.Response {
	if req.Filename == "" || req.OwnerAddress == nil || req.FileHash == "" {
		return protocol.ErrorResponse("Missing parameter")
	}
	fileID, err := s.registry.RegisterFile(req.SessionID, req.Filename, *req.OwnerAddress, req.FileHash)
	if err != nil {
		return errorFor(err)
	}
	return protocol.Response{Status: protocol.StatusOK, FileID: &fileID}
}

func (s *Server) handleGetFiles(req *protocol.Request) protocol.Response {
	files, err := s.registry.Files(req.SessionID)
	if err != nil {
		return errorFor(err)
	}
	return protocol.Response{Status: protocol.StatusOK, Files: files}
}

func (s *Server) handleRequestKey(req *protocol.Request) protocol.Response {
	if req.FileID == nil {
		return protocol.ErrorResponse("File ID not provided")
	}
	key, err := s.registry.RequestKey(req.SessionID, *req.FileID)
	if err != nil {
		return errorFor(err)
	}
	return protocol.Response{Status: protocol.StatusOK, Key: key}
}

func (s *Server) handleShareFile(req *protocol.Request) protocol.Response {
	if req.FileID == nil || req.TargetUsername == "" {
		return protocol.ErrorResponse("File ID or target username not provided")
	}
	if err := s.registry.ShareFile(req.SessionID, *req.FileID, req.TargetUsername); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyShared):
			return protocol.ErrorResponse(fmt.Sprintf("File already shared with %s", req.TargetUsername))
		case errors.Is(err, ErrUnknownTarget):
			return protocol.ErrorResponse(fmt.Sprintf("Target user '%s' not found", req.TargetUsername))
		case errors.Is(err, ErrNotOwner):
			return protocol.ErrorResponse("Only the file owner can share the file")
		default:
			return errorFor(err)
		}
	}
	return protocol.Response{Status: protocol.StatusOK, Message: fmt.Sprintf("File shared with %s", req.TargetUsername)}
}

func (s *Server) handleRevokeAccess(req *protocol.Request) protocol.Response {
	if req.FileID == nil || req.TargetUsername == "" {
		return protocol.ErrorResponse("File ID or target username not provided")
	}
	if err := s.registry.RevokeAccess(req.SessionID, *req.FileID, req.TargetUsername); err != nil {
		switch {
		case errors.Is(err, ErrNoAccess):
			return protocol.ErrorResponse(fmt.Sprintf("User %s does not have access to this file", req.TargetUsername))
		case errors.Is(err, ErrNotOwner):
			return protocol.ErrorResponse("Only the file owner can revoke access")
		default:
			return errorFor(err)
		}
	}
	return protocol.Response{Status: protocol.StatusOK, Message: fmt.Sprintf("Access revoked for %s", req.TargetUsername)}
}

func (s *Server) handleCheckAccess(req *protocol.Request) protocol.Response {
	if req.FileID == nil {
		return protocol.ErrorResponse("File ID not provided")
	}
	allowed, err := s.registry.CheckAccess(req.SessionID, *req.FileID)
	if err != nil {
		return errorFor(err)
	}
	if !allowed {
		return protocol.ErrorResponse("Access denied")
	}
	return protocol.Response{Status: protocol.StatusOK, Message: "Access granted"}
}

// errorFor maps registry errors to their wire messages.
func errorFor(err error) protocol.Response {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return protocol.ErrorResponse("Authentication required")
	case errors.Is(err, ErrDuplicateUser):
		return protocol.ErrorResponse("Username already exists")
	case errors.Is(err, ErrUnknownUser):
		return protocol.ErrorResponse("Username not found")
	case errors.Is(err, ErrInvalidCredentials):
		return protocol.ErrorResponse("Invalid credentials")
	case errors.Is(err, ErrAccessDenied):
		return protocol.ErrorResponse("Access denied")
	case errors.Is(err, ErrFileNotFound):
		return protocol.ErrorResponse("File not found")
	case errors.Is(err, ErrOwnerRevoke):
		return protocol.ErrorResponse("Cannot revoke access for the file owner")
	default:
		return protocol.ErrorResponse("Internal server error")
	}
}
