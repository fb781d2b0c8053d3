package registry

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciphershare/ciphershare/protocol"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(New())
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func roundTrip(t *testing.T, addr string, req protocol.Request) protocol.Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, json.NewEncoder(conn).Encode(&req))
	var resp protocol.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServerRegisterAndLogin(t *testing.T) {
	srv := startTestServer(t)
	addr := protocol.PeerAddress{Host: "127.0.0.1", Port: 9100}

	resp := roundTrip(t, srv.Addr(), protocol.Request{
		Command:     protocol.CmdRegisterUser,
		Username:    "alice",
		Password:    "secret",
		PeerAddress: &addr,
	})
	require.True(t, resp.OK(), "register failed: %s", resp.Message)

	resp = roundTrip(t, srv.Addr(), protocol.Request{
		Command:     protocol.CmdRegisterUser,
		Username:    "alice",
		Password:    "secret",
		PeerAddress: &addr,
	})
	assert.False(t, resp.OK())
	assert.Equal(t, "Username already exists", resp.Message)

	resp = roundTrip(t, srv.Addr(), protocol.Request{
		Command:     protocol.CmdLoginUser,
		Username:    "alice",
		Password:    "secret",
		PeerAddress: &addr,
	})
	require.True(t, resp.OK(), "login failed: %s", resp.Message)
	assert.NotEmpty(t, resp.SessionID)
	assert.Len(t, resp.Key, 32)

	verify := roundTrip(t, srv.Addr(), protocol.Request{
		Command:   protocol.CmdVerifySession,
		SessionID: resp.SessionID,
	})
	require.True(t, verify.OK())
	assert.Equal(t, "alice", verify.Username)
}

func TestServerUnknownCommand(t *testing.T) {
	srv := startTestServer(t)

	resp := roundTrip(t, srv.Addr(), protocol.Request{Command: "MAKE_COFFEE"})
	assert.False(t, resp.OK())
	assert.Equal(t, "Unknown command", resp.Message)
}

func TestServerMalformedRequest(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.DialTimeout("tcp", srv.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.OK())
	assert.Equal(t, "Invalid request format", resp.Message)
}

func TestServerAuthRequired(t *testing.T) {
	srv := startTestServer(t)

	resp := roundTrip(t, srv.Addr(), protocol.Request{
		Command:   protocol.CmdGetFiles,
		SessionID: "bogus",
	})
	assert.False(t, resp.OK())
	assert.Equal(t, "Authentication required", resp.Message)
}
