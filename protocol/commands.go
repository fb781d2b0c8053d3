package protocol

import "strings"

// Command identifies one operation in either wire protocol.
type Command string

// Registry commands.
const (
	CmdRegisterUser  Command = "REGISTER_USER"
	CmdLoginUser     Command = "LOGIN_USER"
	CmdVerifySession Command = "VERIFY_SESSION"
	CmdGetPeers      Command = "GET_PEERS"
	CmdRegisterFile  Command = "REGISTER_FILE"
	CmdGetFiles      Command = "GET_FILES"
	CmdRequestKey    Command = "REQUEST_KEY"
	CmdShareFile     Command = "SHARE_FILE"
	CmdRevokeAccess  Command = "REVOKE_ACCESS"
	CmdCheckAccess   Command = "CHECK_ACCESS"
)

// Peer commands.
const (
	CmdUpload       Command = "UPLOAD"
	CmdDownload     Command = "DOWNLOAD"
	CmdIndex        Command = "INDEX"
	CmdGetPeerFiles Command = "GET_PEER_FILES"
)

var commands = map[Command]bool{
	CmdRegisterUser:  true,
	CmdLoginUser:     true,
	CmdVerifySession: true,
	CmdGetPeers:      true,
	CmdRegisterFile:  true,
	CmdGetFiles:      true,
	CmdRequestKey:    true,
	CmdShareFile:     true,
	CmdRevokeAccess:  true,
	CmdCheckAccess:   true,
	CmdUpload:        true,
	CmdDownload:      true,
	CmdIndex:         true,
	CmdGetPeerFiles:  true,
}

// ParseCommand resolves a command word case-insensitively. It reports
// false for anything that is not a known command.
func ParseCommand(s string) (Command, bool) {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	return c, commands[c]
}

func (c Command) String() string {
	return string(c)
}
