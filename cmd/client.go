package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ciphershare/ciphershare/client"
	"github.com/ciphershare/ciphershare/config"
	"github.com/ciphershare/ciphershare/protocol"
)

var (
	clientRegistryAddr string
	clientSharedDir    string
	clientPeerHost     string
	clientPeerPort     int

	// ClientCmd starts a peer node and drives an interactive session.
	ClientCmd = &cobra.Command{
		Use:   "client",
		Short: "Run an interactive client session (starts your peer node)",
		Long: `Starts this user's peer node and reads commands from stdin:

  register <username> <password>
  login <username> <password>
  peers
  files
  peerfiles
  upload <path>
  download <file_id> <destination_dir>
  share <file_id> <username>
  revoke <file_id> <username>
  logout
  exit
`,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c := client.New(clientRegistryAddr)
			if err := c.StartNode(clientSharedDir, clientPeerHost, clientPeerPort); err != nil {
				return err
			}
			defer c.CloseNode()

			color.Cyan("Peer node listening on %s", c.PeerAddress().String())
			runConsole(c, bufio.NewScanner(os.Stdin))
			return nil
		},
	}
)

func init() {
	ClientCmd.Flags().StringVar(&clientRegistryAddr, "registry", config.DefaultRegistryAddr, "registry address")
	ClientCmd.Flags().StringVar(&clientSharedDir, "dir", config.SharedFilesDir, "directory for stored ciphertext")
	ClientCmd.Flags().StringVar(&clientPeerHost, "host", config.DefaultPeerHost, "interface the peer node binds to")
	ClientCmd.Flags().IntVar(&clientPeerPort, "port", 0, "peer node port (0 = OS-assigned)")
}

func runConsole(c *client.Client, in *bufio.Scanner) {
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return
		case "register":
			if !wantArgs(fields, 3, "register <username> <password>") {
				continue
			}
			report(c.Register(fields[1], fields[2]), "Registered. You can now log in.")
		case "login":
			if !wantArgs(fields, 3, "login <username> <password>") {
				continue
			}
			report(c.Login(fields[1], fields[2]), "Login successful.")
		case "logout":
			c.Logout()
			color.Green("Logged out locally.")
		case "peers":
			peers, err := c.ActivePeers()
			if err != nil {
				fail(err)
				continue
			}
			if len(peers) == 0 {
				color.Yellow("No other active peers.")
				continue
			}
			for _, p := range peers {
				fmt.Println(" ", p.String())
			}
		case "files":
			files, err := c.Files()
			if err != nil {
				fail(err)
				continue
			}
			if len(files) == 0 {
				color.Yellow("No accessible files.")
				continue
			}
			for _, f := range files {
				printFile(f)
			}
		case "peerfiles":
			listings, err := c.PeerFiles()
			if err != nil {
				fail(err)
				continue
			}
			if len(listings) == 0 {
				color.Yellow("No peers answered.")
				continue
			}
			for addr, files := range listings {
				color.Cyan("%s:", addr)
				for _, f := range files {
					fmt.Printf("    %s (%d bytes)\n", f.Filename, f.Size)
				}
			}
		case "upload":
			if !wantArgs(fields, 2, "upload <path>") {
				continue
			}
			fileID, err := c.Upload(fields[1])
			if err != nil {
				fail(err)
				continue
			}
			color.Green("Uploaded and registered as file %d.", fileID)
		case "download":
			if !wantArgs(fields, 3, "download <file_id> <destination_dir>") {
				continue
			}
			downloadByID(c, fields[1], fields[2])
		case "share":
			if !wantArgs(fields, 3, "share <file_id> <username>") {
				continue
			}
			fileID, ok := parseFileID(fields[1])
			if !ok {
				continue
			}
			report(c.Share(fileID, fields[2]), fmt.Sprintf("Shared file %d with %s.", fileID, fields[2]))
		case "revoke":
			if !wantArgs(fields, 3, "revoke <file_id> <username>") {
				continue
			}
			fileID, ok := parseFileID(fields[1])
			if !ok {
				continue
			}
			report(c.Revoke(fileID, fields[2]), fmt.Sprintf("Revoked %s's access to file %d.", fields[2], fileID))
		default:
			color.Red("Unknown command %q. Try 'exit' or see --help.", fields[0])
		}
	}
}

// downloadByID resolves the file record from the registry listing, then
// runs the full download path against the owner's peer.
func downloadByID(c *client.Client, idArg, destDir string) {
	fileID, ok := parseFileID(idArg)
	if !ok {
		return
	}

	files, err := c.Files()
	if err != nil {
		fail(err)
		return
	}
	var record *protocol.FileInfo
	for i := range files {
		if files[i].FileID == fileID {
			record = &files[i]
			break
		}
	}
	if record == nil {
		color.Red("File %d is not in your accessible files.", fileID)
		return
	}
	if record.OwnerAddress == nil {
		color.Red("File %d has no owner address on record.", fileID)
		return
	}

	verified, err := c.Download(fileID, destDir, *record.OwnerAddress, record.Filename, record.FileHash)
	if err != nil {
		fail(err)
		return
	}
	if verified {
		color.Green("Downloaded %s to %s. Integrity check passed.", record.Filename, destDir)
	} else {
		color.Red("WARNING: downloaded %s but the integrity check FAILED.", record.Filename)
	}
}

func printFile(f protocol.FileInfo) {
	owner := f.Owner
	if f.OwnerAddress != nil {
		owner = fmt.Sprintf("%s @ %s", f.Owner, f.OwnerAddress.String())
	}
	fmt.Printf("  [%d] %s (owner: %s)\n", f.FileID, f.Filename, owner)
}

func parseFileID(s string) (uint64, bool) {
	fileID, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		color.Red("Invalid file id %q.", s)
		return 0, false
	}
	return fileID, true
}

func wantArgs(fields []string, n int, usage string) bool {
	if len(fields) != n {
		color.Red("Usage: %s", usage)
		return false
	}
	return true
}

func report(err error, success string) {
	if err != nil {
		fail(err)
		return
	}
	color.Green("%s", success)
}

func fail(err error) {
	color.Red("Error: %v", err)
}
