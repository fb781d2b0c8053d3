package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ciphershare/ciphershare/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "ciphershare",
	Short: "CipherShare - peer-to-peer encrypted file sharing.",
	Long: `CipherShare is a peer-to-peer encrypted file-sharing network.

A central registry brokers identity, peer discovery, and file access
control; file bytes move directly between peers, encrypted end to end
with keys derived from each user's password.

Available Commands:
  registry   Run the central registry server
  client     Run an interactive client session (starts your peer node)

Run 'ciphershare help <command>' for details on a specific command.
`,
	Run: func(c *cobra.Command, args []string) {
		fmt.Println("Run 'ciphershare --help' to see available commands.")
	},
}

func main() {
	rootCmd.AddCommand(cmd.RegistryCmd)
	rootCmd.AddCommand(cmd.ClientCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
