package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ciphershare/ciphershare/config"
	"github.com/ciphershare/ciphershare/registry"
)

var (
	registryAddr     string
	registrySnapshot string

	// RegistryCmd runs the central registry server until interrupted.
	RegistryCmd = &cobra.Command{
		Use:   "registry",
		Short: "Run the central registry server",
		Long: `Starts the registry: the trusted process holding user credentials,
sessions, peer addresses, and file access lists. State is snapshotted
to disk best-effort; sessions live only as long as the process.`,
		RunE: func(c *cobra.Command, args []string) error {
			var reg *registry.Registry
			var err error
			if registrySnapshot != "" {
				reg, err = registry.Open(registrySnapshot)
				if err != nil {
					return err
				}
			} else {
				reg = registry.New()
				logrus.WithFields(logrus.Fields{
					"function": "RegistryCmd",
				}).Warn("No snapshot path configured; state is lost on exit")
			}

			srv := registry.NewServer(reg)
			if err := srv.Listen(registryAddr); err != nil {
				return err
			}
			return srv.Serve()
		},
	}
)

func init() {
	RegistryCmd.Flags().StringVar(&registryAddr, "addr", config.DefaultRegistryAddr, "address to listen on")
	RegistryCmd.Flags().StringVar(&registrySnapshot, "snapshot", "", "path for best-effort state snapshots")
}
