// Package commands implements the forge-cli subcommands
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/appforge/forge/pkg/api/v1/client"
)

// flag names
const (
	flagServerAddress = "server-address"
)

// environment variable names
const (
	envServerAddress = "FORGE_SERVER_ADDRESS"
)

var (
	// apiClient is the shared API client instance
	apiClient *client.APIClient
	// serverAddress holds the target API server address
	serverAddress string
)

// RootCmd is the base command for the CLI
var RootCmd = &cobra.Command{
	Use:   "forge-cli",
	Short: "Client for a forge app-generation server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed(flagServerAddress) {
			if addr := os.Getenv(envServerAddress); addr != "" {
				serverAddress = addr
			}
		}
		return initClient()
	},
	SilenceUsage: true,
}

func initClient() error {
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	var err error
	apiClient, err = client.NewClient(opts)
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s",
		client.DefaultOptions().BaseURL, "Address of the forge API server (env: FORGE_SERVER_ADDRESS)")

	RootCmd.AddCommand(GetGenerateCmd())
	RootCmd.AddCommand(GetStatusCmd())
	RootCmd.AddCommand(GetJobsCmd())
	RootCmd.AddCommand(GetWatchCmd())
}
