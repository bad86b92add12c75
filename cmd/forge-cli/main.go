// Command forge-cli is the command line client for a forge server
package main

import (
	"os"

	"github.com/appforge/forge/cmd/forge-cli/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
