// Package version provides the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

// Version of the program, overridden at link time for releases.
var Version = "v1.0.0-DEV"

var commandDefinition = &cobra.Command{
	Use:   "version",
	Short: `Show the version number.`,
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(0, 0, command, args)
		fmt.Printf("minikern %s\n", Version)
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
