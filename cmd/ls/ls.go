// Package ls provides the ls command.
package ls

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

var commandDefinition = &cobra.Command{
	Use:   "ls [/path/to/directory]",
	Short: `List the entries of a directory on the disk image.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(0, 1, command, args)
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		k, err := cmd.Boot(false)
		if err != nil {
			return err
		}
		defer k.Close()
		return k.FS.List(path, os.Stdout)
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
