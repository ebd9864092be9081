// Package purge provides the purge command.
package purge

import (
	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

var commandDefinition = &cobra.Command{
	Use:   "purge /path/to/directory",
	Short: `Remove a path and all of its contents from the disk image.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(1, 1, command, args)
		k, err := cmd.Boot(false)
		if err != nil {
			return err
		}
		defer k.Close()
		return k.FS.RecursiveRemove(args[0])
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
