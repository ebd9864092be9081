// Package mkdir provides the mkdir command.
package mkdir

import (
	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

var commandDefinition = &cobra.Command{
	Use:   "mkdir /path/to/directory",
	Short: `Make a new directory on the disk image.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(1, 1, command, args)
		k, err := cmd.Boot(false)
		if err != nil {
			return err
		}
		defer k.Close()
		return k.FS.CreateDirectory(args[0])
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
