// Package mkfs provides the mkfs command.
package mkfs

import (
	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

var commandDefinition = &cobra.Command{
	Use:   "mkfs",
	Short: `Format the disk image with an empty file system.`,
	Long: `Creates the disk image named by --disk with the geometry given by
--sectors and lays down an empty file system on it: a free sector map
and an empty root directory. Any previous contents of the image are
destroyed.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(0, 0, command, args)
		k, err := cmd.Boot(true)
		if err != nil {
			return err
		}
		return k.Close()
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
