// Package deletefile provides the deletefile command.
package deletefile

import (
	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

var commandDefinition = &cobra.Command{
	Use:   "deletefile /path/to/file",
	Short: `Remove a single file from the disk image.`,
	Long: `Removes the named file, returning its sectors to the free map. A
directory can only be removed this way when it is empty; use purge to
remove a directory and all its contents.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(1, 1, command, args)
		k, err := cmd.Boot(false)
		if err != nil {
			return err
		}
		defer k.Close()
		return k.FS.Remove(args[0])
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
