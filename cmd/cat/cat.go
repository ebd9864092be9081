// Package cat provides the cat command.
package cat

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
	"github.com/minikern/minikern/filesys"
)

var commandDefinition = &cobra.Command{
	Use:   "cat /path/to/file",
	Short: `Print the contents of a file on the disk image.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(1, 1, command, args)
		k, err := cmd.Boot(false)
		if err != nil {
			return err
		}
		defer k.Close()
		isDir, _, err := k.FS.Stat(args[0])
		if err != nil {
			return err
		}
		if isDir {
			return filesys.ErrorIsDirectory
		}
		f, err := k.FS.Open(args[0])
		if err != nil {
			return err
		}
		_, err = io.Copy(os.Stdout, f)
		return err
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
