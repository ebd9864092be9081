// Package copyin provides the copyin command.
package copyin

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
)

var commandDefinition = &cobra.Command{
	Use:   "copyin hostfile /path/on/image",
	Short: `Copy a host file onto the disk image.`,
	Long: `Reads hostfile from the host file system, creates a file of the same
size at the target path on the disk image and writes the contents into
it. Files on the image have a fixed size, so the target must not
already exist.`,
	RunE: func(command *cobra.Command, args []string) error {
		cmd.CheckArgs(2, 2, command, args)
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		k, err := cmd.Boot(false)
		if err != nil {
			return err
		}
		defer k.Close()
		if err := k.FS.Create(args[1], int64(len(data))); err != nil {
			return err
		}
		f, err := k.FS.Open(args[1])
		if err != nil {
			return err
		}
		n, err := f.WriteAt(data, 0)
		if err != nil {
			return err
		}
		if n != len(data) {
			return fmt.Errorf("short write: %d of %d bytes", n, len(data))
		}
		return nil
	},
}

func init() {
	cmd.Root.AddCommand(commandDefinition)
}
