// Package cmd implements the minikern command line interface, with the
// subcommands in their own packages registering themselves against the
// root command.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/disk"
	"github.com/minikern/minikern/kern"
)

// Root is the main minikern command.
var Root = &cobra.Command{
	Use:   "minikern",
	Short: "Operate on a minikern disk image",
	Long: `minikern hosts an instructional operating system kernel: a multilevel
feedback queue scheduler and a disk backed file system with hierarchical
directories and multilevel indirect file headers.

The subcommands operate on a disk image file. Make one with "minikern
mkfs", then create, copy in, list and remove files on it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	diskPath   string
	numSectors int
	debugSpec  string
	verbose    bool
)

// addFlags attaches the global flags to flagSet.
func addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&diskPath, "disk", "D", "disk.img", "Disk image file to operate on")
	flagSet.IntVar(&numSectors, "sectors", disk.DefaultNumSectors, "Disk geometry in sectors when formatting")
	flagSet.StringVar(&debugSpec, "debug", "", "Debug categories to log (letters, or + for all)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "Log everything that is being done")
}

func init() {
	addFlags(Root.PersistentFlags())
	cobra.OnInitialize(func() {
		spec := debugSpec
		if verbose && spec == "" {
			spec = "+"
		}
		debug.SetFlags(spec)
	})
}

// Boot opens the kernel on the configured disk image. format lays down
// a fresh file system, destroying the image's contents.
func Boot(format bool) (*kern.Kernel, error) {
	k, err := kern.New(kern.Options{
		DiskPath:   diskPath,
		NumSectors: numSectors,
		Format:     format,
	})
	if err != nil {
		return nil, err
	}
	if err := k.Stats.Register(prometheus.DefaultRegisterer); err != nil {
		// already registered is fine when several commands run in
		// one process (tests do this)
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
	}
	return k, nil
}

// CheckArgs checks there are enough arguments and exits with a usage
// error if not.
func CheckArgs(minArgs, maxArgs int, cmd *cobra.Command, args []string) {
	if len(args) < minArgs {
		_ = cmd.Usage()
		fmt.Fprintf(os.Stderr, "Command %s needs %d arguments minimum: you provided %d non flag arguments: %q\n", cmd.Name(), minArgs, len(args), args)
		os.Exit(1)
	}
	if len(args) > maxArgs {
		_ = cmd.Usage()
		fmt.Fprintf(os.Stderr, "Command %s needs %d arguments maximum: you provided %d non flag arguments: %q\n", cmd.Name(), maxArgs, len(args), args)
		os.Exit(1)
	}
}

// Main runs the root command and exits on error.
func Main() {
	if err := Root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "minikern: %v\n", err)
		os.Exit(1)
	}
}
