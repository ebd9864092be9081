// Package all imports every command package so that they register
// themselves with the root command.
package all

import (
	// Active commands
	_ "github.com/minikern/minikern/cmd/cat"
	_ "github.com/minikern/minikern/cmd/copyin"
	_ "github.com/minikern/minikern/cmd/deletefile"
	_ "github.com/minikern/minikern/cmd/ls"
	_ "github.com/minikern/minikern/cmd/mkdir"
	_ "github.com/minikern/minikern/cmd/mkfs"
	_ "github.com/minikern/minikern/cmd/purge"
	_ "github.com/minikern/minikern/cmd/tree"
	_ "github.com/minikern/minikern/cmd/version"
)
