// minikern is an instructional operating system kernel: an MLFQ thread
// scheduler and a disk backed file system, driven from the command line.
package main

import (
	"github.com/minikern/minikern/cmd"
	_ "github.com/minikern/minikern/cmd/all" // import all commands
)

func main() {
	cmd.Main()
}
