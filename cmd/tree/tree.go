// Package tree provides the tree command, rendering a directory on the
// disk image as a tree.
package tree

import (
	"fmt"
	"io"
	"os"
	gopath "path"
	"time"

	"github.com/a8m/tree"
	"github.com/spf13/cobra"

	"github.com/minikern/minikern/cmd"
	"github.com/minikern/minikern/filesys"
)

var opts tree.Options

var commandDefinition = &cobra.Command{
	Use:   "tree [/path/to/directory]",
	Short: `List the contents of a directory in a tree like fashion.`,
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
		return Tree(k.FS, path, os.Stdout, &opts)
	},
}

func init() {
	commandDefinition.Flags().BoolVarP(&opts.DirsOnly, "dirs-only", "d", false, "List directories only")
	commandDefinition.Flags().BoolVar(&opts.FullPath, "full-path", false, "Print the full path prefix for each file")
	commandDefinition.Flags().BoolVarP(&opts.ByteSize, "size", "s", false, "Print the size of each file")
	cmd.Root.AddCommand(commandDefinition)
}

// Tree renders the directory at path to w.
func Tree(fsys *filesys.FileSystem, path string, w io.Writer, opts *tree.Options) error {
	dirs, err := buildFs(fsys, path)
	if err != nil {
		return err
	}
	nd := len(dirs) - 1
	nf := 0
	for _, entries := range dirs {
		for _, fi := range entries {
			if !fi.IsDir() {
				nf++
			}
		}
	}
	opts.Fs = dirs
	opts.OutFile = w
	inf := tree.New(path)
	inf.Visit(opts)
	inf.Print(opts)
	fmt.Fprintf(w, "\n%d directories, %d files\n", nd, nf)
	return nil
}

// buildFs snapshots the directory tree under root into the Fs form the
// tree package walks.
func buildFs(fsys *filesys.FileSystem, root string) (Fs, error) {
	isDir, _, err := fsys.Stat(root)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, filesys.ErrorNotDirectory
	}
	dirs := Fs{root: nil}
	err = fsys.Walk(root, func(dirPath string, e filesys.DirectoryEntry, depth int) error {
		full := gopath.Join(dirPath, e.Name())
		var size int64
		if !e.IsDir {
			if _, size, err = fsys.Stat(full); err != nil {
				return err
			}
		}
		dirs[dirPath] = append(dirs[dirPath], &fileInfo{
			name:  e.Name(),
			size:  size,
			isDir: e.IsDir,
		})
		if e.IsDir {
			// make sure empty directories are readable
			if _, ok := dirs[full]; !ok {
				dirs[full] = nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// fileInfo adapts a directory entry to os.FileInfo for the tree
// package.
type fileInfo struct {
	name  string
	size  int64
	isDir bool
}

// Name is base name of the file
func (to *fileInfo) Name() string { return to.name }

// Size is length in bytes
func (to *fileInfo) Size() int64 { return to.size }

// Mode is file mode bits
func (to *fileInfo) Mode() os.FileMode {
	if to.isDir {
		return os.ModeDir | 0777
	}
	return 0666
}

// ModTime is modification time; the file system does not keep one
func (to *fileInfo) ModTime() time.Time { return time.Time{} }

// IsDir is abbreviation for Mode().IsDir()
func (to *fileInfo) IsDir() bool { return to.isDir }

// Sys is underlying data source (can return nil)
func (to *fileInfo) Sys() interface{} { return nil }

// Fs maps directory paths to their entries for the tree package.
type Fs map[string][]os.FileInfo

// Stat returns info about the file at path.
func (dirs Fs) Stat(path string) (os.FileInfo, error) {
	if _, ok := dirs[path]; ok {
		return &fileInfo{name: gopath.Base(path), isDir: true}, nil
	}
	parent := gopath.Dir(path)
	for _, fi := range dirs[parent] {
		if fi.Name() == gopath.Base(path) {
			return fi, nil
		}
	}
	return nil, filesys.ErrorNotFound
}

// ReadDir returns the names in the directory at path.
func (dirs Fs) ReadDir(path string) ([]string, error) {
	entries, ok := dirs[path]
	if !ok {
		return nil, filesys.ErrorNotFound
	}
	names := make([]string, len(entries))
	for i, fi := range entries {
		names[i] = fi.Name()
	}
	return names, nil
}
