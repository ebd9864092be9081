package tree

import (
	"bytes"
	"testing"

	"github.com/a8m/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minikern/minikern/disk"
	"github.com/minikern/minikern/filesys"
)

func newTestFS(t *testing.T) *filesys.FileSystem {
	d := disk.NewMemDisk(1024, nil)
	fsys, err := filesys.New(d, nil, true)
	require.NoError(t, err)
	for _, name := range []string{"/file1", "/file2", "/file3"} {
		require.NoError(t, fsys.Create(name, 10))
	}
	require.NoError(t, fsys.CreateDirectory("/subdir"))
	require.NoError(t, fsys.Create("/subdir/file4", 10))
	require.NoError(t, fsys.Create("/subdir/file5", 10))
	return fsys
}

func TestTree(t *testing.T) {
	fsys := newTestFS(t)
	buf := new(bytes.Buffer)
	err := Tree(fsys, "/", buf, new(tree.Options))
	require.NoError(t, err)
	assert.Equal(t, `/
├── file1
├── file2
├── file3
└── subdir
    ├── file4
    └── file5

1 directories, 5 files
`, buf.String())
}

func TestTreeSubdir(t *testing.T) {
	fsys := newTestFS(t)
	buf := new(bytes.Buffer)
	err := Tree(fsys, "/subdir", buf, new(tree.Options))
	require.NoError(t, err)
	assert.Equal(t, `/subdir
├── file4
└── file5

0 directories, 2 files
`, buf.String())
}

func TestTreeNotFound(t *testing.T) {
	fsys := newTestFS(t)
	err := Tree(fsys, "/nope", new(bytes.Buffer), new(tree.Options))
	assert.ErrorIs(t, err, filesys.ErrorNotFound)
}

func TestTreeOnFile(t *testing.T) {
	fsys := newTestFS(t)
	err := Tree(fsys, "/file1", new(bytes.Buffer), new(tree.Options))
	assert.ErrorIs(t, err, filesys.ErrorNotDirectory)
}
