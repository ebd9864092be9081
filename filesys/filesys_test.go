package filesys

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minikern/minikern/disk"
)

func newTestFS(t *testing.T, numSectors int) (*disk.MemDisk, *FileSystem) {
	d := disk.NewMemDisk(numSectors, nil)
	fs, err := New(d, nil, true)
	require.NoError(t, err)
	return d, fs
}

// freeCount reads the persisted free map and returns its clear count.
func freeCount(t *testing.T, fs *FileSystem) int {
	b, err := NewBitmapFromFile(fs.freeMapFile, fs.d.NumSectors())
	require.NoError(t, err)
	return b.NumClear()
}

func TestFormat(t *testing.T) {
	d, fs := newTestFS(t, 1024)

	// sectors 0 and 1 hold the system file headers
	hdr := new(FileHeader)
	require.NoError(t, hdr.FetchFrom(d, FreeMapSector))
	assert.Equal(t, FreeMapFileSize(1024), hdr.FileLength())
	require.NoError(t, hdr.FetchFrom(d, DirectorySector))
	assert.EqualValues(t, DirectoryFileSize, hdr.FileLength())

	// the root directory starts empty
	entries, err := fs.Entries("/")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// free map file: 1024 bits in 1 sector; directory file: 960 bytes
	// in 8 sectors; plus the two headers
	assert.Equal(t, 1024-11, freeCount(t, fs))
}

func TestReopenExistingImage(t *testing.T) {
	d, fs := newTestFS(t, 256)
	require.NoError(t, fs.Create("/keep", 200))
	f, err := fs.Open("/keep")
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("persist me"), 0)
	require.NoError(t, err)

	// a second facade on the same disk sees everything
	fs2, err := New(d, nil, false)
	require.NoError(t, err)
	g, err := fs2.Open("/keep")
	require.NoError(t, err)
	buf := make([]byte, 10)
	_, err = g.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "persist me", string(buf))
}

func TestCreateErrors(t *testing.T) {
	_, fs := newTestFS(t, 256)
	require.NoError(t, fs.Create("/f", 10))

	assert.ErrorIs(t, fs.Create("/f", 10), ErrorAlreadyExists)
	assert.ErrorIs(t, fs.Create("/missing/f", 10), ErrorNotFound)
	assert.ErrorIs(t, fs.Create("relative", 10), ErrorInvalidPath)
	assert.ErrorIs(t, fs.Create("/", 10), ErrorInvalidPath)
	// a file cannot be a parent directory
	assert.ErrorIs(t, fs.Create("/f/g", 10), ErrorNotFound)
}

func TestNestedDirectoryRoundTrip(t *testing.T) {
	// S5: mkdir /a; mkdir /a/b; create and write /a/b/f; read it
	// back; recursively remove /a; sector count is back where it
	// started.
	_, fs := newTestFS(t, 1024)
	before := freeCount(t, fs)

	require.NoError(t, fs.CreateDirectory("/a"))
	require.NoError(t, fs.CreateDirectory("/a/b"))
	require.NoError(t, fs.Create("/a/b/f", 100))

	f, err := fs.Open("/a/b/f")
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)

	g, err := fs.Open("/a/b/f")
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := g.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, fs.RecursiveRemove("/a"))
	_, _, err = fs.resolve("/a")
	assert.ErrorIs(t, err, ErrorNotFound)
	assert.Equal(t, before, freeCount(t, fs))
}

func TestRemove(t *testing.T) {
	_, fs := newTestFS(t, 256)
	before := freeCount(t, fs)

	require.NoError(t, fs.Create("/f", 1000))
	require.NoError(t, fs.Remove("/f"))
	assert.ErrorIs(t, fs.Remove("/f"), ErrorNotFound)
	_, err := fs.Open("/f")
	assert.ErrorIs(t, err, ErrorNotFound)
	assert.Equal(t, before, freeCount(t, fs))

	// a non-empty directory will not go quietly
	require.NoError(t, fs.CreateDirectory("/d"))
	require.NoError(t, fs.Create("/d/f", 10))
	assert.ErrorIs(t, fs.Remove("/d"), ErrorDirectoryNotEmpty)
	// but an empty one removes like a file
	require.NoError(t, fs.Remove("/d/f"))
	require.NoError(t, fs.Remove("/d"))
	assert.Equal(t, before, freeCount(t, fs))
}

func TestRecursiveRemoveTree(t *testing.T) {
	_, fs := newTestFS(t, 1024)
	before := freeCount(t, fs)

	require.NoError(t, fs.CreateDirectory("/a"))
	require.NoError(t, fs.CreateDirectory("/a/b"))
	require.NoError(t, fs.CreateDirectory("/a/b/c"))
	require.NoError(t, fs.Create("/a/f1", 100))
	require.NoError(t, fs.Create("/a/b/f2", 2000))
	require.NoError(t, fs.Create("/a/b/c/f3", 5000))

	require.NoError(t, fs.RecursiveRemove("/a"))
	_, _, err := fs.resolve("/a")
	assert.ErrorIs(t, err, ErrorNotFound)
	assert.Equal(t, before, freeCount(t, fs))

	// a plain file works too
	require.NoError(t, fs.Create("/f", 10))
	require.NoError(t, fs.RecursiveRemove("/f"))
	assert.Equal(t, before, freeCount(t, fs))
}

func TestRecursiveRemoveRootEmptiesIt(t *testing.T) {
	_, fs := newTestFS(t, 1024)
	before := freeCount(t, fs)
	require.NoError(t, fs.CreateDirectory("/a"))
	require.NoError(t, fs.Create("/b", 100))

	require.NoError(t, fs.RecursiveRemove("/"))
	entries, err := fs.Entries("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, before, freeCount(t, fs))
}

// fillAllButOne creates files until exactly one sector is free.
func fillAllButOne(t *testing.T, fs *FileSystem) {
	// after format 1013 sectors are free; 32 files of 30 data sectors
	// plus a header each leave 21, one more of 19 data sectors leaves
	// exactly one
	for i := 0; i < 32; i++ {
		require.NoError(t, fs.Create(fmt.Sprintf("/f%02d", i), 30*disk.SectorSize))
	}
	require.NoError(t, fs.Create("/g", 19*disk.SectorSize))
	require.Equal(t, 1, freeCount(t, fs))
}

func TestCreateFailureRollsBack(t *testing.T) {
	// S6: with one free sector, creating a file that needs five
	// fails and leaves the image byte for byte untouched.
	d, fs := newTestFS(t, 1024)
	fillAllButOne(t, fs)

	before := d.Snapshot()
	err := fs.Create("/big", 4*disk.SectorSize)
	require.ErrorIs(t, err, ErrorOutOfSpace)
	assert.Equal(t, before, d.Snapshot())

	// the zero free sector case fails on the header itself
	require.NoError(t, fs.Create("/last", 0))
	before = d.Snapshot()
	err = fs.Create("/none", 0)
	require.ErrorIs(t, err, ErrorOutOfSpace)
	assert.Equal(t, before, d.Snapshot())
}

func TestFailedOperationsWriteNothing(t *testing.T) {
	d, fs := newTestFS(t, 256)
	require.NoError(t, fs.Create("/f", 100))

	before := d.Snapshot()
	assert.Error(t, fs.Create("/f", 100))
	assert.Error(t, fs.Remove("/nope"))
	assert.Error(t, fs.CreateDirectory("/f/sub"))
	assert.Error(t, fs.RecursiveRemove("/nope"))
	assert.Equal(t, before, d.Snapshot())
}

func TestDirectoryFullRollsBack(t *testing.T) {
	d, fs := newTestFS(t, 4096)
	for i := 0; i < NumDirEntries; i++ {
		require.NoError(t, fs.Create(fmt.Sprintf("/f%02d", i), 0))
	}
	before := d.Snapshot()
	require.ErrorIs(t, fs.Create("/one-more", 0), ErrorDirectoryFull)
	assert.Equal(t, before, d.Snapshot())
}

func TestListAndRecursiveList(t *testing.T) {
	_, fs := newTestFS(t, 1024)
	require.NoError(t, fs.CreateDirectory("/a"))
	require.NoError(t, fs.Create("/top", 10))
	require.NoError(t, fs.Create("/a/inner", 10))

	var buf bytes.Buffer
	require.NoError(t, fs.List("/", &buf))
	assert.Equal(t, "[0] a D\n[1] top F\n", buf.String())

	buf.Reset()
	require.NoError(t, fs.RecursiveList("/", &buf))
	assert.Equal(t, "a D\n    inner F\ntop F\n", buf.String())

	assert.ErrorIs(t, fs.List("/top", &buf), ErrorNotDirectory)
	assert.ErrorIs(t, fs.List("/nope", &buf), ErrorNotFound)
}

func TestStat(t *testing.T) {
	_, fs := newTestFS(t, 256)
	require.NoError(t, fs.CreateDirectory("/d"))
	require.NoError(t, fs.Create("/f", 321))

	isDir, size, err := fs.Stat("/f")
	require.NoError(t, err)
	assert.False(t, isDir)
	assert.EqualValues(t, 321, size)

	isDir, size, err = fs.Stat("/d")
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.EqualValues(t, DirectoryFileSize, size)

	isDir, _, err = fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestPrintDoesNotExplode(t *testing.T) {
	_, fs := newTestFS(t, 256)
	require.NoError(t, fs.Create("/f", 40))
	f, err := fs.Open("/f")
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("visible\x01"), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, fs.Print(&buf))
	out := buf.String()
	assert.Contains(t, out, "Free map file header:")
	assert.Contains(t, out, "Name: f, Sector:")
	assert.Contains(t, out, "visible")
}
