// Package filesys implements the disk backed file system.
//
// Every file has a header (stored in one sector) locating its data
// sectors, an entry in some directory, and nothing else. The system
// keeps two files permanently open: the free sector bitmap, whose
// header lives at sector 0, and the root directory, whose header lives
// at sector 1. Both are found there at boot.
//
// Mutating operations follow one discipline: work on in-memory copies
// of the free map and the affected directory, and only when every step
// has succeeded write the changes back. A failed operation writes
// nothing, so the disk image after a failure is byte for byte the image
// from before the call.
//
// There is no synchronization here. The facade is single accessor by
// contract; the kernel runs file system calls with its own exclusion.
package filesys

import (
	"fmt"
	"io"

	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/disk"
	"github.com/minikern/minikern/stats"
)

// Well known sectors, fixed at build time so the boot path can find
// the two system files.
const (
	FreeMapSector   = 0
	DirectorySector = 1
)

// FreeMapFileSize returns the byte length of the free map file for a
// disk of numSectors sectors.
func FreeMapFileSize(numSectors int) int64 {
	return int64(bitmapBytes(numSectors))
}

// FileSystem is the single entry point for all file system operations.
type FileSystem struct {
	d  disk.Disk
	st *stats.Stats

	// held open for the lifetime of the facade
	freeMapFile   *OpenFile
	directoryFile *OpenFile
}

// New attaches a file system to the disk. With format set the disk is
// assumed empty and an initial free map and root directory are laid
// down; otherwise the two system files are opened from their well
// known sectors.
func New(d disk.Disk, st *stats.Stats, format bool) (*FileSystem, error) {
	fs := &FileSystem{d: d, st: st}
	if format {
		if err := fs.format(); err != nil {
			return nil, err
		}
		return fs, nil
	}
	var err error
	if fs.freeMapFile, err = newOpenFile(d, FreeMapSector); err != nil {
		return nil, err
	}
	if fs.directoryFile, err = newOpenFile(d, DirectorySector); err != nil {
		return nil, err
	}
	return fs, nil
}

// format lays down an empty file system: a free map with the two well
// known header sectors marked used, data blocks for the free map file
// and the root directory file, both headers, and an empty root table.
func (fs *FileSystem) format() error {
	debug.Logf(debug.File, "formatting the file system")
	freeMap := NewBitmap(fs.d.NumSectors())
	mapHdr := new(FileHeader)
	dirHdr := new(FileHeader)

	freeMap.Mark(FreeMapSector)
	freeMap.Mark(DirectorySector)

	if err := mapHdr.Allocate(freeMap, fs.d, FreeMapFileSize(fs.d.NumSectors())); err != nil {
		return fmt.Errorf("allocating free map file: %w", err)
	}
	if err := dirHdr.Allocate(freeMap, fs.d, DirectoryFileSize); err != nil {
		return fmt.Errorf("allocating root directory file: %w", err)
	}
	if err := mapHdr.WriteBack(fs.d, FreeMapSector); err != nil {
		return err
	}
	if err := dirHdr.WriteBack(fs.d, DirectorySector); err != nil {
		return err
	}

	// with the headers on disk the two system files can be opened and
	// their initial contents written through them
	var err error
	if fs.freeMapFile, err = newOpenFile(fs.d, FreeMapSector); err != nil {
		return err
	}
	if fs.directoryFile, err = newOpenFile(fs.d, DirectorySector); err != nil {
		return err
	}
	if err := freeMap.WriteBack(fs.freeMapFile); err != nil {
		return err
	}
	return NewDirectory(NumDirEntries).WriteBack(fs.directoryFile)
}

// Close releases the underlying disk if it needs releasing.
func (fs *FileSystem) Close() error {
	if c, ok := fs.d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Disk returns the underlying sector device.
func (fs *FileSystem) Disk() disk.Disk {
	return fs.d
}

func (fs *FileSystem) count(op string, err error) {
	if fs.st != nil {
		fs.st.CountFSOp(op, err)
	}
}

// openDirFile returns a handle on the directory whose header is at
// sector, reusing the permanently open root handle where possible.
func (fs *FileSystem) openDirFile(sector int) (*OpenFile, error) {
	if sector == DirectorySector {
		return fs.directoryFile, nil
	}
	return newOpenFile(fs.d, sector)
}

// joinPath appends a leaf name to a directory path.
func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// Create makes a file of the given fixed size at path. The parent
// directory must exist; the leaf must not. On success the new header,
// the parent directory and the free map are written to disk in that
// order. On failure nothing is written.
func (fs *FileSystem) Create(path string, size int64) (err error) {
	defer func() { fs.count("create", err) }()
	debug.Logf(debug.File, "creating file %q size %d", path, size)
	_, err = fs.create(path, size, false)
	return err
}

// CreateDirectory makes an empty subdirectory at path. After the
// header and tables are persisted the new directory file is seeded
// with an empty table.
func (fs *FileSystem) CreateDirectory(path string) (err error) {
	defer func() { fs.count("mkdir", err) }()
	debug.Logf(debug.File, "creating directory %q", path)
	sector, err := fs.create(path, DirectoryFileSize, true)
	if err != nil {
		return err
	}
	newFile, err := newOpenFile(fs.d, sector)
	if err != nil {
		return err
	}
	return NewDirectory(NumDirEntries).WriteBack(newFile)
}

func (fs *FileSystem) create(path string, size int64, isDir bool) (int, error) {
	parent, leaf, err := SplitParent(path)
	if err != nil {
		return -1, err
	}
	parentSector, parentIsDir, err := fs.resolve(parent)
	if err != nil {
		return -1, err
	}
	if !parentIsDir {
		return -1, ErrorNotDirectory
	}
	parentFile, err := fs.openDirFile(parentSector)
	if err != nil {
		return -1, err
	}
	dir := NewDirectory(NumDirEntries)
	if err := dir.FetchFrom(parentFile); err != nil {
		return -1, err
	}
	if dir.Find(leaf) != -1 {
		return -1, ErrorAlreadyExists
	}

	freeMap, err := NewBitmapFromFile(fs.freeMapFile, fs.d.NumSectors())
	if err != nil {
		return -1, err
	}
	hdrSector := freeMap.FindAndSet()
	if hdrSector == -1 {
		return -1, ErrorOutOfSpace
	}
	if err := dir.Add(leaf, int32(hdrSector), isDir); err != nil {
		return -1, err
	}
	hdr := new(FileHeader)
	if err := hdr.Allocate(freeMap, fs.d, size); err != nil {
		// roll back by discarding the mutated copies
		return -1, err
	}

	// everything worked; flush the changes
	if err := hdr.WriteBack(fs.d, hdrSector); err != nil {
		return -1, err
	}
	if err := dir.WriteBack(parentFile); err != nil {
		return -1, err
	}
	if err := freeMap.WriteBack(fs.freeMapFile); err != nil {
		return -1, err
	}
	return hdrSector, nil
}

// Open returns a live handle on the file at path.
func (fs *FileSystem) Open(path string) (f *OpenFile, err error) {
	defer func() { fs.count("open", err) }()
	debug.Logf(debug.File, "opening %q", path)
	sector, _, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	return newOpenFile(fs.d, sector)
}

// Remove deletes the file at path: its data sectors, its header sector
// and its directory entry. A directory can be removed only when empty.
// On success the free map is persisted first, then the directory.
func (fs *FileSystem) Remove(path string) (err error) {
	defer func() { fs.count("remove", err) }()
	debug.Logf(debug.File, "removing %q", path)
	return fs.remove(path)
}

func (fs *FileSystem) remove(path string) error {
	parent, leaf, err := SplitParent(path)
	if err != nil {
		return err
	}
	parentSector, parentIsDir, err := fs.resolve(parent)
	if err != nil {
		return err
	}
	if !parentIsDir {
		return ErrorNotDirectory
	}
	parentFile, err := fs.openDirFile(parentSector)
	if err != nil {
		return err
	}
	dir := NewDirectory(NumDirEntries)
	if err := dir.FetchFrom(parentFile); err != nil {
		return err
	}
	sector := dir.Find(leaf)
	if sector == -1 {
		return ErrorNotFound
	}
	if dir.IsDirectory(leaf) {
		child, err := newOpenFile(fs.d, int(sector))
		if err != nil {
			return err
		}
		childDir := NewDirectory(NumDirEntries)
		if err := childDir.FetchFrom(child); err != nil {
			return err
		}
		if len(childDir.Entries()) > 0 {
			return ErrorDirectoryNotEmpty
		}
	}

	hdr := new(FileHeader)
	if err := hdr.FetchFrom(fs.d, int(sector)); err != nil {
		return err
	}
	freeMap, err := NewBitmapFromFile(fs.freeMapFile, fs.d.NumSectors())
	if err != nil {
		return err
	}
	if err := hdr.Deallocate(freeMap, fs.d); err != nil {
		return err
	}
	freeMap.Clear(int(sector))
	if err := dir.Remove(leaf); err != nil {
		return err
	}

	if err := freeMap.WriteBack(fs.freeMapFile); err != nil {
		return err
	}
	return dir.WriteBack(parentFile)
}

// RecursiveRemove removes the entity at path; a directory's contents
// are removed depth first before the directory itself. Removing "/"
// empties the root but keeps it.
func (fs *FileSystem) RecursiveRemove(path string) (err error) {
	defer func() { fs.count("rremove", err) }()
	debug.Logf(debug.File, "recursively removing %q", path)
	return fs.recursiveRemove(path)
}

func (fs *FileSystem) recursiveRemove(path string) error {
	sector, isDir, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if !isDir {
		return fs.remove(path)
	}
	dirFile, err := fs.openDirFile(sector)
	if err != nil {
		return err
	}
	dir := NewDirectory(NumDirEntries)
	if err := dir.FetchFrom(dirFile); err != nil {
		return err
	}
	for _, e := range dir.Entries() {
		if err := fs.recursiveRemove(joinPath(path, e.Name())); err != nil {
			return err
		}
	}
	if path == "/" {
		return nil
	}
	return fs.remove(path)
}

// Stat reports whether path names a directory and the byte length of
// its backing file.
func (fs *FileSystem) Stat(path string) (isDir bool, size int64, err error) {
	sector, isDir, err := fs.resolve(path)
	if err != nil {
		return false, 0, err
	}
	hdr := new(FileHeader)
	if err := hdr.FetchFrom(fs.d, sector); err != nil {
		return false, 0, err
	}
	return isDir, hdr.FileLength(), nil
}

// Entries returns the in-use entries of the directory at path.
func (fs *FileSystem) Entries(path string) ([]DirectoryEntry, error) {
	sector, isDir, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, ErrorNotDirectory
	}
	dirFile, err := fs.openDirFile(sector)
	if err != nil {
		return nil, err
	}
	dir := NewDirectory(NumDirEntries)
	if err := dir.FetchFrom(dirFile); err != nil {
		return nil, err
	}
	return dir.Entries(), nil
}

// List prints the entries of the directory at path.
func (fs *FileSystem) List(path string, w io.Writer) (err error) {
	defer func() { fs.count("list", err) }()
	entries, err := fs.Entries(path)
	if err != nil {
		return err
	}
	for i, e := range entries {
		kind := 'F'
		if e.IsDir {
			kind = 'D'
		}
		fmt.Fprintf(w, "[%d] %s %c\n", i, e.Name(), kind)
	}
	return nil
}

// RecursiveList prints the directory at path and, depth first, every
// directory below it.
func (fs *FileSystem) RecursiveList(path string, w io.Writer) (err error) {
	defer func() { fs.count("rlist", err) }()
	return fs.Walk(path, func(dirPath string, e DirectoryEntry, depth int) error {
		kind := 'F'
		if e.IsDir {
			kind = 'D'
		}
		for i := 0; i < depth; i++ {
			fmt.Fprint(w, "    ")
		}
		fmt.Fprintf(w, "%s %c\n", e.Name(), kind)
		return nil
	})
}

// Walk visits every entry under the directory at path, depth first in
// table order, calling fn with the containing directory's path, the
// entry and its depth below the starting point.
func (fs *FileSystem) Walk(path string, fn func(dirPath string, e DirectoryEntry, depth int) error) error {
	return fs.walk(path, 0, fn)
}

func (fs *FileSystem) walk(path string, depth int, fn func(string, DirectoryEntry, int) error) error {
	entries, err := fs.Entries(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(path, e, depth); err != nil {
			return err
		}
		if e.IsDir {
			if err := fs.walk(joinPath(path, e.Name()), depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Print dumps the whole file system state for debugging: both system
// file headers, the free map and the root directory with each entry's
// header.
func (fs *FileSystem) Print(w io.Writer) error {
	hdr := new(FileHeader)
	fmt.Fprintln(w, "Free map file header:")
	if err := hdr.FetchFrom(fs.d, FreeMapSector); err != nil {
		return err
	}
	hdr.Print(w, fs.d)

	fmt.Fprintln(w, "Directory file header:")
	if err := hdr.FetchFrom(fs.d, DirectorySector); err != nil {
		return err
	}
	hdr.Print(w, fs.d)

	freeMap, err := NewBitmapFromFile(fs.freeMapFile, fs.d.NumSectors())
	if err != nil {
		return err
	}
	freeMap.Print(w)

	dir := NewDirectory(NumDirEntries)
	if err := dir.FetchFrom(fs.directoryFile); err != nil {
		return err
	}
	fmt.Fprintln(w, "Directory contents:")
	for _, e := range dir.Entries() {
		fmt.Fprintf(w, "Name: %s, Sector: %d\n", e.Name(), e.Sector)
		if err := hdr.FetchFrom(fs.d, int(e.Sector)); err != nil {
			return err
		}
		hdr.Print(w, fs.d)
	}
	return nil
}
